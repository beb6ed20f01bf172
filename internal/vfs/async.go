package vfs

import "io/fs"

// The async variants run the lookup on a new goroutine and deliver the result
// through cb. cb never runs on the caller's goroutine.

func ReadFileAsync(fsys InputFileSystem, path string, cb func(data []byte, err error)) {
	go func() {
		cb(fsys.ReadFile(path))
	}()
}

func StatAsync(fsys InputFileSystem, path string, cb func(info fs.FileInfo, err error)) {
	go func() {
		cb(fsys.Stat(path))
	}()
}

func ReadlinkAsync(fsys InputFileSystem, path string, cb func(link string, err error)) {
	go func() {
		cb(fsys.Readlink(path))
	}()
}
