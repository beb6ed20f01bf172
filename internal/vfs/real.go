package vfs

import (
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// Real reads from an afero file system
type Real struct {
	fs afero.Fs
}

// NewReal wraps fsys. A nil fsys reads the operating system's file system.
func NewReal(fsys afero.Fs) *Real {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	return &Real{fs: fsys}
}

func (r *Real) Fs() afero.Fs {
	return r.fs
}

func (r *Real) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(r.fs, path)
}

func (r *Real) Stat(path string) (fs.FileInfo, error) {
	return r.fs.Stat(path)
}

func (r *Real) Readlink(path string) (string, error) {
	if lr, ok := r.fs.(afero.LinkReader); ok {
		return lr.ReadlinkIfPossible(path)
	}

	if _, err := r.fs.Stat(path); err != nil {
		return "", err
	}

	return "", &os.PathError{Op: "readlink", Path: path, Err: afero.ErrNoReadlink}
}
