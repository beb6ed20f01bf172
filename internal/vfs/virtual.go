package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/utils"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Virtual serves a snapshot of virtual files.
//
// Virtual paths are normalized once: absolute paths are cleaned, paths
// starting with ".." are resolved against the process working directory and
// other relative paths against the build context. Queried paths are resolved
// against the build context.
type Virtual struct {
	context string
	files   map[string]*vfile.File
}

func NewVirtual(files []*vfile.File, context string) *Virtual {
	cwd, _ := os.Getwd()

	v := &Virtual{
		context: context,
		files:   make(map[string]*vfile.File, len(files)),
	}

	for _, f := range files {
		v.files[v.key(f.Path, cwd)] = f
	}

	return v
}

func (v *Virtual) key(p, cwd string) string {
	switch {
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	case strings.HasPrefix(p, ".."):
		return filepath.Join(cwd, p)
	default:
		return filepath.Join(v.context, utils.CleanRelative(p))
	}
}

func (v *Virtual) find(p string) (*vfile.File, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(v.context, utils.CleanRelative(p))
	}

	f, ok := v.files[filepath.Clean(p)]
	return f, ok
}

func (v *Virtual) Owns(path string) bool {
	_, ok := v.find(path)
	return ok
}

func (v *Virtual) ReadFile(path string) ([]byte, error) {
	f, ok := v.find(path)
	if !ok {
		return nil, notExist("readfile", path)
	}

	if !f.IsBuffer() {
		return nil, codes.New(codes.NotABuffer, "readfile", path, nil)
	}

	return f.Contents, nil
}

func (v *Virtual) Stat(path string) (fs.FileInfo, error) {
	f, ok := v.find(path)
	if !ok {
		return nil, notExist("stat", path)
	}

	if f.Stat != nil {
		return f.Stat, nil
	}

	return fileInfo{name: filepath.Base(f.Path), size: int64(len(f.Contents))}, nil
}

func (v *Virtual) Readlink(path string) (string, error) {
	if _, ok := v.find(path); ok {
		return "", codes.New(codes.SymlinkUnsupported, "readlink", path, nil)
	}

	return "", notExist("readlink", path)
}

// fileInfo describes a virtual file: always a regular file, never a directory or symlink
type fileInfo struct {
	name string
	size int64
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
