// Package vfile models the in-memory files that travel through a pipeline.
package vfile

import (
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// File is a virtual file: a path with in-memory contents and no presence on disk
type File struct {
	// Path is absolute or relative to the pipeline's working directory
	Path string

	// Base is the directory Path is relative to when computing Relative()
	Base string

	// Named is an explicit entry name chosen upstream
	Named string

	// Contents holds buffered data. Nil contents make a null file.
	Contents []byte

	// Stream marks a streaming file. Streaming files are not supported by the bundler adapter.
	Stream io.Reader

	// Stat is an optional fully-formed file descriptor passed through by Stat calls
	Stat fs.FileInfo
}

// New creates a buffered file
func New(path string, contents []byte) *File {
	return &File{Path: path, Contents: contents}
}

func (f *File) IsStream() bool {
	return f.Stream != nil
}

func (f *File) IsNull() bool {
	return f.Stream == nil && f.Contents == nil
}

func (f *File) IsBuffer() bool {
	return f.Stream == nil && f.Contents != nil
}

// Clone returns a deep copy of f. Streams are shared, not copied.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = bytes.Clone(f.Contents)
	}

	return &c
}

// Relative returns Path relative to Base, or Path when no base is set
func (f *File) Relative() string {
	if f.Base == "" {
		return f.Path
	}

	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return f.Path
	}

	return rel
}

func (f *File) Basename() string {
	return filepath.Base(f.Path)
}

func (f *File) Extname() string {
	return filepath.Ext(f.Path)
}

func (f *File) Stem() string {
	return strings.TrimSuffix(f.Basename(), f.Extname())
}
