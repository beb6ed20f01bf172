// Package vfs presents virtual files to a bundler as a read-only file system.
//
// Reads go through a Chain of providers tried in order. A provider that does
// not know a path answers with fs.ErrNotExist and the next provider is asked;
// any other error ends the lookup. The standard chain is:
//
//  1. Virtual: the in-memory files of the current compile cycle
//  2. Real: the machine's file system (or any afero.Fs)
//  3. Output: a read-only view of the bundler's output file system, so that
//     previously emitted assets are readable by later steps
package vfs

import (
	"errors"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/Norgate-AV/packstream/internal/vfile"
)

// InputFileSystem is the read capability a bundler needs from its input file system
type InputFileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
	Readlink(path string) (string, error)
}

// Owner is implemented by providers that can tell whether they serve a path
type Owner interface {
	Owns(path string) bool
}

// Chain tries its providers in order
type Chain struct {
	providers []InputFileSystem
}

func NewChain(providers ...InputFileSystem) *Chain {
	return &Chain{providers: providers}
}

// New builds the standard chain: virtual files, then real, then output.
// output may be nil.
func New(files []*vfile.File, context string, real InputFileSystem, output afero.Fs) *Chain {
	return WithOutput(NewChain(NewVirtual(files, context), real), output)
}

// WithOutput appends a read-only view of output to input. A nil output returns input unchanged
// when it is already a chain.
func WithOutput(input InputFileSystem, output afero.Fs) *Chain {
	c, ok := input.(*Chain)
	if !ok {
		c = NewChain(input)
	}

	if output == nil {
		return c
	}

	providers := append(append([]InputFileSystem{}, c.providers...), NewReal(afero.NewReadOnlyFs(output)))
	return NewChain(providers...)
}

func (c *Chain) ReadFile(path string) ([]byte, error) {
	err := notExist("readfile", path)

	for _, p := range c.providers {
		var data []byte
		if data, err = p.ReadFile(path); err == nil {
			return data, nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return nil, err
}

func (c *Chain) Stat(path string) (fs.FileInfo, error) {
	err := notExist("stat", path)

	for _, p := range c.providers {
		var info fs.FileInfo
		if info, err = p.Stat(path); err == nil {
			return info, nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return nil, err
}

func (c *Chain) Readlink(path string) (string, error) {
	err := notExist("readlink", path)

	for _, p := range c.providers {
		var link string
		if link, err = p.Readlink(path); err == nil {
			return link, nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	return "", err
}

// Owns reports whether any provider implementing Owner claims path
func (c *Chain) Owns(path string) bool {
	for _, p := range c.providers {
		if o, ok := p.(Owner); ok && o.Owns(path) {
			return true
		}
	}

	return false
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}
