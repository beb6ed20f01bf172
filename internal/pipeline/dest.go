package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Dest is a Sink writing files below a directory. Each file lands at its
// Relative() path; null files are skipped.
type Dest struct {
	fs  afero.Fs
	dir string

	mu      sync.Mutex
	written []string
	errs    error
}

func NewDest(fsys afero.Fs, dir string) *Dest {
	return &Dest{fs: fsys, dir: dir}
}

func (d *Dest) Push(f *vfile.File) {
	if !f.IsBuffer() {
		return
	}

	dst := filepath.Join(d.dir, f.Relative())
	err := d.write(dst, f.Contents)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.errs = multierr.Append(d.errs, fmt.Errorf("failed to write %s: %w", f.Relative(), err))
		return
	}

	d.written = append(d.written, dst)
}

func (d *Dest) write(dst string, data []byte) error {
	// Create parent directory if needed
	if err := d.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	return afero.WriteFile(d.fs, dst, data, 0o644)
}

// Written returns the absolute paths written so far, in write order
func (d *Dest) Written() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.written)
}

// Err returns every write failure so far
func (d *Dest) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.errs
}
