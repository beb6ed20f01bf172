// Package bundlertest provides an in-memory bundler for tests.
//
// A cycle reads every entry module through the compiler's input file system
// and emits one asset per entry holding the modules' contents joined by
// newlines, in entry order.
package bundlertest

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

const Name = "bundlertest"

type Compiler struct {
	Config *bundler.Config

	// FatalErr makes Run and Watch fail
	FatalErr error

	mu     sync.Mutex
	real   vfs.InputFileSystem
	input  vfs.InputFileSystem
	output afero.Fs
	hooks  *bundler.Hooks
	hashes map[string]string
	cycles [][]string
}

var _ bundler.Compiler = (*Compiler)(nil)

func New(cfg *bundler.Config) *Compiler {
	osfs := vfs.NewReal(afero.NewMemMapFs())

	return &Compiler{
		Config: cfg,
		real:   osfs,
		input:  osfs,
		output: afero.NewMemMapFs(),
		hooks:  &bundler.Hooks{},
		hashes: make(map[string]string),
	}
}

func (c *Compiler) Name() string    { return c.Config.Name }
func (c *Compiler) Context() string { return c.Config.Context }

func (c *Compiler) OutputPath() string {
	if filepath.IsAbs(c.Config.Output.Path) {
		return filepath.Clean(c.Config.Output.Path)
	}

	return filepath.Join(c.Config.Context, c.Config.Output.Path)
}

func (c *Compiler) Compilers() []bundler.Compiler       { return []bundler.Compiler{c} }
func (c *Compiler) Hooks() *bundler.Hooks               { return c.hooks }
func (c *Compiler) RealFileSystem() vfs.InputFileSystem { return c.real }

func (c *Compiler) InputFileSystem() vfs.InputFileSystem {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.input
}

func (c *Compiler) SetInputFileSystem(fsys vfs.InputFileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = fsys
}

func (c *Compiler) OutputFileSystem() afero.Fs {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.output
}

func (c *Compiler) SetOutputFileSystem(fsys afero.Fs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.output = fsys
}

// Cycles returns the input paths read by every completed cycle, in order
func (c *Compiler) Cycles() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]string, len(c.cycles))
	for i, inputs := range c.cycles {
		out[i] = slices.Clone(inputs)
	}

	return out
}

func (c *Compiler) Run(ctx context.Context) (*bundler.Stats, error) {
	if c.FatalErr != nil {
		return nil, codes.New(codes.FatalBuildFailure, "run", c.Config.Context, c.FatalErr)
	}

	return c.cycle(ctx), nil
}

func (c *Compiler) cycle(ctx context.Context) *bundler.Stats {
	start := time.Now()
	c.hooks.ReportProgress(0, "compiling")

	input := c.InputFileSystem()
	output := c.OutputFileSystem()
	comp := bundler.NewCompilation(c.Config.Name, c.OutputPath())
	parts := make(map[string]string)

	for _, name := range c.Config.EntryNames() {
		var buf bytes.Buffer
		failed := false

		for i, module := range c.Config.Entry[name] {
			p := module
			if !filepath.IsAbs(p) {
				p = filepath.Join(c.Config.Context, p)
			}

			comp.Inputs = append(comp.Inputs, p)

			data, err := input.ReadFile(p)
			if err != nil {
				comp.AddError(err)
				failed = true
				continue
			}

			if i > 0 {
				buf.WriteByte('\n')
			}

			buf.Write(data)
		}

		if failed {
			continue
		}

		asset := c.Config.Output.FileName(name)
		sum := bundler.HashContents(buf.Bytes())
		parts[asset] = sum
		comp.Assets[asset] = &bundler.Asset{Size: buf.Len()}

		if c.hashes[asset] == sum {
			continue
		}

		target := filepath.Join(c.OutputPath(), asset)
		if err := output.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			comp.AddError(err)
			continue
		}

		if err := afero.WriteFile(output, target, buf.Bytes(), 0o644); err != nil {
			comp.AddError(err)
			continue
		}

		c.hashes[asset] = sum
		comp.Assets[asset].Emitted = true
	}

	c.mu.Lock()
	c.cycles = append(c.cycles, slices.Clone(comp.Inputs))
	c.mu.Unlock()

	c.hooks.AfterEmit(ctx, comp)
	c.hooks.ReportProgress(1, "done")

	return &bundler.Stats{
		Bundler:     Name,
		Hash:        bundler.HashParts(parts),
		StartTime:   start,
		EndTime:     time.Now(),
		Compilation: comp,
	}
}

// Watch runs a cycle immediately and again on every Invalidate
func (c *Compiler) Watch(ctx context.Context, _ bundler.WatchOptions, handler bundler.Handler) (bundler.Watching, error) {
	if c.FatalErr != nil {
		return nil, codes.New(codes.FatalBuildFailure, "watch", c.Config.Context, c.FatalErr)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watching{
		cancel:     cancel,
		invalidate: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	go func() {
		defer close(w.done)

		handler(c.cycle(wctx), nil)

		for {
			select {
			case <-wctx.Done():
				return
			case <-w.invalidate:
				handler(c.cycle(wctx), nil)
			}
		}
	}()

	return w, nil
}

type watching struct {
	cancel     context.CancelFunc
	invalidate chan struct{}
	done       chan struct{}
	once       sync.Once
}

func (w *watching) Invalidate() {
	select {
	case w.invalidate <- struct{}{}:
	default:
	}
}

func (w *watching) Close() error {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})

	return nil
}
