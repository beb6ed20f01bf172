// Package compiler drives bundler instances over virtual files.
//
// A BuildConfig accumulates entry points as files arrive; a Compiler turns one
// set of files into a compile cycle (or a watch session) and pushes every
// emitted asset back into the pipeline as a virtual file.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/bundler/esbuild"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/utils"
	"github.com/Norgate-AV/packstream/internal/vfile"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

// Compiler orchestrates compile cycles for a BuildConfig. Bundler instances
// are created per Run, once entries have had a chance to accumulate.
type Compiler struct {
	cfg    *BuildConfig
	logger zerolog.Logger

	mu       sync.Mutex
	watching bundler.Watching
}

func New(cfg *BuildConfig, logger zerolog.Logger) *Compiler {
	return &Compiler{
		cfg:    cfg,
		logger: logger.With().Str("component", "compiler").Logger(),
	}
}

func (c *Compiler) Config() *BuildConfig {
	return c.cfg
}

// Run compiles files and pushes emitted assets to sink. done receives the
// outcome: once when building, after every cycle when watching. Outside watch
// mode Run returns after done. An empty file set calls done(nil, nil) without
// creating a bundler.
func (c *Compiler) Run(ctx context.Context, sink pipeline.Sink, files []*vfile.File, done bundler.Handler) {
	if len(files) == 0 {
		done(nil, nil)
		return
	}

	opts := c.cfg.Options()

	factory := opts.Factory
	if factory == nil {
		factory = esbuild.Factory
	}

	instance, err := factory(c.cfg.Configs())
	if err != nil {
		done(nil, fatal("create", err))
		return
	}

	for _, comp := range instance.Compilers() {
		c.install(comp, sink, files)
	}

	if opts.Watch {
		c.watch(ctx, instance, opts.WatchOptions, done)
		return
	}

	stats, err := instance.Run(ctx)
	if err != nil {
		done(nil, fatal("run", err))
		return
	}

	done(stats, nil)
}

func (c *Compiler) watch(ctx context.Context, instance bundler.Instance, opts bundler.WatchOptions, done bundler.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watching != nil {
		if err := c.watching.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to stop previous watch")
		}

		c.watching = nil
	}

	w, err := instance.Watch(ctx, opts, func(stats *bundler.Stats, err error) {
		if err != nil {
			err = fatal("watch", err)
		}

		done(stats, err)
	})
	if err != nil {
		done(nil, fatal("watch", err))
		return
	}

	c.watching = w
}

// Invalidate triggers a rebuild of the running watch, if any
func (c *Compiler) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watching != nil {
		c.watching.Invalidate()
	}
}

// Close stops any running watch
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watching == nil {
		return nil
	}

	err := c.watching.Close()
	c.watching = nil

	return err
}

// install wires file systems and hooks into a single compiler
func (c *Compiler) install(comp bundler.Compiler, sink pipeline.Sink, files []*vfile.File) {
	opts := c.cfg.Options()

	output := opts.FS.Output
	if output == nil {
		output = afero.NewMemMapFs()
	}

	comp.SetOutputFileSystem(output)

	var input vfs.InputFileSystem
	switch {
	case opts.FS.Input != nil:
		input = opts.FS.Input
	case opts.FSMode == config.FromRealFilesystem:
		input = vfs.WithOutput(comp.RealFileSystem(), output)
	default:
		input = vfs.New(files, comp.Context(), comp.RealFileSystem(), output)
	}

	comp.SetInputFileSystem(input)

	// Emitted assets come from this cycle's output before anything on disk.
	readback := vfs.NewChain(vfs.NewReal(afero.NewReadOnlyFs(output)), input)

	if opts.Progress {
		logger := c.logger.With().Str("bundler", comp.Name()).Logger()

		comp.Hooks().OnProgress(func(percentage float64, msg string) {
			logger.Info().Msgf("%2d%% %s", int(percentage*100), msg)
		})
	}

	comp.Hooks().OnAfterEmit(func(ctx context.Context, compilation *bundler.Compilation) error {
		err := c.emitAssets(ctx, readback, compilation, sink)
		if err != nil {
			c.logger.Error().Err(err).Str("bundler", comp.Name()).Msg("error during compilation")
		}

		return err
	})
}

// emitAssets reads back every asset emitted this cycle and pushes it to sink.
// All pushes have completed when it returns.
func (c *Compiler) emitAssets(ctx context.Context, fsys vfs.InputFileSystem, compilation *bundler.Compilation, sink pipeline.Sink) error {
	public := c.cfg.PublicOutputPath()

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)

	for _, name := range compilation.EmittedAssets() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			name := utils.StripQuery(name)
			p := filepath.Join(compilation.OutputPath, name)

			data, err := fsys.ReadFile(p)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, codes.New(codes.AssetEmitFailure, "readfile", p, err))
				mu.Unlock()

				return nil
			}

			sink.Push(&vfile.File{
				Path:     filepath.Join(public, name),
				Base:     public,
				Contents: data,
			})

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// fatal marks err as an unrecoverable build failure
func fatal(op string, err error) error {
	if errors.Is(err, codes.ErrFatalBuild) {
		return err
	}

	return codes.New(codes.FatalBuildFailure, op, "", fmt.Errorf("bundler: %w", err))
}
