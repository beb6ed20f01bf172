// Package stream is the pipeline node that feeds virtual files to a bundler.
//
// An Adapter collects the files it is given, registers them as entry points
// and triggers compile cycles either after every file or once at the end of
// input. Assets emitted by a cycle are pushed to the sink the cycle was
// started with.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/cache"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Adapter is a pipeline.Stage driving a bundler
type Adapter struct {
	opts   *config.Options
	entry  *cache.Entry
	done   bundler.Handler
	logger zerolog.Logger

	mu                 sync.Mutex
	compilationErrorFn []func(error)
}

var _ pipeline.Stage = (*Adapter)(nil)

// New creates an adapter for opts. Build state is taken from buildCache
// when it can be reused, see cache.BuildCache.Resolve. A nil buildCache
// disables sharing and a nil done installs DefaultHandler.
func New(opts *config.Options, buildCache *cache.BuildCache, done bundler.Handler, logger zerolog.Logger) (*Adapter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if buildCache == nil {
		buildCache = cache.New()
	}

	logger = logger.With().Str("component", "stream").Logger()

	entry, reused, err := buildCache.Resolve(cache.Key(opts.Name), opts, func() (*cache.Entry, error) {
		return cache.NewEntry(opts, logger)
	})
	if err != nil {
		return nil, err
	}

	if done == nil {
		done = DefaultHandler(opts, logger)
	}

	a := &Adapter{
		opts:   opts,
		entry:  entry,
		done:   done,
		logger: logger,
	}

	if reused {
		a.logger.Debug().Str("name", opts.Name).Msg("reusing cached build state")
	}

	if opts.StreamFiles != nil {
		for _, f := range opts.StreamFiles.Items() {
			entry.Files.Add(f)
		}

		opts.StreamFiles.Subscribe(func(files ...*vfile.File) {
			for _, f := range files {
				entry.Files.Add(f)
			}
		})
	}

	return a, nil
}

// Entry returns the build state used by the adapter
func (a *Adapter) Entry() *cache.Entry {
	return a.entry
}

// OnCompilationError registers fn to be told about every cycle finishing with
// compilation errors, in watch mode too. fn must not block.
func (a *Adapter) OnCompilationError(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.compilationErrorFn = append(a.compilationErrorFn, fn)
}

// Transform adds f to the build. Null files are passed on untouched.
func (a *Adapter) Transform(ctx context.Context, f *vfile.File, sink pipeline.Sink) error {
	if f.IsStream() {
		return codes.New(codes.StreamingUnsupported, "transform", f.Path, nil)
	}

	if f.IsNull() {
		sink.Push(f)
		return nil
	}

	a.entry.Files.Add(f)

	if a.opts.EntryFiles == nil {
		a.entry.Config.AddEntry(f, "")
	}

	if a.opts.CompileAtEndOfInput {
		return nil
	}

	return a.compile(ctx, sink)
}

// Flush runs the compile cycle deferred to the end of input
func (a *Adapter) Flush(ctx context.Context, sink pipeline.Sink) error {
	if !a.opts.CompileAtEndOfInput {
		return nil
	}

	return a.compile(ctx, sink)
}

// Close stops watching
func (a *Adapter) Close() error {
	return a.entry.Compiler.Close()
}

// compile runs one cycle over the collected files. Outside watch mode it
// returns once every asset of the cycle has been pushed.
func (a *Adapter) compile(ctx context.Context, sink pipeline.Sink) error {
	files := a.entry.Files.Files()
	if len(files) == 0 {
		return nil
	}

	if !a.entry.Config.HasValidEntries() {
		a.logger.Debug().Msg("no entry points yet, skipping compile")
		return nil
	}

	watch := a.opts.Watch
	result := make(chan error, 1)

	a.entry.Compiler.Run(ctx, sink, files, func(stats *bundler.Stats, err error) {
		err = a.complete(stats, err)
		if !watch {
			result <- err
		}
	})

	if watch {
		return nil
	}

	return <-result
}

// complete handles the outcome of a cycle and returns the error ending the
// stream outside watch mode
func (a *Adapter) complete(stats *bundler.Stats, err error) error {
	if err != nil {
		if a.opts.Watch {
			a.logger.Error().Err(err).Msg("bundler failed")
		}

		a.done(nil, err)
		return err
	}

	var cycleErr error
	if stats != nil && stats.HasErrors() {
		cycleErr = codes.New(codes.CompilationFailure, "compile", "", errors.New(strings.Join(stats.Errors(), "\n")))
		a.notify(cycleErr)
	}

	a.done(stats, nil)

	if a.opts.Watch && !a.opts.IsSilent() {
		a.logger.Info().Msg("bundler is watching for changes")
	}

	return cycleErr
}

func (a *Adapter) notify(err error) {
	a.mu.Lock()
	fns := append([]func(error){}, a.compilationErrorFn...)
	a.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}
