// Package bundler defines the contract between the stream adapter and a
// module bundler. A bundler is created by a Factory from one or more
// configurations and is driven through one-shot (Run) or continuous (Watch)
// builds. Each build produces a Compilation whose assets are announced to
// after-emit hooks.
package bundler

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/Norgate-AV/packstream/internal/vfs"
)

// Handler receives the outcome of every compile cycle
type Handler func(stats *Stats, err error)

// Factory creates a bundler instance for the given configurations.
// More than one configuration yields a multi-compiler instance.
type Factory func(configs []*Config) (Instance, error)

// Instance is a runnable bundler: a single compiler or a multi-compiler
type Instance interface {
	// Run performs one build and returns its stats. A returned error is fatal;
	// compilation errors are reported through the stats.
	Run(ctx context.Context) (*Stats, error)

	// Watch builds, then rebuilds on change until ctx is done or the
	// returned Watching is closed. handler is called after every cycle.
	Watch(ctx context.Context, opts WatchOptions, handler Handler) (Watching, error)

	// Compilers lists the underlying single compilers
	Compilers() []Compiler
}

// Compiler is a single bundler bound to one configuration
type Compiler interface {
	Instance

	Name() string
	Context() string

	// OutputPath is the absolute directory assets are emitted to
	OutputPath() string

	// InputFileSystem is used for every read the compiler performs
	InputFileSystem() vfs.InputFileSystem
	SetInputFileSystem(fsys vfs.InputFileSystem)

	// RealFileSystem is the compiler's own default input file system
	RealFileSystem() vfs.InputFileSystem

	// OutputFileSystem receives emitted assets
	OutputFileSystem() afero.Fs
	SetOutputFileSystem(fsys afero.Fs)

	Hooks() *Hooks
}

// Watching controls a running watch
type Watching interface {
	// Invalidate triggers a rebuild without a file change
	Invalidate()

	// Close stops watching and waits for the running cycle to finish.
	// It must not be called from a Handler.
	Close() error
}

// WatchOptions tune change detection
type WatchOptions struct {
	// AggregateTimeout is how long changes are collected before rebuilding
	AggregateTimeout time.Duration `mapstructure:"aggregate_timeout"`

	// Ignored lists glob patterns of paths never watched
	Ignored []string `mapstructure:"ignored"`
}

const DefaultAggregateTimeout = 200 * time.Millisecond

func (o WatchOptions) Aggregate() time.Duration {
	if o.AggregateTimeout <= 0 {
		return DefaultAggregateTimeout
	}

	return o.AggregateTimeout
}
