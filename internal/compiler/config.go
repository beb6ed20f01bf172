package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/utils"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// InternalOutputPath is where compilers emit when the caller gave no absolute
// output directory. It only ever exists in the output file system.
var InternalOutputPath = filepath.FromSlash("/__packstream/build__")

// BuildConfig owns the bundler configurations of a build. They are copies of
// the caller's configurations, normalized once and then only ever extended
// with entries.
type BuildConfig struct {
	opts    *config.Options
	context string

	// publicOutputPath is the caller's output directory, used to name re-emitted assets
	publicOutputPath string

	mu      sync.RWMutex
	configs []*bundler.Config
}

func NewBuildConfig(opts *config.Options) (*BuildConfig, error) {
	if len(opts.Configs) == 0 {
		return nil, codes.New(codes.NoConfig, "buildconfig", "", nil)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	b := &BuildConfig{opts: opts}

	for i, orig := range opts.Configs {
		if orig == nil {
			return nil, codes.New(codes.NoConfig, "buildconfig", "", fmt.Errorf("configuration %d is nil", i))
		}

		cfg := b.initConfig(orig, cwd)

		if i == 0 {
			b.context = cfg.Context
		} else if cfg.Context != b.context {
			return nil, codes.New(codes.DivergentContext, "buildconfig", cfg.Context,
				fmt.Errorf("%q differs from %q", cfg.Context, b.context))
		}

		b.configs = append(b.configs, cfg)
	}

	for i, orig := range opts.Configs {
		for _, name := range orig.EntryNames() {
			for _, module := range orig.Entry[name] {
				b.addModule(b.configs[i], module, name)
			}
		}
	}

	if opts.EntryFiles != nil {
		for _, p := range opts.EntryFiles.Items() {
			b.AddEntryPath(p, "")
		}

		opts.EntryFiles.Subscribe(func(paths ...string) {
			for _, p := range paths {
				b.AddEntryPath(p, "")
			}
		})
	}

	return b, nil
}

// initConfig derives the adapter-owned copy of a caller configuration
func (b *BuildConfig) initConfig(orig *bundler.Config, cwd string) *bundler.Config {
	cfg := orig.Clone()
	cfg.Entry = make(map[string][]string)
	cfg.Watch = b.opts.Watch

	switch {
	case cfg.Context == "":
		cfg.Context = cwd
	case !filepath.IsAbs(cfg.Context):
		cfg.Context = filepath.Join(cwd, cfg.Context)
	}

	cfg.Context = filepath.Clean(cfg.Context)

	if b.publicOutputPath == "" {
		b.publicOutputPath = orig.Output.Path
	}

	if cfg.Output.Filename == "" {
		cfg.Output.NameFunc = utils.OutputName

		if !filepath.IsAbs(cfg.Output.Path) {
			cfg.Output.Path = InternalOutputPath
		}
	}

	return cfg
}

// AddEntry registers f as an entry of every configuration. The entry is named
// name, else f.Named, else after f's path relative to the context without ".js".
func (b *BuildConfig) AddEntry(f *vfile.File, name string) {
	if name == "" {
		name = f.Named
	}

	b.AddEntryPath(f.Path, name)
}

// AddEntryPath is AddEntry for a bare path
func (b *BuildConfig) AddEntryPath(p, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cfg := range b.configs {
		b.addModule(cfg, p, name)
	}
}

func (b *BuildConfig) addModule(cfg *bundler.Config, p, name string) {
	rel := utils.RelativeTo(cfg.Context, p)
	if name == "" {
		name = utils.EntryName(rel)
	}

	cfg.AddModule(name, utils.ModulePath(rel))
}

// HasValidEntries reports whether every configuration has at least one entry module
func (b *BuildConfig) HasValidEntries() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.configs) == 0 {
		return false
	}

	for _, cfg := range b.configs {
		if !cfg.HasEntries() {
			return false
		}
	}

	return true
}

// Configs returns a snapshot of the configurations for one compile cycle
func (b *BuildConfig) Configs() []*bundler.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*bundler.Config, 0, len(b.configs))
	for _, cfg := range b.configs {
		out = append(out, cfg.Clone())
	}

	return out
}

func (b *BuildConfig) Context() string {
	return b.context
}

func (b *BuildConfig) PublicOutputPath() string {
	return b.publicOutputPath
}

func (b *BuildConfig) Options() *config.Options {
	return b.opts
}
