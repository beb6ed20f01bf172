// Package cache keeps build state alive across adapter invocations.
//
// BuildCache is an in-process store of named build state: invocations that
// share a name and an options object share one BuildConfig, one compiler
// orchestrator and one file set. Nothing is evicted; the number of names is
// bounded by the caller's configuration.
//
// History is a separate, persistent record of completed compile cycles
// stored in BoltDB, used by the CLI.
package cache

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/compiler"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Entry is the build state stored under one name
type Entry struct {
	Options  *config.Options
	Config   *compiler.BuildConfig
	Compiler *compiler.Compiler
	Files    *vfile.Set

	// factory is opts.Factory as it was when the entry was created
	factory bundler.Factory
}

// NewEntry creates fresh build state for opts
func NewEntry(opts *config.Options, logger zerolog.Logger) (*Entry, error) {
	cfg, err := compiler.NewBuildConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Entry{
		Options:  opts,
		Config:   cfg,
		Compiler: compiler.New(cfg, logger),
		Files:    vfile.NewSet(),
		factory:  opts.Factory,
	}, nil
}

// BuildCache maps names to build state
type BuildCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func New() *BuildCache {
	return &BuildCache{entries: make(map[string]*Entry)}
}

// Key returns name, or a private key no other caller can guess when name is empty
func Key(name string) string {
	if name != "" {
		return name
	}

	return "private:" + uuid.NewString()
}

func (c *BuildCache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok
}

func (c *BuildCache) Set(key string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = e
}

func (c *BuildCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Resolve returns the entry to use for opts under key. The stored entry is
// reused as is when it was created for the very same options object, with the
// same bundler factory, and neither side disables caching. Otherwise create
// builds fresh state, which replaces the stored entry. The boolean reports reuse.
func (c *BuildCache) Resolve(key string, opts *config.Options, create func() (*Entry, error)) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stored, ok := c.entries[key]; ok && reusable(stored, opts) {
		return stored, true, nil
	}

	e, err := create()
	if err != nil {
		return nil, false, err
	}

	c.entries[key] = e
	return e, false, nil
}

func reusable(stored *Entry, requested *config.Options) bool {
	if stored.Options != requested || stored.Options.NoCache || requested.NoCache {
		return false
	}

	return sameFunc(stored.factory, requested.Factory)
}

func sameFunc(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.IsNil() || vb.IsNil() {
		return va.IsNil() == vb.IsNil()
	}

	return va.Pointer() == vb.Pointer()
}
