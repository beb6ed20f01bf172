package esbuild

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

// Watch builds, then rebuilds whenever a file read by the previous build
// changes on disk. Virtual files are not watched; the caller invalidates the
// watch when they change.
func (c *Compiler) Watch(ctx context.Context, opts bundler.WatchOptions, handler bundler.Handler) (bundler.Watching, error) {
	ignored, err := compileIgnored(opts.Ignored)
	if err != nil {
		return nil, err
	}

	bctx, err := c.newContext()
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		bctx.Dispose()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watching{
		compiler:   c,
		build:      bctx,
		watcher:    watcher,
		opts:       opts,
		ignore:     ignored,
		handler:    handler,
		cancel:     cancel,
		invalidate: make(chan struct{}, 1),
		done:       make(chan struct{}),
		dirs:       make(map[string]struct{}),
		files:      make(map[string]struct{}),
	}

	go w.loop(wctx)

	return w, nil
}

type watching struct {
	compiler *Compiler
	build    api.BuildContext
	watcher  *fsnotify.Watcher
	opts     bundler.WatchOptions
	ignore   []ignorePattern
	handler  bundler.Handler
	cancel   context.CancelFunc

	invalidate chan struct{}
	done       chan struct{}

	closeOnce sync.Once
	closeErr  error

	// dirs are the watched directories; files the inputs of the last build
	dirs  map[string]struct{}
	files map[string]struct{}
}

func (w *watching) Invalidate() {
	select {
	case w.invalidate <- struct{}{}:
	default:
	}
}

func (w *watching) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		<-w.done
		w.closeErr = w.watcher.Close()
	})

	return w.closeErr
}

func (w *watching) loop(ctx context.Context) {
	defer close(w.done)
	defer w.build.Dispose()

	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.invalidate:
			w.cycle(ctx)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.relevant(event) {
				continue
			}

			if !w.aggregate(ctx) {
				return
			}

			w.cycle(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.handler(nil, fmt.Errorf("file watcher: %w", err))
		}
	}
}

// aggregate collects further changes until the aggregate timeout passes
// without one. It reports false when ctx ends first.
func (w *watching) aggregate(ctx context.Context) bool {
	timer := time.NewTimer(w.opts.Aggregate())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-w.invalidate:
		case event, ok := <-w.watcher.Events:
			if !ok {
				return false
			}

			if !w.relevant(event) {
				continue
			}
		}

		if !timer.Stop() {
			<-timer.C
		}

		timer.Reset(w.opts.Aggregate())
	}
}

func (w *watching) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	stats := w.compiler.build(ctx, w.build)
	w.track(stats.Compilation.Inputs)
	w.handler(stats, nil)
}

// track watches the directories of every input that lives on disk
func (w *watching) track(inputs []string) {
	owner, _ := w.compiler.InputFileSystem().(vfs.Owner)
	files := make(map[string]struct{}, len(inputs))

	for _, p := range inputs {
		if owner != nil && owner.Owns(p) {
			continue
		}

		if w.ignored(p) {
			continue
		}

		files[p] = struct{}{}

		dir := filepath.Dir(p)
		if _, ok := w.dirs[dir]; ok {
			continue
		}

		if err := w.watcher.Add(dir); err != nil {
			continue
		}

		w.dirs[dir] = struct{}{}
	}

	w.files = files
}

func (w *watching) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)
	if strings.HasPrefix(name, w.compiler.OutputPath()+string(filepath.Separator)) {
		return false
	}

	_, ok := w.files[name]
	return ok
}

// ignorePattern is a compiled WatchOptions.Ignored glob. Patterns without a
// slash match the base name only.
type ignorePattern struct {
	glob glob.Glob
	base bool
}

func compileIgnored(patterns []string) ([]ignorePattern, error) {
	compiled := make([]ignorePattern, 0, len(patterns))
	for _, p := range patterns {
		p = filepath.ToSlash(p)

		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}

		compiled = append(compiled, ignorePattern{glob: g, base: !strings.Contains(p, "/")})
	}

	return compiled, nil
}

func (w *watching) ignored(p string) bool {
	slashed := filepath.ToSlash(p)
	base := filepath.Base(p)

	for _, pattern := range w.ignore {
		if pattern.base {
			if pattern.glob.Match(base) {
				return true
			}

			continue
		}

		if pattern.glob.Match(slashed) {
			return true
		}
	}

	return false
}
