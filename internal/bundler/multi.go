package bundler

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// MultiCompiler drives several compilers as one unit. Run completes only when
// every child has completed, and fails if any child fails.
type MultiCompiler struct {
	compilers []Compiler
}

func NewMultiCompiler(compilers ...Compiler) *MultiCompiler {
	return &MultiCompiler{compilers: compilers}
}

func (m *MultiCompiler) Compilers() []Compiler {
	return slices.Clone(m.compilers)
}

func (m *MultiCompiler) Run(ctx context.Context) (*Stats, error) {
	children := make([]*Stats, len(m.compilers))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range m.compilers {
		g.Go(func() error {
			stats, err := c.Run(gctx)
			if err != nil {
				return fmt.Errorf("compiler %q: %w", c.Name(), err)
			}

			children[i] = stats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return combine(children), nil
}

// Watch starts every child. handler is first called once every child has
// completed a cycle, then after each further child cycle with the latest
// stats of all children.
func (m *MultiCompiler) Watch(ctx context.Context, opts WatchOptions, handler Handler) (Watching, error) {
	var mu sync.Mutex
	latest := make([]*Stats, len(m.compilers))
	watchings := make(multiWatching, 0, len(m.compilers))

	for i, c := range m.compilers {
		w, err := c.Watch(ctx, opts, func(stats *Stats, err error) {
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				handler(nil, err)
				return
			}

			latest[i] = stats
			if slices.Contains(latest, nil) {
				return
			}

			handler(combine(latest), nil)
		})
		if err != nil {
			return nil, multierr.Append(err, watchings.Close())
		}

		watchings = append(watchings, w)
	}

	return watchings, nil
}

func combine(children []*Stats) *Stats {
	combined := &Stats{Children: slices.Clone(children)}
	hashes := make(map[string]string, len(children))

	for i, child := range children {
		if combined.Bundler == "" {
			combined.Bundler = child.Bundler
		}

		if combined.StartTime.IsZero() || child.StartTime.Before(combined.StartTime) {
			combined.StartTime = child.StartTime
		}

		if child.EndTime.After(combined.EndTime) {
			combined.EndTime = child.EndTime
		}

		hashes[fmt.Sprint(i)] = child.Hash
	}

	combined.Hash = HashParts(hashes)
	return combined
}

type multiWatching []Watching

func (m multiWatching) Invalidate() {
	for _, w := range m {
		w.Invalidate()
	}
}

func (m multiWatching) Close() error {
	var err error
	for _, w := range m {
		err = multierr.Append(err, w.Close())
	}

	return err
}
