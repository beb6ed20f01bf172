package bundler

import (
	"context"
	"sync"
)

type (
	// ProgressFunc receives a completion ratio in [0, 1] and a short message
	ProgressFunc func(percentage float64, msg string)

	// AfterEmitFunc runs once the assets of a compilation are in the output file system.
	// A returned error is recorded on the compilation; it does not abort the cycle.
	AfterEmitFunc func(ctx context.Context, c *Compilation) error
)

// Hooks are the extension points of a compiler
type Hooks struct {
	mu        sync.RWMutex
	progress  []ProgressFunc
	afterEmit []AfterEmitFunc
}

func (h *Hooks) OnProgress(fn ProgressFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.progress = append(h.progress, fn)
}

func (h *Hooks) OnAfterEmit(fn AfterEmitFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.afterEmit = append(h.afterEmit, fn)
}

func (h *Hooks) ReportProgress(percentage float64, msg string) {
	h.mu.RLock()
	fns := append([]ProgressFunc(nil), h.progress...)
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(percentage, msg)
	}
}

// AfterEmit runs every after-emit hook in registration order
func (h *Hooks) AfterEmit(ctx context.Context, c *Compilation) {
	h.mu.RLock()
	fns := append([]AfterEmitFunc(nil), h.afterEmit...)
	h.mu.RUnlock()

	for _, fn := range fns {
		if err := fn(ctx, c); err != nil {
			c.AddError(err)
		}
	}
}
