// Package pipeline moves virtual files through a chain of stages.
//
// A stage sees files one at a time through Transform and is told about the
// end of input through Flush. Files a stage pushes flow straight into the
// next stage, so stages that keep producing after Flush (a watching bundler)
// keep feeding the rest of the chain.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Sink receives files. Push may be called from several goroutines.
type Sink interface {
	Push(f *vfile.File)
}

type SinkFunc func(f *vfile.File)

func (fn SinkFunc) Push(f *vfile.File) { fn(f) }

// Stage is a streaming transform
type Stage interface {
	Transform(ctx context.Context, f *vfile.File, sink Sink) error
	Flush(ctx context.Context, sink Sink) error
}

// Pipeline chains stages in front of a final sink
type Pipeline struct {
	stages []Stage
	sink   Sink

	mu      sync.Mutex
	ctx     context.Context
	errs    error
	onError []func(error)
}

func New(sink Sink, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: stages,
		sink:   sink,
		ctx:    context.Background(),
	}
}

// OnError registers fn for errors raised by stages downstream of the first,
// including those raised after Run has returned
func (p *Pipeline) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onError = append(p.onError, fn)
}

// Run feeds files through the chain, then flushes every stage in order
func (p *Pipeline) Run(ctx context.Context, files []*vfile.File) error {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	if len(p.stages) == 0 {
		for _, f := range files {
			p.sink.Push(f)
		}

		return nil
	}

	next := p.sinkAt(1)
	for _, f := range files {
		if err := p.stages[0].Transform(ctx, f, next); err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
	}

	for i, stage := range p.stages {
		if err := stage.Flush(ctx, p.sinkAt(i+1)); err != nil {
			return err
		}
	}

	return p.Err()
}

// Err returns every error raised downstream so far
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.errs
}

func (p *Pipeline) sinkAt(i int) Sink {
	if i >= len(p.stages) {
		return p.sink
	}

	return &stageSink{p: p, i: i}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.errs = multierr.Append(p.errs, err)
	fns := append([]func(error){}, p.onError...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

type stageSink struct {
	p *Pipeline
	i int
}

func (s *stageSink) Push(f *vfile.File) {
	s.p.mu.Lock()
	ctx := s.p.ctx
	s.p.mu.Unlock()

	if err := s.p.stages[s.i].Transform(ctx, f, s.p.sinkAt(s.i+1)); err != nil {
		s.p.fail(fmt.Errorf("%s: %w", f.Path, err))
	}
}

// Collector is a Sink keeping every file pushed to it
type Collector struct {
	mu    sync.Mutex
	files []*vfile.File
}

func (c *Collector) Push(f *vfile.File) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.files = append(c.files, f)
}

func (c *Collector) Files() []*vfile.File {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*vfile.File(nil), c.files...)
}

// Paths returns the paths of the collected files in push order
func (c *Collector) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.files))
	for _, f := range c.files {
		paths = append(paths, f.Path)
	}

	return paths
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.files)
}
