package bundlertest

import (
	"slices"
	"sync"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
)

// Factory records every instantiation it performs
type Factory struct {
	// Err is returned by New instead of an instance
	Err error

	// RunErr is set as FatalErr on every created compiler
	RunErr error

	mu        sync.Mutex
	calls     [][]*bundler.Config
	compilers []*Compiler
}

// New is a bundler.Factory
func (f *Factory) New(configs []*bundler.Config) (bundler.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, configs)

	if f.Err != nil {
		return nil, f.Err
	}

	if len(configs) == 0 {
		return nil, codes.New(codes.NoConfig, "bundlertest", "", nil)
	}

	created := make([]bundler.Compiler, 0, len(configs))
	for _, cfg := range configs {
		c := New(cfg)
		c.FatalErr = f.RunErr
		f.compilers = append(f.compilers, c)
		created = append(created, c)
	}

	if len(created) == 1 {
		return created[0], nil
	}

	return bundler.NewMultiCompiler(created...), nil
}

// Calls returns the configurations of every New call
func (f *Factory) Calls() [][]*bundler.Config {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.calls)
}

// Compilers returns every compiler created so far
func (f *Factory) Compilers() []*Compiler {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.compilers)
}

// Last returns the most recently created compiler, or nil
func (f *Factory) Last() *Compiler {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.compilers) == 0 {
		return nil
	}

	return f.compilers[len(f.compilers)-1]
}
