package bundler

import (
	"maps"
	"slices"
	"sync"

	"go.uber.org/multierr"
)

// Asset is an output artifact of a compilation
type Asset struct {
	// Emitted is true when the asset was written during this cycle
	Emitted bool

	Size int
}

// Compilation is the result of one compiler's build cycle
type Compilation struct {
	Name       string
	OutputPath string
	Assets     map[string]*Asset

	// Inputs are the files read during the build, as absolute paths
	Inputs   []string
	Warnings []string

	mu     sync.Mutex
	errors []error
}

func NewCompilation(name, outputPath string) *Compilation {
	return &Compilation{
		Name:       name,
		OutputPath: outputPath,
		Assets:     make(map[string]*Asset),
	}
}

// AddError records err; combined errors are recorded one by one
func (c *Compilation) AddError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, multierr.Errors(err)...)
}

func (c *Compilation) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.errors)
}

func (c *Compilation) AssetNames() []string {
	return slices.Sorted(maps.Keys(c.Assets))
}

// EmittedAssets lists the assets written during this cycle, sorted by name
func (c *Compilation) EmittedAssets() []string {
	var names []string
	for _, name := range c.AssetNames() {
		if c.Assets[name].Emitted {
			names = append(names, name)
		}
	}

	return names
}
