package bundler

import (
	"maps"
	"path"
	"slices"
	"strings"
)

// Config is a declarative bundler configuration.
//
// The adapter never mutates a caller's Config; it derives its own copies with Clone.
type Config struct {
	// Name identifies the configuration in logs and stats
	Name string `mapstructure:"name"`

	// Context is the base directory for resolving entry points
	Context string `mapstructure:"context"`

	// Entry maps entry names to ordered module requests (e.g. "./src/app.js")
	Entry map[string][]string `mapstructure:"entry"`

	Output Output `mapstructure:"output"`

	// Watch is forced by the adapter to match the stream's watch option
	Watch bool `mapstructure:"watch"`

	// Format is one of iife, cjs or esm
	Format string `mapstructure:"format"`

	// Platform is one of browser, node or neutral
	Platform string `mapstructure:"platform"`

	Minify bool `mapstructure:"minify"`

	// Sourcemap is one of "", inline, linked, external or both
	Sourcemap string `mapstructure:"sourcemap"`

	External []string          `mapstructure:"external"`
	Loader   map[string]string `mapstructure:"loader"`
	Define   map[string]string `mapstructure:"define"`
}

// Output describes where and under which names assets are produced
type Output struct {
	// Path is the output directory
	Path string `mapstructure:"path"`

	// Filename is a template for entry outputs; "[name]" is replaced by the entry name
	Filename string `mapstructure:"filename"`

	// NameFunc derives output names when no Filename template is given
	NameFunc func(entryName string) string `mapstructure:"-"`
}

// FileName returns the output file name for an entry
func (o Output) FileName(entryName string) string {
	switch {
	case o.Filename != "":
		return strings.ReplaceAll(o.Filename, "[name]", entryName)
	case o.NameFunc != nil:
		return o.NameFunc(entryName)
	default:
		return entryName + ".js"
	}
}

// OutputStem is FileName without its extension
func (o Output) OutputStem(entryName string) string {
	name := o.FileName(entryName)
	return strings.TrimSuffix(name, path.Ext(name))
}

// Clone returns a deep copy of c
func (c *Config) Clone() *Config {
	clone := *c

	clone.Entry = make(map[string][]string, len(c.Entry))
	for name, modules := range c.Entry {
		clone.Entry[name] = slices.Clone(modules)
	}

	clone.External = slices.Clone(c.External)
	clone.Loader = maps.Clone(c.Loader)
	clone.Define = maps.Clone(c.Define)

	return &clone
}

// EntryNames returns the entry names in sorted order
func (c *Config) EntryNames() []string {
	return slices.Sorted(maps.Keys(c.Entry))
}

// AddModule appends module to the entry's list unless already present.
// It reports whether the list changed.
func (c *Config) AddModule(name, module string) bool {
	if c.Entry == nil {
		c.Entry = make(map[string][]string)
	}

	if slices.Contains(c.Entry[name], module) {
		return false
	}

	c.Entry[name] = append(c.Entry[name], module)
	return true
}

// HasEntries reports whether at least one entry has a module
func (c *Config) HasEntries() bool {
	for _, modules := range c.Entry {
		if len(modules) > 0 {
			return true
		}
	}

	return false
}
