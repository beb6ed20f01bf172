// Package esbuild binds the bundler contract to esbuild's Go API.
//
// Every relative or absolute import, entry points included, is resolved and
// loaded through the compiler's input file system by a plugin, so virtual
// files are bundled exactly like files on disk. Bare imports (packages) fall
// through to esbuild's own resolver. Builds never write to disk: output files
// are copied into the compiler's output file system, which is in memory by
// default.
package esbuild

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

const Name = "esbuild"

// Compiler is an esbuild-backed bundler.Compiler
type Compiler struct {
	cfg    *bundler.Config
	real   vfs.InputFileSystem
	hooks  *bundler.Hooks
	mu     sync.Mutex
	input  vfs.InputFileSystem
	output afero.Fs

	// hashes holds the content hash of every asset last written, by asset name
	hashes map[string]string
}

var _ bundler.Compiler = (*Compiler)(nil)

// New creates a compiler reading from the operating system and emitting into memory
func New(cfg *bundler.Config) *Compiler {
	osfs := vfs.NewReal(afero.NewOsFs())

	return &Compiler{
		cfg:    cfg,
		real:   osfs,
		input:  osfs,
		output: afero.NewMemMapFs(),
		hooks:  &bundler.Hooks{},
		hashes: make(map[string]string),
	}
}

// Factory is a bundler.Factory creating esbuild compilers
func Factory(configs []*bundler.Config) (bundler.Instance, error) {
	switch len(configs) {
	case 0:
		return nil, codes.New(codes.NoConfig, "esbuild", "", nil)
	case 1:
		return New(configs[0]), nil
	}

	compilers := make([]bundler.Compiler, 0, len(configs))
	for _, cfg := range configs {
		compilers = append(compilers, New(cfg))
	}

	return bundler.NewMultiCompiler(compilers...), nil
}

func (c *Compiler) Name() string    { return c.cfg.Name }
func (c *Compiler) Context() string { return c.cfg.Context }

func (c *Compiler) OutputPath() string {
	p := c.cfg.Output.Path
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.cfg.Context, p)
}

func (c *Compiler) Compilers() []bundler.Compiler {
	return []bundler.Compiler{c}
}

func (c *Compiler) Hooks() *bundler.Hooks {
	return c.hooks
}

func (c *Compiler) RealFileSystem() vfs.InputFileSystem {
	return c.real
}

func (c *Compiler) InputFileSystem() vfs.InputFileSystem {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.input
}

func (c *Compiler) SetInputFileSystem(fsys vfs.InputFileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = fsys
}

func (c *Compiler) OutputFileSystem() afero.Fs {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.output
}

func (c *Compiler) SetOutputFileSystem(fsys afero.Fs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.output = fsys
}

// Run performs a single build
func (c *Compiler) Run(ctx context.Context) (*bundler.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := c.newContext()
	if err != nil {
		return nil, err
	}
	defer bctx.Dispose()

	return c.build(ctx, bctx), nil
}

func (c *Compiler) newContext() (api.BuildContext, error) {
	bctx, cerr := api.Context(c.buildOptions())
	if cerr != nil {
		return nil, codes.New(codes.FatalBuildFailure, "esbuild", c.cfg.Context, errors.New(joinMessages(cerr.Errors)))
	}

	return bctx, nil
}

// build runs one cycle on an existing esbuild context
func (c *Compiler) build(ctx context.Context, bctx api.BuildContext) *bundler.Stats {
	start := time.Now()
	c.hooks.ReportProgress(0.1, "building")
	result := bctx.Rebuild()

	comp := bundler.NewCompilation(c.cfg.Name, c.OutputPath())
	for _, msg := range result.Errors {
		comp.AddError(errors.New(formatMessage(msg)))
	}

	for _, msg := range result.Warnings {
		comp.Warnings = append(comp.Warnings, formatMessage(msg))
	}

	inputs, err := parseInputs(result.Metafile, c.cfg.Context)
	if err != nil {
		comp.AddError(fmt.Errorf("failed to read metafile: %w", err))
	}

	comp.Inputs = inputs

	c.hooks.ReportProgress(0.8, "emitting")
	parts := c.emit(comp, result.OutputFiles)

	c.hooks.ReportProgress(0.9, "after emitting")
	c.hooks.AfterEmit(ctx, comp)
	c.hooks.ReportProgress(1, "done")

	return &bundler.Stats{
		Bundler:     Name,
		Hash:        bundler.HashParts(parts),
		StartTime:   start,
		EndTime:     time.Now(),
		Compilation: comp,
	}
}

// emit copies output files into the output file system. Only assets whose
// contents changed since the last cycle are written and marked emitted.
func (c *Compiler) emit(comp *bundler.Compilation, files []api.OutputFile) map[string]string {
	out := c.OutputFileSystem()
	outDir := c.OutputPath()
	parts := make(map[string]string, len(files))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range files {
		name, err := filepath.Rel(outDir, f.Path)
		if err != nil || strings.HasPrefix(name, "..") {
			name = filepath.Base(f.Path)
		}

		name = filepath.ToSlash(name)
		sum := bundler.HashContents(f.Contents)
		parts[name] = sum

		asset := &bundler.Asset{Size: len(f.Contents)}
		comp.Assets[name] = asset

		if c.hashes[name] == sum {
			continue
		}

		if err := out.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			comp.AddError(fmt.Errorf("failed to create output directory for %s: %w", name, err))
			continue
		}

		if err := afero.WriteFile(out, f.Path, f.Contents, 0o644); err != nil {
			comp.AddError(fmt.Errorf("failed to write %s: %w", name, err))
			continue
		}

		asset.Emitted = true
		c.hashes[name] = sum
	}

	return parts
}

func (c *Compiler) buildOptions() api.BuildOptions {
	minify := c.cfg.Minify

	return api.BuildOptions{
		AbsWorkingDir:       c.cfg.Context,
		EntryPointsAdvanced: c.entryPoints(),
		Outdir:              c.OutputPath(),
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
		Format:              format(c.cfg.Format),
		Platform:            platform(c.cfg.Platform),
		Sourcemap:           sourcemap(c.cfg.Sourcemap),
		MinifyWhitespace:    minify,
		MinifyIdentifiers:   minify,
		MinifySyntax:        minify,
		External:            c.cfg.External,
		Loader:              loaders(c.cfg.Loader),
		Define:              c.cfg.Define,
		Plugins:             []api.Plugin{c.plugin()},
	}
}

// entryPoints maps every entry to an esbuild entry point. Entries with several
// modules get a synthesized module importing each of them in order.
func (c *Compiler) entryPoints() []api.EntryPoint {
	names := c.cfg.EntryNames()
	points := make([]api.EntryPoint, 0, len(names))

	for _, name := range names {
		modules := c.cfg.Entry[name]
		if len(modules) == 0 {
			continue
		}

		input := modules[0]
		if len(modules) > 1 {
			input = entryNamespace + ":" + name
		}

		points = append(points, api.EntryPoint{
			InputPath:  input,
			OutputPath: c.cfg.Output.OutputStem(name),
		})
	}

	return points
}

func joinMessages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, formatMessage(m))
	}

	return strings.Join(lines, "\n")
}

func formatMessage(m api.Message) string {
	text := m.Text
	if m.PluginName != "" {
		text = fmt.Sprintf("[plugin %s] %s", m.PluginName, text)
	}

	if m.Location == nil {
		return text
	}

	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, text)
}

func format(f string) api.Format {
	switch strings.ToLower(f) {
	case "iife":
		return api.FormatIIFE
	case "cjs", "commonjs":
		return api.FormatCommonJS
	case "esm", "module":
		return api.FormatESModule
	default:
		return api.FormatDefault
	}
}

func platform(p string) api.Platform {
	switch strings.ToLower(p) {
	case "node":
		return api.PlatformNode
	case "neutral":
		return api.PlatformNeutral
	default:
		return api.PlatformBrowser
	}
}

func sourcemap(s string) api.SourceMap {
	switch strings.ToLower(s) {
	case "inline":
		return api.SourceMapInline
	case "linked", "true":
		return api.SourceMapLinked
	case "external":
		return api.SourceMapExternal
	case "both":
		return api.SourceMapInlineAndExternal
	default:
		return api.SourceMapNone
	}
}

var loaderNames = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"json":    api.LoaderJSON,
	"css":     api.LoaderCSS,
	"text":    api.LoaderText,
	"base64":  api.LoaderBase64,
	"dataurl": api.LoaderDataURL,
	"file":    api.LoaderFile,
	"binary":  api.LoaderBinary,
	"copy":    api.LoaderCopy,
	"empty":   api.LoaderEmpty,
}

var defaultLoaders = map[string]api.Loader{
	".js":   api.LoaderJS,
	".mjs":  api.LoaderJS,
	".cjs":  api.LoaderJS,
	".jsx":  api.LoaderJSX,
	".ts":   api.LoaderTS,
	".mts":  api.LoaderTS,
	".cts":  api.LoaderTS,
	".tsx":  api.LoaderTSX,
	".json": api.LoaderJSON,
	".css":  api.LoaderCSS,
	".txt":  api.LoaderText,
}

func loaders(cfg map[string]string) map[string]api.Loader {
	if len(cfg) == 0 {
		return nil
	}

	out := make(map[string]api.Loader, len(cfg))
	for ext, name := range cfg {
		if l, ok := loaderNames[strings.ToLower(name)]; ok {
			out[ext] = l
		}
	}

	return out
}

// loaderFor picks the loader of a file served through the plugin
func (c *Compiler) loaderFor(p string) api.Loader {
	ext := path.Ext(filepath.ToSlash(p))

	if name, ok := c.cfg.Loader[ext]; ok {
		if l, ok := loaderNames[strings.ToLower(name)]; ok {
			return l
		}
	}

	if l, ok := defaultLoaders[ext]; ok {
		return l
	}

	return api.LoaderDefault
}
