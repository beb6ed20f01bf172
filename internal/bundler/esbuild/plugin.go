package esbuild

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	pluginName       = "packstream"
	virtualNamespace = "packstream-vfs"
	entryNamespace   = "packstream-entry"
)

var (
	// relative and absolute requests; bare package imports are left to esbuild
	pathFilter  = `^(\.{1,2}/|/|\.{1,2}$)`
	entryFilter = `^` + entryNamespace + `:`

	resolveExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".css", ".json"}
)

func (c *Compiler) plugin() api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: entryFilter}, c.resolveEntry)
			build.OnResolve(api.OnResolveOptions{Filter: pathFilter}, c.resolve)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: entryNamespace}, c.loadEntry)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: virtualNamespace}, c.load)
		},
	}
}

func (c *Compiler) resolveEntry(args api.OnResolveArgs) (api.OnResolveResult, error) {
	return api.OnResolveResult{
		Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
		Namespace: entryNamespace,
	}, nil
}

// loadEntry synthesizes a module importing every module of a multi-module entry, in order
func (c *Compiler) loadEntry(args api.OnLoadArgs) (api.OnLoadResult, error) {
	modules, ok := c.cfg.Entry[args.Path]
	if !ok {
		return api.OnLoadResult{}, fmt.Errorf("unknown entry %q", args.Path)
	}

	var b strings.Builder
	for _, m := range modules {
		fmt.Fprintf(&b, "import %q;\n", filepath.ToSlash(m))
	}

	contents := b.String()
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: c.cfg.Context,
		Loader:     api.LoaderJS,
	}, nil
}

// resolve maps a request onto the input file system. Requests the input file
// system cannot satisfy are handed back to esbuild's resolver.
func (c *Compiler) resolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	request, suffix := splitQuery(args.Path)

	base := args.ResolveDir
	if base == "" {
		base = c.cfg.Context
	}

	target := request
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}

	found, err := c.lookup(target)
	if err != nil {
		return api.OnResolveResult{}, err
	}

	if found == "" {
		return api.OnResolveResult{}, nil
	}

	return api.OnResolveResult{
		Path:      found,
		Namespace: virtualNamespace,
		Suffix:    suffix,
	}, nil
}

// lookup finds the file a request names, trying known extensions and index files
func (c *Compiler) lookup(target string) (string, error) {
	input := c.InputFileSystem()

	candidates := []string{target}
	for _, ext := range resolveExtensions {
		candidates = append(candidates, target+ext)
	}

	for _, ext := range resolveExtensions {
		candidates = append(candidates, filepath.Join(target, "index"+ext))
	}

	for _, candidate := range candidates {
		info, err := input.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", err
		}
	}

	return "", nil
}

func (c *Compiler) load(args api.OnLoadArgs) (api.OnLoadResult, error) {
	data, err := c.InputFileSystem().ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	contents := string(data)
	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     c.loaderFor(args.Path),
	}, nil
}

func splitQuery(p string) (string, string) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i], p[i:]
	}

	return p, ""
}

type metafile struct {
	Inputs map[string]json.RawMessage `json:"inputs"`
}

// parseInputs lists the absolute paths of the files a build read.
// Synthesized entry modules are omitted.
func parseInputs(raw, context string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}

	inputs := make([]string, 0, len(meta.Inputs))
	for key := range meta.Inputs {
		if strings.HasPrefix(key, entryNamespace+":") {
			continue
		}

		p := strings.TrimPrefix(key, virtualNamespace+":")
		p, _ = splitQuery(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(context, p)
		}

		inputs = append(inputs, filepath.Clean(p))
	}

	slices.Sort(inputs)
	return slices.Compact(inputs), nil
}
