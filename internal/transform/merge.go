package transform

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// MergePaths are the directories merged pages are written under
type MergePaths struct {
	Global string
	Local  string
	HTML   string
}

type MergeOptions struct {
	Paths MergePaths

	// IsGlobal decides between the global and local directory for a page
	IsGlobal func(f *vfile.File) bool
}

func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		Paths: MergePaths{
			Global: "global",
			Local:  "local",
			HTML:   "html",
		},
		IsGlobal: func(f *vfile.File) bool {
			return strings.Contains(f.Path, "global")
		},
	}
}

// mergeExtensions may be dropped from a file name to find its page
var mergeExtensions = []string{"html", "css", "js"}

// Merge groups the html, css and js files of a page and writes them as one
// html file at the end of input: styles first, then markup, then scripts
type Merge struct {
	opts   MergeOptions
	logger zerolog.Logger

	mu    sync.Mutex
	order []string
	pages map[string][]*vfile.File
}

var _ pipeline.Stage = (*Merge)(nil)

func NewMerge(opts MergeOptions, logger zerolog.Logger) *Merge {
	defaults := DefaultMergeOptions()
	if opts.Paths == (MergePaths{}) {
		opts.Paths = defaults.Paths
	}

	if opts.IsGlobal == nil {
		opts.IsGlobal = defaults.IsGlobal
	}

	return &Merge{
		opts:   opts,
		logger: logger.With().Str("component", "merge").Logger(),
		pages:  make(map[string][]*vfile.File),
	}
}

func (m *Merge) Transform(_ context.Context, f *vfile.File, sink pipeline.Sink) error {
	if f.IsStream() {
		return codes.New(codes.StreamingUnsupported, "merge", f.Path, nil)
	}

	if f.IsNull() {
		sink.Push(f)
		return nil
	}

	name := PageName(f.Basename())

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[name]; !ok {
		m.order = append(m.order, name)
	}

	m.pages[name] = append(m.pages[name], f)
	return nil
}

func (m *Merge) Flush(_ context.Context, sink pipeline.Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		files := m.pages[name]
		out := m.outputPath(name, files[0])

		sink.Push(&vfile.File{
			Path:     out,
			Contents: m.merge(out, files),
		})
	}

	m.order = nil
	m.pages = make(map[string][]*vfile.File)

	return nil
}

func (m *Merge) outputPath(name string, first *vfile.File) string {
	dir := m.opts.Paths.Local
	if m.opts.IsGlobal(first) {
		dir = m.opts.Paths.Global
	}

	return filepath.Join(dir, m.opts.Paths.HTML, name+".html")
}

func (m *Merge) merge(out string, files []*vfile.File) []byte {
	var css, markup, js strings.Builder

	for _, f := range files {
		content := string(f.Contents)

		switch f.Extname() {
		case ".css":
			css.WriteString("<style>" + content + "</style>")
		case ".html":
			markup.WriteString(content)
		case ".js":
			js.WriteString("<script>(function exec(){" + content)

			// A line comment at the end would swallow the closing brace
			if i := strings.LastIndex(content, "\n"); i >= 0 && strings.Contains(content[i:], "//") {
				js.WriteString("\n")
			}

			js.WriteString("})();</script>")
		default:
			m.logger.Warn().
				Str("file", f.Path).
				Str("output", out).
				Msgf("extension %q is not handled, file not merged", f.Extname())
		}
	}

	return []byte(css.String() + markup.String() + js.String())
}

// PageName strips up to two trailing html, css or js extensions from a file
// name: page.html.js and page.html.html both belong to page
func PageName(basename string) string {
	parts := strings.Split(basename, ".")
	base, exts := parts[0], parts[1:]

	const limit = 2

	dropped := 0
	for i := len(exts) - 1; i >= 0 && dropped < limit; i-- {
		if !slices.Contains(mergeExtensions, exts[i]) {
			break
		}

		dropped++
	}

	kept := exts[:len(exts)-dropped]
	if len(kept) == 0 {
		return base
	}

	return base + "." + strings.Join(kept, ".")
}
