package transform

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// ExtractPathFunc names the file receiving the content matched by selector in f
type ExtractPathFunc func(f *vfile.File, selector string) string

// ExtractPath appends ".js" for scripts, ".css" for styles and the dashed
// selector otherwise: page.html yields page.html.js, page.html.css or
// page.html-div-.note
func ExtractPath(f *vfile.File, selector string) string {
	var suffix string
	switch selector {
	case "script":
		suffix = ".js"
	case "style":
		suffix = ".css"
	default:
		suffix = "-" + strings.Join(strings.Fields(selector), "-")
	}

	return filepath.Join(filepath.Dir(f.Path), f.Basename()+suffix)
}

// Extract replaces every page with the inner HTML of its elements matching
// each selector, one file per selector with matches
type Extract struct {
	selectors  []selector
	outputPath ExtractPathFunc
}

var _ pipeline.Stage = (*Extract)(nil)

// NewExtract creates an Extract stage. No selectors means DefaultSelectors;
// a nil outputPath means ExtractPath.
func NewExtract(selectors []string, outputPath ExtractPathFunc) (*Extract, error) {
	compiled, err := compileSelectors(selectors)
	if err != nil {
		return nil, err
	}

	if outputPath == nil {
		outputPath = ExtractPath
	}

	return &Extract{selectors: compiled, outputPath: outputPath}, nil
}

func (e *Extract) Transform(_ context.Context, f *vfile.File, sink pipeline.Sink) error {
	if f.IsStream() {
		return codes.New(codes.StreamingUnsupported, "extract", f.Path, nil)
	}

	if f.IsNull() {
		sink.Push(f)
		return nil
	}

	doc, err := parse(f.Contents)
	if err != nil {
		return err
	}

	for _, s := range e.selectors {
		var buf bytes.Buffer
		for _, n := range s.sel.MatchAll(doc) {
			if err := innerHTML(&buf, n); err != nil {
				return err
			}
		}

		if buf.Len() == 0 {
			continue
		}

		sink.Push(&vfile.File{
			Path:     e.outputPath(f, s.raw),
			Base:     f.Base,
			Contents: buf.Bytes(),
		})
	}

	return nil
}

func (e *Extract) Flush(context.Context, pipeline.Sink) error {
	return nil
}
