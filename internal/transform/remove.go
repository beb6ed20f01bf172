package transform

import (
	"bytes"
	"context"

	"golang.org/x/net/html/atom"

	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Remove strips every element matching its selectors from each page. The
// page is rewritten as the inner HTML of its head followed by its body.
type Remove struct {
	selectors []selector
}

var _ pipeline.Stage = (*Remove)(nil)

// NewRemove creates a Remove stage. No selectors means DefaultSelectors.
func NewRemove(selectors []string) (*Remove, error) {
	compiled, err := compileSelectors(selectors)
	if err != nil {
		return nil, err
	}

	return &Remove{selectors: compiled}, nil
}

func (r *Remove) Transform(_ context.Context, f *vfile.File, sink pipeline.Sink) error {
	if f.IsStream() {
		return codes.New(codes.StreamingUnsupported, "remove", f.Path, nil)
	}

	if f.IsNull() {
		sink.Push(f)
		return nil
	}

	doc, err := parse(f.Contents)
	if err != nil {
		return err
	}

	for _, s := range r.selectors {
		for _, n := range s.sel.MatchAll(doc) {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
		}
	}

	var buf bytes.Buffer
	for _, a := range []atom.Atom{atom.Head, atom.Body} {
		if n := find(doc, a); n != nil {
			if err := innerHTML(&buf, n); err != nil {
				return err
			}
		}
	}

	out := f.Clone()
	out.Contents = append([]byte{}, buf.Bytes()...)
	sink.Push(out)

	return nil
}

func (r *Remove) Flush(context.Context, pipeline.Sink) error {
	return nil
}
