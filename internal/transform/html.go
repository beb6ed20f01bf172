// Package transform holds pipeline stages reshaping HTML pages around a bundle:
// pulling inline tags out of a page, stripping them from it, and merging the
// bundled pieces of a page back into one file.
package transform

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultSelectors are used when a stage is given none
var DefaultSelectors = []string{"script"}

type selector struct {
	raw string
	sel cascadia.Selector
}

func compileSelectors(raw []string) ([]selector, error) {
	if len(raw) == 0 {
		raw = DefaultSelectors
	}

	out := make([]selector, 0, len(raw))
	for _, r := range raw {
		sel, err := cascadia.Compile(r)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", r, err)
		}

		out = append(out, selector{raw: r, sel: sel})
	}

	return out, nil
}

func parse(data []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	return doc, nil
}

// innerHTML renders the children of n. Text inside raw text elements is written as is.
func innerHTML(buf *bytes.Buffer, n *html.Node) error {
	raw := isRawText(n)

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if raw && c.Type == html.TextNode {
			buf.WriteString(c.Data)
			continue
		}

		if err := html.Render(buf, c); err != nil {
			return err
		}
	}

	return nil
}

func isRawText(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Xmp, atom.Iframe, atom.Noembed, atom.Noframes, atom.Noscript, atom.Plaintext:
		return true
	default:
		return false
	}
}

// find returns the first element with the given atom, depth first
func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}

	return nil
}
