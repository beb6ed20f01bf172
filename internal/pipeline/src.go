package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/packstream/internal/vfile"
)

// Src reads the files matching patterns under base. Patterns are slash
// separated and relative to base; "**" crosses directories and a leading "!"
// excludes. Each file's Base is the static prefix of the pattern that
// matched it, so Relative() keeps the structure below the glob.
func Src(fsys afero.Fs, base string, patterns ...string) ([]*vfile.File, error) {
	var include, exclude []matcher

	for _, pattern := range patterns {
		negate := strings.HasPrefix(pattern, "!")
		pattern = strings.TrimPrefix(pattern, "!")

		m, err := newMatcher(pattern)
		if err != nil {
			return nil, err
		}

		if negate {
			exclude = append(exclude, m)
		} else {
			include = append(include, m)
		}
	}

	var files []*vfile.File
	seen := make(map[string]struct{})

	for _, m := range include {
		root := filepath.Join(base, filepath.FromSlash(m.parent))

		err := afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}

			rel = filepath.ToSlash(rel)
			if !m.match(rel) || slices.ContainsFunc(exclude, func(x matcher) bool { return x.match(rel) }) {
				return nil
			}

			if _, ok := seen[p]; ok {
				return nil
			}

			data, err := afero.ReadFile(fsys, p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}

			seen[p] = struct{}{}
			files = append(files, &vfile.File{
				Path:     p,
				Base:     root,
				Contents: data,
				Stat:     info,
			})

			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return files, nil
}

type matcher struct {
	globs  []glob.Glob
	parent string
}

// newMatcher compiles pattern. "**/" also matches no directory at all.
func newMatcher(pattern string) (matcher, error) {
	pattern = strings.TrimPrefix(pattern, "./")

	variants := []string{pattern}
	if strings.HasPrefix(pattern, "**/") {
		variants = append(variants, strings.TrimPrefix(pattern, "**/"))
	}

	if strings.Contains(pattern, "/**/") {
		variants = append(variants, strings.ReplaceAll(pattern, "/**/", "/"))
	}

	m := matcher{parent: globParent(pattern)}
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return matcher{}, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}

		m.globs = append(m.globs, g)
	}

	return m, nil
}

func (m matcher) match(rel string) bool {
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}

	return false
}

// globParent returns the leading path segments free of glob syntax
func globParent(pattern string) string {
	segments := strings.Split(strings.TrimPrefix(pattern, "./"), "/")

	var parent []string
	for _, s := range segments[:len(segments)-1] {
		if strings.ContainsAny(s, "*?[]{}") {
			break
		}

		parent = append(parent, s)
	}

	return strings.Join(parent, "/")
}
