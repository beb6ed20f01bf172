package utils

import (
	"path"
	"path/filepath"
	"strings"
)

// CleanRelative strips a leading "./" from p
func CleanRelative(p string) string {
	return strings.TrimPrefix(p, "./")
}

// TrimJSExt strips a trailing ".js" module suffix
func TrimJSExt(name string) string {
	return strings.TrimSuffix(name, ".js")
}

// EntryName derives an entry name from a path relative to the build context
func EntryName(rel string) string {
	return TrimJSExt(CleanRelative(filepath.ToSlash(rel)))
}

// ModulePath returns the "./"-prefixed module request for a context-relative path
func ModulePath(rel string) string {
	return "./" + CleanRelative(filepath.ToSlash(rel))
}

// OutputName derives an output file name from an entry name: the ".js" module
// suffix is stripped and the original extension, or ".js", re-appended.
func OutputName(entryName string) string {
	ext := path.Ext(entryName)
	if ext == "" {
		ext = ".js"
	}

	return strings.TrimSuffix(TrimJSExt(entryName), ext) + ext
}

// StripQuery removes a "?query" suffix from an asset name
func StripQuery(name string) string {
	name, _, _ = strings.Cut(name, "?")
	return name
}

// RelativeTo returns p relative to base when p is absolute, otherwise p unchanged.
// Paths outside base are returned as-is.
func RelativeTo(base, p string) string {
	if !filepath.IsAbs(p) {
		return p
	}

	rel, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}

	return rel
}
