package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"src/app.js", "src/app"},
		{"./src/app.js", "src/app"},
		{"app.ts", "app.ts"},
		{"lib.js.js", "lib.js"},
		{"styles/main.css", "styles/main.css"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, EntryName(test.input), "EntryName(%q)", test.input)
	}
}

func TestModulePath(t *testing.T) {
	assert.Equal(t, "./src/app.js", ModulePath("src/app.js"))
	assert.Equal(t, "./src/app.js", ModulePath("./src/app.js"))
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"app", "app.js"},
		{"src/app", "src/app.js"},
		{"app.js", "app.js"},
		{"theme.css", "theme.css"},
		{"worker.mjs", "worker.mjs"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, OutputName(test.input), "OutputName(%q)", test.input)
	}
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "bundle.js", StripQuery("bundle.js?abc123"))
	assert.Equal(t, "bundle.js", StripQuery("bundle.js"))
}

func TestRelativeTo(t *testing.T) {
	base := filepath.FromSlash("/project")

	assert.Equal(t, filepath.FromSlash("src/a.js"), RelativeTo(base, filepath.FromSlash("/project/src/a.js")))
	assert.Equal(t, "src/a.js", RelativeTo(base, "src/a.js"))
}
