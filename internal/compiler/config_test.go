package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

func newTestBuildConfig(t *testing.T, configs ...*bundler.Config) (*BuildConfig, string) {
	t.Helper()

	dir := t.TempDir()
	if len(configs) == 0 {
		configs = []*bundler.Config{{Context: dir}}
	}

	b, err := NewBuildConfig(config.NewOptions(configs...))
	require.NoError(t, err)

	return b, dir
}

func TestNewBuildConfig_RequiresConfig(t *testing.T) {
	_, err := NewBuildConfig(config.NewOptions())
	assert.ErrorIs(t, err, codes.ErrNoConfig)

	_, err = NewBuildConfig(config.NewOptions(nil))
	assert.ErrorIs(t, err, codes.ErrNoConfig)
}

func TestNewBuildConfig_DivergentContexts(t *testing.T) {
	_, err := NewBuildConfig(config.NewOptions(
		&bundler.Config{Context: t.TempDir()},
		&bundler.Config{Context: t.TempDir()},
	))
	assert.ErrorIs(t, err, codes.ErrDivergentContext)
}

func TestNewBuildConfig_DoesNotMutateCallerConfig(t *testing.T) {
	dir := t.TempDir()
	orig := &bundler.Config{
		Context: dir,
		Entry:   map[string][]string{"main": {"src/main.js"}},
		Output:  bundler.Output{Path: "dist"},
	}

	opts := config.NewOptions(orig)
	opts.Watch = true

	b, err := NewBuildConfig(opts)
	require.NoError(t, err)

	b.AddEntry(vfile.New(filepath.Join(dir, "src", "app.js"), []byte("app")), "")

	assert.Equal(t, map[string][]string{"main": {"src/main.js"}}, orig.Entry)
	assert.Equal(t, "dist", orig.Output.Path)
	assert.False(t, orig.Watch)
	assert.Nil(t, orig.Output.NameFunc)

	cfg := b.Configs()[0]
	assert.True(t, cfg.Watch)
	assert.Equal(t, InternalOutputPath, cfg.Output.Path)
	assert.Equal(t, "dist", b.PublicOutputPath())
	assert.Equal(t, map[string][]string{
		"main":    {"./src/main.js"},
		"src/app": {"./src/app.js"},
	}, cfg.Entry)
}

func TestNewBuildConfig_Output(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "public")

	tests := []struct {
		name     string
		output   bundler.Output
		wantPath string
		wantFile string
	}{
		{
			name:     "relative path is redirected",
			output:   bundler.Output{Path: "dist"},
			wantPath: InternalOutputPath,
			wantFile: "page.html",
		},
		{
			name:     "absolute path is kept",
			output:   bundler.Output{Path: out},
			wantPath: out,
			wantFile: "page.html",
		},
		{
			name:     "filename template is kept",
			output:   bundler.Output{Path: "dist", Filename: "[name].bundle.js"},
			wantPath: "dist",
			wantFile: "page.html.bundle.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBuildConfig(config.NewOptions(&bundler.Config{Context: dir, Output: tt.output}))
			require.NoError(t, err)

			cfg := b.Configs()[0]
			assert.Equal(t, tt.wantPath, cfg.Output.Path)
			assert.Equal(t, tt.wantFile, cfg.Output.FileName("page.html"))
		})
	}
}

func TestNewBuildConfig_DefaultsContextToWorkingDir(t *testing.T) {
	b, err := NewBuildConfig(config.NewOptions(&bundler.Config{}))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(b.Context()))
}

func TestBuildConfig_AddEntryIsIdempotent(t *testing.T) {
	b, dir := newTestBuildConfig(t)
	f := vfile.New(filepath.Join(dir, "src", "app.js"), []byte("app"))

	b.AddEntry(f, "")
	b.AddEntry(f, "")

	assert.Equal(t, map[string][]string{"src/app": {"./src/app.js"}}, b.Configs()[0].Entry)
}

func TestBuildConfig_EntryNames(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		named    string
		explicit string
		want     string
	}{
		{
			name: "derived from path",
			path: "src/app.js",
			want: "src/app",
		},
		{
			name: "non js extension kept",
			path: "styles/site.css",
			want: "styles/site.css",
		},
		{
			name:  "declared by file",
			path:  "src/app.js",
			named: "main",
			want:  "main",
		},
		{
			name:     "explicit name wins",
			path:     "src/app.js",
			named:    "main",
			explicit: "vendor",
			want:     "vendor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, dir := newTestBuildConfig(t)

			f := vfile.New(filepath.Join(dir, filepath.FromSlash(tt.path)), []byte("x"))
			f.Named = tt.named
			b.AddEntry(f, tt.explicit)

			assert.Equal(t, []string{tt.want}, b.Configs()[0].EntryNames())
		})
	}
}

func TestBuildConfig_HasValidEntries(t *testing.T) {
	b, dir := newTestBuildConfig(t)
	assert.False(t, b.HasValidEntries())

	b.AddEntryPath(filepath.Join(dir, "a.js"), "")
	assert.True(t, b.HasValidEntries())
}

func TestBuildConfig_AddEntryReachesEveryConfig(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuildConfig(config.NewOptions(
		&bundler.Config{Name: "modern", Context: dir},
		&bundler.Config{Name: "legacy", Context: dir},
	))
	require.NoError(t, err)

	b.AddEntryPath(filepath.Join(dir, "a.js"), "")

	for _, cfg := range b.Configs() {
		assert.Equal(t, []string{"./a.js"}, cfg.Entry["a"], cfg.Name)
	}
	assert.True(t, b.HasValidEntries())
}

func TestBuildConfig_EntryFilesSubscription(t *testing.T) {
	dir := t.TempDir()
	opts := config.NewOptions(&bundler.Config{Context: dir})
	opts.EntryFiles = vfile.NewList(filepath.Join(dir, "a.js"))

	b, err := NewBuildConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, b.Configs()[0].EntryNames())

	opts.EntryFiles.Push(filepath.Join(dir, "b.js"))
	assert.Equal(t, []string{"a", "b"}, b.Configs()[0].EntryNames())
}

func TestBuildConfig_ConfigsAreSnapshots(t *testing.T) {
	b, dir := newTestBuildConfig(t)
	b.AddEntryPath(filepath.Join(dir, "a.js"), "")

	snapshot := b.Configs()[0]
	b.AddEntryPath(filepath.Join(dir, "b.js"), "")

	assert.Equal(t, []string{"a"}, snapshot.EntryNames())
	assert.Equal(t, []string{"a", "b"}, b.Configs()[0].EntryNames())
}
