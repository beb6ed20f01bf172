package compiler

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/bundler/bundlertest"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/vfile"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

type result struct {
	stats *bundler.Stats
	err   error
}

// recorder is a done handler remembering every call
type recorder struct {
	mu    sync.Mutex
	calls []result
	ch    chan result
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan result, 16)}
}

func (r *recorder) handle(stats *bundler.Stats, err error) {
	r.mu.Lock()
	r.calls = append(r.calls, result{stats, err})
	r.mu.Unlock()

	r.ch <- result{stats, err}
}

func (r *recorder) wait(t *testing.T) result {
	t.Helper()

	select {
	case res := <-r.ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for compile cycle")
		return result{}
	}
}

func newTestCompiler(t *testing.T, factory *bundlertest.Factory, configure func(opts *config.Options)) (*Compiler, string) {
	t.Helper()

	dir := t.TempDir()
	opts := config.NewOptions(&bundler.Config{Name: "scripts", Context: dir, Output: bundler.Output{Path: "dist"}})
	opts.Factory = factory.New

	if configure != nil {
		configure(opts)
	}

	cfg, err := NewBuildConfig(opts)
	require.NoError(t, err)

	c := New(cfg, zerolog.Nop())
	t.Cleanup(func() { c.Close() })

	return c, dir
}

func addFiles(c *Compiler, dir string, files map[string]string) []*vfile.File {
	set := vfile.NewSet()
	for _, name := range []string{"a.js", "b.js", "c.js"} {
		contents, ok := files[name]
		if !ok {
			continue
		}

		f := vfile.New(filepath.Join(dir, name), []byte(contents))
		set.Add(f)
		c.Config().AddEntry(f, "")
	}

	return set.Files()
}

func TestCompiler_RunEmptyFileSetSkipsBundler(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, _ := newTestCompiler(t, factory, nil)
	rec := newRecorder()

	c.Run(context.Background(), &pipeline.Collector{}, nil, rec.handle)

	res := rec.wait(t)
	assert.Nil(t, res.stats)
	assert.NoError(t, res.err)
	assert.Empty(t, factory.Calls())
}

func TestCompiler_RunPushesEmittedAssets(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, nil)
	files := addFiles(c, dir, map[string]string{"a.js": "A", "b.js": "B"})
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, files, rec.handle)

	res := rec.wait(t)
	require.NoError(t, res.err)
	require.NotNil(t, res.stats)
	assert.False(t, res.stats.HasErrors())
	require.Len(t, factory.Calls(), 1)

	assert.ElementsMatch(t, []string{filepath.Join("dist", "a.js"), filepath.Join("dist", "b.js")}, sink.Paths())
	for _, f := range sink.Files() {
		assert.Equal(t, "dist", f.Base)
		assert.Equal(t, f.Basename(), f.Relative())
	}
}

func TestCompiler_RunDoesNotTouchDisk(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, nil)
	files := addFiles(c, dir, map[string]string{"a.js": "A"})
	rec := newRecorder()

	c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)
	require.NoError(t, rec.wait(t).err)

	assert.NoDirExists(t, filepath.Join(dir, "dist"))

	ok, err := afero.Exists(c.Config().Options().FS.Output, filepath.Join(InternalOutputPath, "a.js"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompiler_RunPrefersFreshOutputOverDisk(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, func(opts *config.Options) {
		cfg := opts.Configs[0]
		cfg.Output.Path = filepath.Join(cfg.Context, "dist")
	})

	stale := filepath.Join(dir, "dist", "a.js")
	osFs := afero.NewOsFs()
	require.NoError(t, osFs.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, afero.WriteFile(osFs, stale, []byte("STALE"), 0o644))

	files := addFiles(c, dir, map[string]string{"a.js": "console.log('fresh')"})
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, files, rec.handle)
	require.NoError(t, rec.wait(t).err)

	require.Equal(t, 1, sink.Len())
	assert.Equal(t, stale, sink.Files()[0].Path)
	assert.Equal(t, "console.log('fresh')", string(sink.Files()[0].Contents))
}

func TestCompiler_EmitAssetsStopsOnCancelledContext(t *testing.T) {
	c, _ := newTestCompiler(t, &bundlertest.Factory{}, nil)

	output := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(output, "/out/a.js", []byte("A"), 0o644))

	compilation := bundler.NewCompilation("scripts", "/out")
	compilation.Assets["a.js"] = &bundler.Asset{Emitted: true, Size: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &pipeline.Collector{}
	err := c.emitAssets(ctx, vfs.NewReal(output), compilation, sink)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sink.Len())

	err = c.emitAssets(context.Background(), vfs.NewReal(output), compilation, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Len())
}

func TestCompiler_RunUsesVirtualFiles(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, nil)
	files := addFiles(c, dir, map[string]string{"a.js": "virtual A"})
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, files, rec.handle)
	require.NoError(t, rec.wait(t).err)

	require.Equal(t, 1, sink.Len())
	assert.Equal(t, "virtual A", string(sink.Files()[0].Contents))
}

// emitter emits bundle.js and an unchanged bundle.js.map
type emitter struct {
	*bundlertest.Compiler
}

func (e *emitter) Compilers() []bundler.Compiler { return []bundler.Compiler{e} }

func (e *emitter) Run(ctx context.Context) (*bundler.Stats, error) {
	out := e.OutputFileSystem()
	target := filepath.Join(e.OutputPath(), "bundle.js")
	if err := afero.WriteFile(out, target, []byte("bundle"), 0o644); err != nil {
		return nil, err
	}

	comp := bundler.NewCompilation(e.Name(), e.OutputPath())
	comp.Assets["bundle.js"] = &bundler.Asset{Emitted: true, Size: 6}
	comp.Assets["bundle.js.map"] = &bundler.Asset{Size: 20}
	e.Hooks().AfterEmit(ctx, comp)

	return &bundler.Stats{Bundler: "emitter", Compilation: comp}, nil
}

func TestCompiler_RunSkipsUnemittedAssets(t *testing.T) {
	dir := t.TempDir()
	opts := config.NewOptions(&bundler.Config{Context: dir, Output: bundler.Output{Path: filepath.Join(dir, "out")}})
	opts.Factory = func(configs []*bundler.Config) (bundler.Instance, error) {
		return &emitter{bundlertest.New(configs[0])}, nil
	}

	cfg, err := NewBuildConfig(opts)
	require.NoError(t, err)

	c := New(cfg, zerolog.Nop())
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, []*vfile.File{vfile.New(filepath.Join(dir, "a.js"), []byte("A"))}, rec.handle)

	res := rec.wait(t)
	require.NoError(t, res.err)
	assert.False(t, res.stats.HasErrors())
	assert.Equal(t, []string{filepath.Join(dir, "out", "bundle.js")}, sink.Paths())
	assert.Equal(t, "bundle", string(sink.Files()[0].Contents))
}

// vanishing reports an emitted asset that is not in the output file system
type vanishing struct {
	*bundlertest.Compiler
}

func (v *vanishing) Compilers() []bundler.Compiler { return []bundler.Compiler{v} }

func (v *vanishing) Run(ctx context.Context) (*bundler.Stats, error) {
	comp := bundler.NewCompilation(v.Name(), v.OutputPath())
	comp.Assets["ghost.js?v=3"] = &bundler.Asset{Emitted: true}
	v.Hooks().AfterEmit(ctx, comp)

	return &bundler.Stats{Bundler: "vanishing", Compilation: comp}, nil
}

func TestCompiler_RunCollectsAssetEmitFailures(t *testing.T) {
	dir := t.TempDir()
	opts := config.NewOptions(&bundler.Config{Context: dir})
	opts.Factory = func(configs []*bundler.Config) (bundler.Instance, error) {
		return &vanishing{bundlertest.New(configs[0])}, nil
	}

	cfg, err := NewBuildConfig(opts)
	require.NoError(t, err)

	c := New(cfg, zerolog.Nop())
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, []*vfile.File{vfile.New(filepath.Join(dir, "a.js"), []byte("A"))}, rec.handle)

	res := rec.wait(t)
	require.NoError(t, res.err)
	require.True(t, res.stats.HasErrors())

	errs := res.stats.Compilation.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], codes.ErrAssetEmit)
	assert.Contains(t, errs[0].Error(), filepath.Join(InternalOutputPath, "ghost.js"))
	assert.Zero(t, sink.Len())
}

func TestCompiler_RunFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		factory *bundlertest.Factory
	}{
		{
			name:    "factory fails",
			factory: &bundlertest.Factory{Err: errors.New("bad config")},
		},
		{
			name:    "run fails",
			factory: &bundlertest.Factory{RunErr: errors.New("out of memory")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, dir := newTestCompiler(t, tt.factory, nil)
			files := addFiles(c, dir, map[string]string{"a.js": "A"})
			rec := newRecorder()

			c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)

			res := rec.wait(t)
			assert.Nil(t, res.stats)
			assert.ErrorIs(t, res.err, codes.ErrFatalBuild)
		})
	}
}

func TestCompiler_RunMultiCompiler(t *testing.T) {
	factory := &bundlertest.Factory{}
	dir := t.TempDir()
	opts := config.NewOptions(
		&bundler.Config{Name: "modern", Context: dir, Output: bundler.Output{Path: "dist", Filename: "[name].modern.js"}},
		&bundler.Config{Name: "legacy", Context: dir, Output: bundler.Output{Path: "dist", Filename: "[name].legacy.js"}},
	)
	opts.Factory = factory.New

	cfg, err := NewBuildConfig(opts)
	require.NoError(t, err)

	c := New(cfg, zerolog.Nop())
	files := addFiles(c, dir, map[string]string{"a.js": "A"})
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, files, rec.handle)

	res := rec.wait(t)
	require.NoError(t, res.err)
	assert.Len(t, res.stats.Children, 2)
	assert.Len(t, factory.Compilers(), 2)
	assert.ElementsMatch(t, []string{
		filepath.Join("dist", "a.modern.js"),
		filepath.Join("dist", "a.legacy.js"),
	}, sink.Paths())
}

func TestCompiler_RunRealFilesystemMode(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, func(opts *config.Options) {
		opts.FSMode = config.FromRealFilesystem
	})
	files := addFiles(c, dir, map[string]string{"a.js": "virtual A"})
	rec := newRecorder()

	c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)

	res := rec.wait(t)
	require.NoError(t, res.err)

	errs := res.stats.Compilation.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], fs.ErrNotExist)
}

func TestCompiler_RunLogsProgress(t *testing.T) {
	factory := &bundlertest.Factory{}
	dir := t.TempDir()
	opts := config.NewOptions(&bundler.Config{Name: "scripts", Context: dir})
	opts.Factory = factory.New
	opts.Progress = true

	cfg, err := NewBuildConfig(opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	c := New(cfg, zerolog.New(&buf))
	files := addFiles(c, dir, map[string]string{"a.js": "A"})
	rec := newRecorder()

	c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)
	require.NoError(t, rec.wait(t).err)

	out := buf.String()
	assert.Contains(t, out, `"bundler":"scripts"`)
	assert.Contains(t, out, `" 0% compiling"`)
	assert.Contains(t, out, `"100% done"`)
}

func TestCompiler_Watch(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, func(opts *config.Options) {
		opts.Watch = true
	})
	files := addFiles(c, dir, map[string]string{"a.js": "A"})
	rec := newRecorder()
	sink := &pipeline.Collector{}

	c.Run(context.Background(), sink, files, rec.handle)

	first := rec.wait(t)
	require.NoError(t, first.err)
	assert.Equal(t, 1, sink.Len())
	assert.True(t, factory.Last().Config.Watch)

	// Nothing changed: the asset is not emitted again
	c.Invalidate()
	second := rec.wait(t)
	require.NoError(t, second.err)
	assert.Empty(t, second.stats.Compilation.EmittedAssets())
	assert.Equal(t, 1, sink.Len())

	require.NoError(t, c.Close())
	assert.Len(t, factory.Last().Cycles(), 2)
}

func TestCompiler_WatchReplacesPreviousWatch(t *testing.T) {
	factory := &bundlertest.Factory{}
	c, dir := newTestCompiler(t, factory, func(opts *config.Options) {
		opts.Watch = true
	})
	files := addFiles(c, dir, map[string]string{"a.js": "A"})
	rec := newRecorder()

	c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)
	rec.wait(t)

	c.Run(context.Background(), &pipeline.Collector{}, files, rec.handle)
	rec.wait(t)

	compilers := factory.Compilers()
	require.Len(t, compilers, 2)

	// The first watch is closed: invalidating only reaches the second one
	c.Invalidate()
	rec.wait(t)

	assert.Len(t, compilers[0].Cycles(), 1)
	assert.Len(t, compilers[1].Cycles(), 2)
}
