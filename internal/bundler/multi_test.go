package bundler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/bundler/bundlertest"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

func newChild(t *testing.T, name, contents string) *bundlertest.Compiler {
	t.Helper()

	src := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(src, filepath.Join("/work", name+".js"), []byte(contents), 0o644))

	c := bundlertest.New(&bundler.Config{
		Name:    name,
		Context: "/work",
		Entry:   map[string][]string{name: {"./" + name + ".js"}},
		Output:  bundler.Output{Path: "dist"},
	})
	c.SetInputFileSystem(vfs.NewReal(src))

	return c
}

func TestMultiCompiler_RunCombinesChildren(t *testing.T) {
	a := newChild(t, "a", "A")
	b := newChild(t, "b", "B")

	m := bundler.NewMultiCompiler(a, b)
	stats, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, stats.Children, 2)
	assert.Nil(t, stats.Compilation)
	assert.Equal(t, bundlertest.Name, stats.Bundler)
	assert.NotEmpty(t, stats.Hash)
	assert.Len(t, stats.Compilations(), 2)
	assert.Equal(t, []string{"a.js"}, stats.Children[0].Compilation.EmittedAssets())
	assert.Equal(t, []string{"b.js"}, stats.Children[1].Compilation.EmittedAssets())
}

func TestMultiCompiler_RunFailsWhenAnyChildFails(t *testing.T) {
	a := newChild(t, "a", "A")
	b := newChild(t, "b", "B")
	b.FatalErr = errors.New("out of memory")

	_, err := bundler.NewMultiCompiler(a, b).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, codes.ErrFatalBuild)
	assert.Contains(t, err.Error(), `compiler "b"`)
}

func TestMultiCompiler_WatchWaitsForAllChildren(t *testing.T) {
	a := newChild(t, "a", "A")
	b := newChild(t, "b", "B")

	var mu sync.Mutex
	var calls []*bundler.Stats
	got := make(chan struct{}, 8)

	w, err := bundler.NewMultiCompiler(a, b).Watch(context.Background(), bundler.WatchOptions{}, func(stats *bundler.Stats, err error) {
		assert.NoError(t, err)

		mu.Lock()
		calls = append(calls, stats)
		mu.Unlock()

		got <- struct{}{}
	})
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}

	mu.Lock()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Children, 2)
	mu.Unlock()

	w.Invalidate()

	for range 2 {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("handler not called after invalidate")
		}
	}

	require.NoError(t, w.Close())

	assert.Len(t, a.Cycles(), 2)
	assert.Len(t, b.Cycles(), 2)
}

func TestMultiCompiler_Compilers(t *testing.T) {
	a := newChild(t, "a", "A")
	b := newChild(t, "b", "B")

	m := bundler.NewMultiCompiler(a, b)
	children := m.Compilers()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Name())
	assert.Equal(t, "b", children[1].Name())
}
