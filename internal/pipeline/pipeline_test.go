package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/packstream/internal/vfile"
)

// upper uppercases contents and, on flush, pushes a summary file
type upper struct {
	seen int
	err  error
}

func (u *upper) Transform(_ context.Context, f *vfile.File, sink Sink) error {
	if u.err != nil {
		return u.err
	}

	u.seen++
	sink.Push(vfile.New(f.Path, []byte(strings.ToUpper(string(f.Contents)))))

	return nil
}

func (u *upper) Flush(_ context.Context, sink Sink) error {
	sink.Push(vfile.New("summary.txt", []byte("done")))
	return nil
}

// suffix renames every file
type suffix struct{ ext string }

func (s suffix) Transform(_ context.Context, f *vfile.File, sink Sink) error {
	out := f.Clone()
	out.Path += s.ext
	sink.Push(out)

	return nil
}

func (suffix) Flush(context.Context, Sink) error { return nil }

func TestPipeline_RunChainsStages(t *testing.T) {
	var out Collector
	p := New(&out, &upper{}, suffix{ext: ".bak"})

	err := p.Run(context.Background(), []*vfile.File{
		vfile.New("a.txt", []byte("a")),
		vfile.New("b.txt", []byte("b")),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt.bak", "b.txt.bak", "summary.txt.bak"}, out.Paths())
	assert.Equal(t, "A", string(out.Files()[0].Contents))
}

func TestPipeline_NoStages(t *testing.T) {
	var out Collector
	require.NoError(t, New(&out).Run(context.Background(), []*vfile.File{vfile.New("a", []byte("x"))}))
	assert.Equal(t, 1, out.Len())
}

func TestPipeline_FirstStageErrorStopsRun(t *testing.T) {
	var out Collector
	p := New(&out, &upper{err: errors.New("boom")})

	err := p.Run(context.Background(), []*vfile.File{vfile.New("a.txt", []byte("a"))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt: boom")
	assert.Equal(t, 0, out.Len())
}

func TestPipeline_DownstreamErrorsAreReported(t *testing.T) {
	var out Collector
	var reported []error

	p := New(&out, suffix{ext: ".x"}, &upper{err: errors.New("bad")})
	p.OnError(func(err error) { reported = append(reported, err) })

	err := p.Run(context.Background(), []*vfile.File{vfile.New("a", []byte("a"))})
	require.Error(t, err)
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0].Error(), "a.x: bad")
	assert.Equal(t, err, p.Err())

	// summary from the failing stage's Flush still reaches the sink
	assert.Equal(t, []string{"summary.txt"}, out.Paths())
}

func TestSinkFunc(t *testing.T) {
	var got []string
	sink := SinkFunc(func(f *vfile.File) { got = append(got, f.Path) })

	sink.Push(vfile.New("a", nil))
	assert.Equal(t, []string{"a"}, got)
}

func writeTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()

	for p, contents := range files {
		require.NoError(t, afero.WriteFile(fsys, filepath.FromSlash(p), []byte(contents), 0o644))
	}
}

func TestSrc(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{
		"/work/src/app.js":          "app",
		"/work/src/lib/util.js":     "util",
		"/work/src/lib/util.css":    "css",
		"/work/src/vendor/big.js":   "big",
		"/work/pages/index.html":    "<p>",
		"/work/node_modules/x/a.js": "x",
	})

	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantRel  []string
	}{
		{
			name:     "recursive glob",
			patterns: []string{"src/**/*.js"},
			want:     []string{"/work/src/app.js", "/work/src/lib/util.js", "/work/src/vendor/big.js"},
			wantRel:  []string{"app.js", "lib/util.js", "vendor/big.js"},
		},
		{
			name:     "negation",
			patterns: []string{"src/**/*.js", "!src/vendor/**"},
			want:     []string{"/work/src/app.js", "/work/src/lib/util.js"},
			wantRel:  []string{"app.js", "lib/util.js"},
		},
		{
			name:     "static path",
			patterns: []string{"./pages/index.html"},
			want:     []string{"/work/pages/index.html"},
			wantRel:  []string{"index.html"},
		},
		{
			name:     "patterns are deduplicated",
			patterns: []string{"src/*.js", "src/app.js"},
			want:     []string{"/work/src/app.js"},
			wantRel:  []string{"app.js"},
		},
		{
			name:     "missing directory",
			patterns: []string{"nope/**/*.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Src(fsys, "/work", tt.patterns...)
			require.NoError(t, err)

			var got, rel []string
			for _, f := range files {
				got = append(got, filepath.ToSlash(f.Path))
				rel = append(rel, filepath.ToSlash(f.Relative()))
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("paths mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tt.wantRel, rel); diff != "" {
				t.Errorf("relative paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSrc_InvalidGlob(t *testing.T) {
	_, err := Src(afero.NewMemMapFs(), "/work", "src/[.js")
	assert.ErrorContains(t, err, "invalid glob")
}

func TestDest(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dest := NewDest(fsys, "/out")

	dest.Push(&vfile.File{Path: "/build/js/main.js", Base: "/build", Contents: []byte("main")})
	dest.Push(vfile.New("styles.css", []byte("css")))
	dest.Push(&vfile.File{Path: "null.js"})

	require.NoError(t, dest.Err())
	assert.Equal(t, []string{
		filepath.Join("/out", "js", "main.js"),
		filepath.Join("/out", "styles.css"),
	}, dest.Written())

	data, err := afero.ReadFile(fsys, filepath.Join("/out", "js", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "main", string(data))

	exists, err := afero.Exists(fsys, filepath.Join("/out", "null.js"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDest_CollectsWriteErrors(t *testing.T) {
	dest := NewDest(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/out")

	dest.Push(vfile.New("a.js", []byte("a")))
	dest.Push(vfile.New("b.js", []byte("b")))

	err := dest.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write a.js")
	assert.Contains(t, err.Error(), "failed to write b.js")
	assert.Empty(t, dest.Written())
}
