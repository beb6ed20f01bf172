package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/cache"
	"github.com/Norgate-AV/packstream/internal/config"
	"github.com/Norgate-AV/packstream/internal/pipeline"
	"github.com/Norgate-AV/packstream/internal/stream"
	"github.com/Norgate-AV/packstream/internal/transform"
	"github.com/Norgate-AV/packstream/internal/vfile"
)

var buildCmd = &cobra.Command{
	Use:   "build [globs...]",
	Short: "Bundle sources once",
	Long: `Read the files matching the given globs (or the src setting), bundle them
and write the emitted assets to the destination directory.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.ArbitraryArgs,
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(opts.Verbose)

	b, err := newBuild(opts, afero.NewOsFs(), logger)
	if err != nil {
		return err
	}
	defer b.close()

	return b.run(cmd.Context())
}

// build wires sources, the stream adapter and the destination of one CLI invocation
type build struct {
	opts    *config.Options
	fs      afero.Fs
	logger  zerolog.Logger
	cwd     string
	history *cache.History

	// assets keeps the latest version of every emitted asset
	assets *vfile.Set
	pages  []*vfile.File

	mu sync.Mutex
}

func newBuild(opts *config.Options, fsys afero.Fs, logger zerolog.Logger) (*build, error) {
	if len(opts.Src) == 0 {
		return nil, fmt.Errorf("no source files given")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Assets are named after the destination unless a configuration says otherwise
	for _, cfg := range opts.Configs {
		if cfg.Output.Path == "" {
			cfg.Output.Path = opts.Dest
		}
	}

	b := &build{
		opts:   opts,
		fs:     fsys,
		logger: logger,
		cwd:    cwd,
		assets: vfile.NewSet(),
	}

	if opts.History {
		h, err := cache.OpenHistory(filepath.Join(cwd, cache.DefaultCacheDir))
		if err != nil {
			return nil, err
		}

		b.history = h
	}

	return b, nil
}

func (b *build) close() {
	if b.history != nil {
		if err := b.history.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to close history")
		}
	}
}

// run reads the sources and bundles them. In watch mode it blocks until ctx is done.
func (b *build) run(ctx context.Context) error {
	files, err := pipeline.Src(b.fs, b.cwd, b.opts.Src...)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(b.opts.Src, ", "))
	}

	b.logger.Debug().Int("files", len(files)).Msg("sources read")

	scripts, err := b.prepare(ctx, files)
	if err != nil {
		return err
	}

	adapter, err := stream.New(b.opts, nil, b.handler(), b.logger)
	if err != nil {
		return err
	}
	defer adapter.Close()

	if b.opts.Watch {
		adapter.OnCompilationError(func(err error) {
			b.logger.Error().Err(err).Msg("compilation failed")
		})
	}

	p := pipeline.New(pipeline.SinkFunc(b.assets.Add), adapter)
	if err := p.Run(ctx, scripts); err != nil {
		return err
	}

	if b.opts.Watch {
		<-ctx.Done()
		return nil
	}

	return b.write(ctx)
}

// prepare splits HTML pages from scripts. Pages give up their inline tags to
// the scripts when extracting and are stripped when removing.
func (b *build) prepare(ctx context.Context, files []*vfile.File) ([]*vfile.File, error) {
	var scripts, pages []*vfile.File

	for _, f := range files {
		if isPage(f) {
			pages = append(pages, f)
		} else {
			scripts = append(scripts, f)
		}
	}

	if len(pages) > 0 && len(b.opts.Extract) > 0 {
		extract, err := transform.NewExtract(b.opts.Extract, nil)
		if err != nil {
			return nil, err
		}

		extracted, err := runStage(ctx, extract, pages)
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, extracted...)
	}

	if len(pages) > 0 && len(b.opts.Remove) > 0 {
		remove, err := transform.NewRemove(b.opts.Remove)
		if err != nil {
			return nil, err
		}

		if pages, err = runStage(ctx, remove, pages); err != nil {
			return nil, err
		}
	}

	b.pages = pages
	return scripts, nil
}

// handler logs, records and, in watch mode, writes every cycle
func (b *build) handler() bundler.Handler {
	summary := stream.DefaultHandler(b.opts, b.logger)

	return func(stats *bundler.Stats, err error) {
		summary(stats, err)

		if b.history != nil && stats != nil {
			if err := b.history.Record(cache.NewRecord(b.opts.Name, stats)); err != nil {
				b.logger.Warn().Err(err).Msg("failed to record build")
			}
		}

		if b.opts.Watch && err == nil {
			if err := b.write(context.Background()); err != nil {
				b.logger.Error().Err(err).Msg("failed to write assets")
			}
		}
	}
}

// write writes pages and the latest assets to the destination, merged when requested
func (b *build) write(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	files := append(append([]*vfile.File{}, b.pages...), b.assets.Files()...)
	dest := pipeline.NewDest(b.fs, b.opts.Dest)

	var stages []pipeline.Stage
	if b.opts.Merge {
		stages = append(stages, transform.NewMerge(transform.DefaultMergeOptions(), b.logger))
	}

	if err := pipeline.New(dest, stages...).Run(ctx, files); err != nil {
		return err
	}

	if err := dest.Err(); err != nil {
		return err
	}

	b.logger.Debug().Int("files", len(dest.Written())).Str("dest", b.opts.Dest).Msg("assets written")
	return nil
}

func runStage(ctx context.Context, stage pipeline.Stage, files []*vfile.File) ([]*vfile.File, error) {
	out := &pipeline.Collector{}
	if err := pipeline.New(out, stage).Run(ctx, files); err != nil {
		return nil, err
	}

	return out.Files(), nil
}

func isPage(f *vfile.File) bool {
	switch strings.ToLower(f.Extname()) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}
