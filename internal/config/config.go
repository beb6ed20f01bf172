package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/packstream/internal/bundler"
	"github.com/Norgate-AV/packstream/internal/codes"
	"github.com/Norgate-AV/packstream/internal/vfile"
	"github.com/Norgate-AV/packstream/internal/vfs"
)

// FSMode selects where the bundler reads its inputs from
type FSMode string

const (
	// FromVirtualFiles serves the stream's files to the bundler, falling back to disk
	FromVirtualFiles FSMode = "virtual"

	// FromRealFilesystem lets the bundler read from disk only
	FromRealFilesystem FSMode = "real"
)

// Default configuration values
const (
	DefaultQuiet               = true
	DefaultVerbose             = false
	DefaultWatch               = false
	DefaultProgress            = false
	DefaultNoCache             = true
	DefaultCompileAtEndOfInput = true
	DefaultFSMode              = FromVirtualFiles
	DefaultDest                = "dist"
	DefaultFormat              = "iife"
)

// FileSystems override the file systems installed on every compiler
type FileSystems struct {
	Input  vfs.InputFileSystem
	Output afero.Fs
}

// Holds the options of a packstream build
type Options struct {
	// Bundler configurations; several are driven as one multi-compiler
	Configs []*bundler.Config `mapstructure:"config"`

	// Suppress the default stats summary
	Quiet bool `mapstructure:"quiet"`

	// Enable verbose output
	Verbose bool `mapstructure:"verbose"`

	Stats bundler.StatsOptions `mapstructure:"stats"`

	// Keep rebuilding on change instead of building once
	Watch        bool                 `mapstructure:"watch"`
	WatchOptions bundler.WatchOptions `mapstructure:"watch_options"`

	// Log per-compiler build progress
	Progress bool `mapstructure:"progress"`

	FSMode FSMode `mapstructure:"fs_mode"`

	// Cache key shared by builds that reuse state
	Name string `mapstructure:"name"`

	// Always start from fresh build state
	NoCache bool `mapstructure:"no_cache"`

	// Compile once at end of input instead of after every file
	CompileAtEndOfInput bool `mapstructure:"compile_at_end_of_input"`

	// Source globs read by the CLI
	Src []string `mapstructure:"src"`

	// Directory the CLI writes assets to
	Dest string `mapstructure:"dest"`

	// Element selectors extracted from, or removed from, HTML sources
	Extract []string `mapstructure:"extract"`
	Remove  []string `mapstructure:"remove"`

	// Merge bundled html, css and js of the same name into one html file
	Merge bool `mapstructure:"merge"`

	// Record every build cycle in the history store
	History bool `mapstructure:"history"`

	FS          FileSystems              `mapstructure:"-"`
	Factory     bundler.Factory          `mapstructure:"-"`
	EntryFiles  *vfile.List[string]      `mapstructure:"-"`
	StreamFiles *vfile.List[*vfile.File] `mapstructure:"-"`
}

// NewOptions returns options holding the default values
func NewOptions(configs ...*bundler.Config) *Options {
	return &Options{
		Configs:             configs,
		Quiet:               DefaultQuiet,
		Verbose:             DefaultVerbose,
		Stats:               bundler.DefaultStatsOptions(),
		Watch:               DefaultWatch,
		Progress:            DefaultProgress,
		FSMode:              DefaultFSMode,
		NoCache:             DefaultNoCache,
		CompileAtEndOfInput: DefaultCompileAtEndOfInput,
		FS:                  FileSystems{Output: afero.NewMemMapFs()},
	}
}

// IsSilent reports whether the default stats summary is suppressed
func (o *Options) IsSilent() bool {
	return o.Quiet || o.Stats.IsSilent()
}

// Load reads the options from viper on top of the defaults
func Load() (*Options, error) {
	opts := NewOptions()

	if err := viper.Unmarshal(opts, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// The CLI bundles with one default configuration when none is given
	if len(opts.Configs) == 0 {
		opts.Configs = []*bundler.Config{{Format: DefaultFormat}}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func (o *Options) Validate() error {
	if len(o.Configs) == 0 || slices.Contains(o.Configs, nil) {
		return codes.New(codes.NoConfig, "validate", "", nil)
	}

	switch o.FSMode {
	case "":
		o.FSMode = DefaultFSMode
	case FromVirtualFiles, FromRealFilesystem:
	default:
		return fmt.Errorf("invalid fs mode: %s", o.FSMode)
	}

	switch o.Stats.Preset {
	case "":
		o.Stats.Preset = bundler.PresetNormal
	case bundler.PresetNone, bundler.PresetErrorsOnly, bundler.PresetMinimal,
		bundler.PresetNormal, bundler.PresetVerbose:
	default:
		return fmt.Errorf("invalid stats preset: %s", o.Stats.Preset)
	}

	// Resolve destination path
	if o.Dest != "" {
		abs, err := filepath.Abs(o.Dest)
		if err != nil {
			return fmt.Errorf("invalid destination path: %v", err)
		}

		o.Dest = abs
	}

	return nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		statsPresetHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// statsPresetHook accepts a bare preset name where stats options are expected
func statsPresetHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(bundler.StatsOptions{}) {
		return data, nil
	}

	opts := bundler.DefaultStatsOptions()
	opts.Preset = reflect.ValueOf(data).String()

	return opts, nil
}
