package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/packstream/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "packstream",
	Short: "Bundle in-memory files with esbuild",
	Long: `Read source files, bundle them without touching the disk and write the
emitted assets to a destination directory.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.ArbitraryArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version.String()
	addBuildFlags(rootCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// addBuildFlags registers the flags shared by build and watch
func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolP("quiet", "q", false, "Suppress the build summary")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("stats", "", "Summary detail: none, errors-only, minimal, normal or verbose")
	flags.Bool("progress", false, "Log build progress")
	flags.String("fs-mode", "", "Where the bundler reads sources: virtual or real")
	flags.String("name", "", "Share build state under this name")
	flags.Bool("no-cache", false, "Always start from fresh build state")
	flags.Bool("compile-at-end", true, "Compile once after all sources are read")
	flags.StringP("dest", "d", "", "Directory assets are written to")
	flags.StringSlice("extract", nil, "Selectors of inline HTML tags to bundle")
	flags.StringSlice("remove", nil, "Selectors of HTML tags to strip from pages")
	flags.Bool("merge", false, "Merge the html, css and js of each page into one file")
	flags.Bool("history", false, "Record builds in the history store")
	flags.Duration("aggregate-timeout", 0, "How long to collect changes before rebuilding")
}

// newLogger returns the console logger used by every command
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
