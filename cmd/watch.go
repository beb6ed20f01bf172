package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/packstream/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch [globs...]",
	Short: "Bundle sources and rebuild on change",
	Long: `Bundle like build, then keep watching the files the bundler read and
rebuild when they change. Stop with Ctrl+C.`,
	RunE:         runWatch,
	SilenceUsage: true,
	Args:         cobra.ArbitraryArgs,
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	// Sources given on the command line are read once. Modules they import
	// from disk are watched; use --fs-mode real to watch the sources too.
	opts.Watch = true

	logger := newLogger(opts.Verbose)

	b, err := newBuild(opts, afero.NewOsFs(), logger)
	if err != nil {
		return err
	}
	defer b.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.run(ctx)
}
