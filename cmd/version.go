package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/packstream/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "packstream %s\n", version.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", version.Commit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", version.BuildTime)
	},
}
