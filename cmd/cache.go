package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/packstream/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the build history",
	Long:  `Show or clear the build records kept in ` + cache.DefaultCacheDir + `.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show build history statistics",
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List recent builds",
	RunE:         runCacheList,
	SilenceUsage: true,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all build records",
	RunE:         runCacheClear,
	SilenceUsage: true,
}

func init() {
	cacheCmd.PersistentFlags().String("dir", "", "History directory (default: "+cache.DefaultCacheDir+" in the working directory)")
	cacheListCmd.Flags().IntP("limit", "n", 10, "Number of builds to show, 0 for all")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openHistory(cmd *cobra.Command) (*cache.History, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		dir = filepath.Join(cwd, cache.DefaultCacheDir)
	}

	return cache.OpenHistory(dir)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	h, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	stats, err := h.Stats()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "History: %s\n", h.Dir())
	fmt.Fprintf(out, "Builds: %d (%d failed)\n", stats.Records, stats.Failed)
	fmt.Fprintf(out, "Emitted: %s\n", humanize.Bytes(uint64(stats.EmittedBytes)))
	fmt.Fprintf(out, "Size on disk: %s\n", humanize.Bytes(uint64(stats.DiskSize)))

	if !stats.Last.IsZero() {
		fmt.Fprintf(out, "Last build: %s\n", humanize.Time(stats.Last))
	}

	return nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	h, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	records, err := h.List(limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded")
		return nil
	}

	printRecords(cmd.OutOrStdout(), records)
	return nil
}

func printRecords(w io.Writer, records []cache.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"When", "Name", "Hash", "Assets", "Emitted", "Errors", "Time"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, rec := range records {
		name := rec.Name
		if name == "" {
			name = "-"
		}

		hash := rec.Hash
		if len(hash) > 8 {
			hash = hash[:8]
		}

		table.Append([]string{
			humanize.Time(rec.Timestamp),
			name,
			hash,
			strconv.Itoa(len(rec.Assets)),
			humanize.Bytes(uint64(rec.EmittedBytes())),
			strconv.Itoa(len(rec.Errors)),
			rec.Duration.String(),
		})
	}

	table.Render()
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	h, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Build history cleared")
	return nil
}
