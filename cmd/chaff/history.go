package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/manifest"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the history of generate and cleanup operations.

The manifest stores a record of every run: where it wrote, how many files,
which encodings. Secrets are never stored in the manifest.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific operation",
	Long:  `Display an operation by its entry ID, or the generate entry of a run by run ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getManifest returns the configured manifest and retention.
func getManifest(cmd *cobra.Command) (*manifest.Manifest, int, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load configuration: %w", err)
	}
	m, err := manifest.New(cfg.Manifest.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialize manifest: %w", err)
	}
	retention := cfg.Manifest.RetentionDays
	if retention <= 0 {
		retention = config.DefaultRetentionDays
	}
	return m, retention, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	m, _, err := getManifest(cmd)
	if err != nil {
		return err
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'chaff generate' to create decoy files.")
		return nil
	}

	fmt.Printf("\n%-44s  %-8s  %-8s  %-10s  %s\n", "ID", "TYPE", "FILES", "SIZE", "TARGET")
	fmt.Println(strings.Repeat("-", 100))

	for _, entry := range entries {
		fmt.Printf("%-44s  %-8s  %-8d  %-10s  %s\n",
			truncateString(entry.ID, 44),
			entry.Operation,
			entry.Summary.Files,
			types.FormatSize(entry.Summary.Bytes),
			entry.Target,
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'chaff history show <id>' for details on a specific entry.")
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, _, err := getManifest(cmd)
	if err != nil {
		return err
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nOperation Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Run:        %s\n", entry.RunID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", entry.Operation)
	fmt.Printf("Target:     %s\n", entry.Target)
	if entry.Seed != 0 {
		fmt.Printf("Seed:       %d\n", entry.Seed)
	}
	if entry.Summary.Planned > 0 {
		fmt.Printf("Planned:    %d\n", entry.Summary.Planned)
	}
	fmt.Printf("Files:      %d\n", entry.Summary.Files)
	if entry.Summary.Failed > 0 || entry.Summary.Skipped > 0 {
		fmt.Printf("Failed:     %d (skipped %d)\n", entry.Summary.Failed, entry.Summary.Skipped)
	}
	fmt.Printf("Total Size: %s\n", types.FormatSize(entry.Summary.Bytes))
	if entry.Summary.StoppedAtFloor {
		fmt.Println("Stopped at the free space floor")
	}

	if len(entry.Files) > 0 {
		fmt.Println("\nFiles:")
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("%-12s  %-10s  %s\n", "SIZE", "ENCODING", "PATH")
		fmt.Println(strings.Repeat("-", 60))

		limit := min(len(entry.Files), 50)
		for _, file := range entry.Files[:limit] {
			fmt.Printf("%-12s  %-10s  %s\n", types.FormatSize(file.Size), file.Encoding, file.Path)
		}
		if len(entry.Files) > limit {
			fmt.Printf("\n... and %d more files\n", len(entry.Files)-limit)
		}
	}

	if len(entry.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range entry.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, _ []string) error {
	m, retentionDays, err := getManifest(cmd)
	if err != nil {
		return err
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d history entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
