package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/ledger"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
	"github.com/jamesainslie/chaff/pkg/chaff/manifest"
	"github.com/jamesainslie/chaff/pkg/chaff/trash"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [run-id]",
	Short: "Remove the files of a previous run",
	Long: `Remove every file a previous run wrote, as recorded in the ledger, and
forget the run's secrets.

Files are deleted or moved to the trash according to --cleanup-mode (or
cleanup.mode in the config file). Files already gone count as removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

var cleanLatest bool

func init() {
	cleanCmd.Flags().BoolVar(&cleanLatest, "latest", false, "clean the most recent run")
	cleanCmd.Flags().String("cleanup-mode", config.DefaultCleanupMode, "how files are removed: delete or trash")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !cleanLatest {
		return errors.New("specify a run ID or --latest")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	remover, err := trash.NewRemover(cfg.Cleanup.Mode)
	if err != nil {
		return err
	}

	store, err := ledger.Open(ledgerPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := selectRun(store, args)
	if err != nil {
		return err
	}
	files, err := store.Files(run.ID)
	if err != nil {
		return fmt.Errorf("listing files of run %s: %w", run.ID, err)
	}

	paths := make([]string, len(files))
	records := make([]manifest.FileRecord, len(files))
	for i, f := range files {
		paths[i] = f.Path
		records[i] = manifest.FileRecord{Name: f.Name, Path: f.Path, Type: f.Type, Encoding: f.Encoding, Size: f.Size}
	}

	removed, removeErr := remover.Remove(paths)
	logging.Get("cli").Info("cleaned run", "run", run.ID, "removed", removed, "files", len(files), "mode", remover.Mode)

	// A partial clean keeps the ledger so the rest can be retried.
	if removeErr == nil {
		if err := store.Delete(run.ID); err != nil {
			printError("forgetting run %s: %v", run.ID, err)
		}
	}

	if cfg.Manifest.Enabled {
		if m, err := manifest.New(cfg.Manifest.Path); err == nil {
			entry := cleanupEntry(run.ID, run.Target, records)
			if removeErr != nil {
				entry.Errors = []string{removeErr.Error()}
			}
			if _, err := m.Log(manifest.OpCleanup, entry); err != nil {
				printVerbose("Failed to write manifest: %v", err)
			}
		}
	}

	printInfo("Removed %d of %d files (%s) from %s", removed, len(files), types.FormatSize(run.Bytes), run.Target)
	if removeErr != nil {
		return fmt.Errorf("clean incomplete: %w", removeErr)
	}
	return nil
}

// selectRun resolves the run named by args, or the newest run.
func selectRun(store *ledger.Store, args []string) (*ledger.Run, error) {
	if len(args) > 0 {
		return store.Run(args[0])
	}
	runs, err := store.Runs()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs recorded", ledger.ErrNotFound)
	}
	return &runs[0], nil
}
