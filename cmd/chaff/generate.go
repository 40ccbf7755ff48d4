package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/chaff/cmd/chaff/tui"
	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/diskspace"
	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/generator"
	"github.com/jamesainslie/chaff/pkg/chaff/ledger"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
	"github.com/jamesainslie/chaff/pkg/chaff/manifest"
	"github.com/jamesainslie/chaff/pkg/chaff/output"
	"github.com/jamesainslie/chaff/pkg/chaff/planner"
	"github.com/jamesainslie/chaff/pkg/chaff/render"
	"github.com/jamesainslie/chaff/pkg/chaff/trash"
	"github.com/jamesainslie/chaff/pkg/chaff/tuner"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate decoy files",
	Long: `Plan and write a set of interlinked decoy files into the target directory.

Files are written atomically and never overwrite existing files. Passwords for
encrypted and archived files are hinted at in other generated files and kept
in the ledger so "chaff decode --run" can recover them.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what generate would write",
	Long:  `Build the full plan (sizes, links, encodings, names, timestamps) without writing anything.`,
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	for _, cmd := range []*cobra.Command{generateCmd, planCmd} {
		addPlanFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	generateCmd.Flags().Int("workers", 0, "worker count (0 tunes to the host)")
	generateCmd.Flags().Float64("failure-threshold", config.DefaultFailureThreshold, "failed/planned ratio that makes the run fail")
	generateCmd.Flags().Bool("delete-after", false, "remove the files when the run finishes")
	generateCmd.Flags().String("cleanup-mode", config.DefaultCleanupMode, "how files are removed: delete or trash")
	generateCmd.Flags().BoolP("dry-run", "d", false, "plan only, same as 'chaff plan'")
	generateCmd.Flags().Bool("no-tui", false, "print plain progress instead of the live display")
}

func addPlanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("target", "t", "", "target directory")
	f.Bool("fill", false, "fill the drive down to --min-free, ignoring counts")
	f.String("min-free", "", "free space to leave on the drive (e.g. 2G)")
	f.String("min-size", "", "minimum file size before encoding (e.g. 64K)")
	f.String("max-size", "", "maximum file size before encoding (e.g. 10M)")
	f.Int("min-count", 0, "minimum number of files")
	f.Int("max-count", 0, "maximum number of files")
	f.StringSlice("types", nil, "file types: document, spreadsheet, email, image, text, structured")
	f.StringSlice("languages", nil, "content languages (e.g. en,de)")
	f.Int("max-out-degree", 0, "maximum references per file and role")
	f.Uint64("seed", 0, "random seed (0 is time based)")
}

// runPlan builds a plan and prints it.
func runPlan(cmd *cobra.Command, _ []string) error {
	_, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	plan, _, err := buildPlan(settings)
	if err != nil {
		return err
	}
	return printResult(output.FromPlan(plan))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return runPlan(cmd, args)
	}

	cfg, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := logging.Get("cli")

	plan, space, err := buildPlan(settings)
	if err != nil {
		return err
	}
	printVerbose("Planned %d files (%s) into %s, seed %d",
		len(plan.Order), types.FormatSize(plan.Stats().Bytes), plan.Target, plan.Seed)

	opts := generator.Options{
		Workers:          tuneWorkers(settings),
		FailureThreshold: settings.FailureThreshold,
		Renderer:         render.NewSet(plan.Seed),
		Codec: encoding.NewCodec(encoding.Options{
			KDFIterations:     settings.KDFIterations,
			Compress:          settings.Compress,
			ArchiveWorkFactor: settings.ArchiveWorkFactor,
		}),
		Space: space,
	}
	if settings.DeleteAfterCompletion {
		remover, err := trash.NewRemover(settings.CleanupMode)
		if err != nil {
			return err
		}
		opts.Cleanup = remover
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *generator.Summary
	var runErr error
	if useTUI(cmd) {
		if err := initTUILogging(cfg); err != nil {
			return fmt.Errorf("failed to initialize TUI logging: %w", err)
		}
		summary, runErr = tui.Run(ctx, tui.Options{Target: plan.Target, Planned: len(plan.Order)},
			func(ctx context.Context, onProgress func(generator.Progress)) (*generator.Summary, error) {
				opts.OnProgress = onProgress
				return generator.Run(ctx, plan, opts)
			})
	} else {
		opts.OnProgress = plainProgress()
		summary, runErr = generator.Run(ctx, plan, opts)
	}
	if summary == nil {
		return runErr
	}

	if err := recordRun(cfg, summary); err != nil {
		log.Warn("could not record run", "run", summary.RunID, "error", err)
		printError("recording run: %v", err)
	}

	if err := printResult(output.FromSummary(summary)); err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		printInfo("Run cancelled after %d of %d files", summary.Written, summary.Planned)
	}
	return runErr
}

// buildPlan plans a run against the live free space of the target's
// filesystem. The target may not exist yet, so space is measured at its
// closest existing ancestor.
func buildPlan(settings *config.Settings) (*planner.Plan, *diskspace.Counter, error) {
	target, err := filepath.Abs(settings.TargetDirectory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve target: %w", err)
	}
	settings.TargetDirectory = target

	space, err := diskspace.NewCounter(existingAncestor(target), settings.MinRemainingFree, settings.RecheckInterval, nil)
	if err != nil {
		return nil, nil, err
	}
	plan, err := planner.Build(planner.Input{Settings: settings, Available: space.Free()})
	if err != nil {
		return nil, nil, err
	}
	return plan, space, nil
}

func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// tuneWorkers sizes the pool from the host unless workers is configured.
func tuneWorkers(settings *config.Settings) int {
	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
		resources = tuner.SystemResources{CPUCores: 4, TotalRAM: 8 * types.GiB, AvailableRAM: 4 * types.GiB}
	}
	tuned := tuner.CalculateWithOverride(resources, settings.MaxFileSize, settings.Workers)
	printVerbose("System: %d CPUs, %s RAM, %s available; %d workers",
		resources.CPUCores, types.FormatSize(resources.TotalRAM), types.FormatSize(resources.AvailableRAM), tuned.Workers)
	return tuned.Workers
}

// useTUI reports whether the live display should run: pretty output to a
// terminal without --no-tui or --quiet.
func useTUI(cmd *cobra.Command) bool {
	if noTUI, _ := cmd.Flags().GetBool("no-tui"); noTUI || getQuiet() {
		return false
	}
	if format := viper.GetString("output"); format != "" && format != "pretty" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// plainProgress prints a line per phase change in verbose mode.
func plainProgress() func(generator.Progress) {
	var last generator.Phase
	return func(p generator.Progress) {
		if p.Phase == last {
			return
		}
		last = p.Phase
		printVerbose("%s: %d/%d written, %s", p.Phase, p.Written, p.Planned, types.FormatSize(p.Bytes))
	}
}

// recordRun stores secrets in the ledger and the run in the manifest. Both
// are optional; a failure of either does not undo the run.
func recordRun(cfg *config.Config, s *generator.Summary) error {
	var errs []error

	if cfg.Ledger.Enabled && len(s.Files) > 0 && s.Removed < len(s.Files) {
		if err := recordLedger(cfg, s); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}

	if cfg.Manifest.Enabled {
		m, err := manifest.New(cfg.Manifest.Path)
		entry := manifestEntry(s)
		if err == nil {
			_, err = m.Log(manifest.OpGenerate, entry)
		}
		if err == nil && s.Removed > 0 {
			removed := append([]manifest.FileRecord(nil), entry.Files...)
			_, err = m.Log(manifest.OpCleanup, cleanupEntry(s.RunID, s.Target, removed))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("manifest: %w", err))
		}
	}

	return errors.Join(errs...)
}

func recordLedger(cfg *config.Config, s *generator.Summary) error {
	store, err := ledger.Open(ledgerPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	files := make([]ledger.File, len(s.Files))
	for i, f := range s.Files {
		files[i] = ledger.File{
			Name:     f.Name,
			Path:     f.Path,
			Type:     f.Type,
			Encoding: f.Encoding,
			Secret:   f.Secret,
			Size:     f.Size,
		}
	}
	return store.Record(ledger.Run{ID: s.RunID, Target: s.Target, Seed: s.Seed, CreatedAt: s.StartedAt}, files)
}

func ledgerPath(cfg *config.Config) string {
	if cfg.Ledger.Path != "" {
		return cfg.Ledger.Path
	}
	return config.DefaultLedgerPath()
}

func manifestEntry(s *generator.Summary) manifest.Entry {
	entry := manifest.Entry{
		RunID:  s.RunID,
		Target: s.Target,
		Seed:   s.Seed,
		Errors: s.ErrorMessages(),
		Summary: manifest.Summary{
			Planned:        s.Planned,
			Failed:         s.Failed,
			Skipped:        s.Skipped,
			StoppedAtFloor: s.StoppedAtFloor,
		},
	}
	for _, f := range s.Files {
		entry.Files = append(entry.Files, manifest.FileRecord{
			Name:     f.Name,
			Path:     f.Path,
			Type:     f.Type,
			Encoding: f.Encoding,
			Size:     f.Size,
			Modified: f.Timestamps.Modified,
		})
	}
	return entry
}
