package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/chaff/pkg/chaff/decoder"
	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/ledger"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <path>...",
	Short: "Restore encoded decoy files",
	Long: `Decode .b64, .enc and .zip files back to their original content.

Directories are searched recursively. Secrets come from --secret or, when
omitted, from the ledger entry of the run that wrote each file (or of the
run named by --run, matching by file name).

Examples:
  chaff decode ~/decoys                        # Decode everything the ledger knows
  chaff decode --run 5f0c6a1e-... /mnt/usb     # Files copied elsewhere, matched by name
  chaff decode --secret Kx9mP2qR7tW4 notes.txt.enc
  chaff decode --pattern '**/*.zip' --out /tmp/restored ~/decoys`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var (
	decodeSecret    string
	decodeRun       string
	decodePattern   string
	decodeOut       string
	decodeOverwrite bool
)

func init() {
	decodeCmd.Flags().StringVar(&decodeSecret, "secret", "", "secret for encrypted and archived files")
	decodeCmd.Flags().StringVar(&decodeRun, "run", "", "look secrets up in this run's ledger entry only")
	decodeCmd.Flags().StringVar(&decodePattern, "pattern", "", "only decode paths matching this glob (supports **)")
	decodeCmd.Flags().StringVar(&decodeOut, "out", "", "directory for decoded files (default: next to each source)")
	decodeCmd.Flags().BoolVar(&decodeOverwrite, "overwrite", false, "replace existing output files")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := decoder.Collect(ctx, args, decodePattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		printInfo("No encoded files found.")
		return nil
	}

	d := &decoder.Decoder{
		Codec: encoding.NewCodec(encoding.Options{
			KDFIterations:     cfg.Encoding.KDFIterations,
			Compress:          cfg.Encoding.Compress,
			ArchiveWorkFactor: cfg.Encoding.ArchiveWorkFactor,
		}),
		OutDir:    decodeOut,
		Overwrite: decodeOverwrite,
	}

	switch {
	case decodeSecret != "":
		d.Secret = func(string) (string, error) { return decodeSecret, nil }
	case cfg.Ledger.Enabled && needsAnySecret(paths):
		store, err := ledger.Open(ledgerPath(cfg))
		if err != nil {
			return err
		}
		defer store.Close()
		d.Secret = ledgerSecrets(store, decodeRun)
	}

	results := d.Decode(ctx, paths)

	var failed int
	var bytes int64
	for _, r := range results {
		if r.Err != nil {
			failed++
			printError("%s: %v", r.Source, r.Err)
			continue
		}
		bytes += r.Size
		printVerbose("%s -> %s", r.Source, r.Output)
	}
	printInfo("Decoded %d of %d files (%s)", len(results)-failed, len(paths), types.FormatSize(bytes))

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d files could not be decoded", failed)
	}
	return nil
}

func needsAnySecret(paths []string) bool {
	for _, p := range paths {
		if encoding.NeedsSecret(p) {
			return true
		}
	}
	return false
}

// ledgerSecrets looks secrets up by the path a run recorded, or by file
// name within runID when set. Files the ledger does not know decode as if
// no secret were given.
func ledgerSecrets(store *ledger.Store, runID string) decoder.SecretFunc {
	return func(path string) (string, error) {
		var f *ledger.File
		var err error
		if runID != "" {
			f, err = store.File(runID, filepath.Base(path))
		} else {
			f, err = store.FindPath(path)
		}
		if errors.Is(err, ledger.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return f.Secret, nil
	}
}
