// Package trash removes the files of a run, either permanently or by moving
// them to the desktop trash where one is available.
package trash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
)

const commandTimeout = 30 * time.Second

// Remover deletes or trashes files. The zero value deletes.
type Remover struct {
	Mode string
}

// NewRemover returns a Remover for mode, which must be config.CleanupDelete
// or config.CleanupTrash.
func NewRemover(mode string) (*Remover, error) {
	switch mode {
	case config.CleanupDelete, config.CleanupTrash:
		return &Remover{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown cleanup mode %q", mode)
	}
}

// Remove removes every path and reports how many went. Files that are
// already gone count as removed. It keeps going after a failure and returns
// all failures joined.
func (r *Remover) Remove(paths []string) (int, error) {
	log := logging.Get("cleanup")
	removed := 0
	var errs []error
	for _, p := range paths {
		var err error
		if r.Mode == config.CleanupTrash {
			err = MoveToTrash(p)
		} else {
			err = os.Remove(p)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	log.Info("removed files", "mode", r.modeName(), "removed", removed, "failed", len(errs))
	return removed, errors.Join(errs...)
}

func (r *Remover) modeName() string {
	if r.Mode == "" {
		return config.CleanupDelete
	}
	return r.Mode
}

// MoveToTrash moves a file to the desktop trash: Finder on macOS, gio or
// trash-put on Linux. Without one the file is deleted.
func MoveToTrash(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	for _, argv := range trashCommands(abs) {
		bin, err := exec.LookPath(argv[0])
		if err != nil {
			continue
		}
		if exec.CommandContext(ctx, bin, argv[1:]...).Run() == nil {
			return nil
		}
	}

	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("deleting %q: %w", abs, err)
	}
	return nil
}

func trashCommands(abs string) [][]string {
	switch runtime.GOOS {
	case "darwin":
		return [][]string{{"osascript", "-e", fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, abs)}}
	case "linux":
		return [][]string{{"gio", "trash", abs}, {"trash-put", abs}}
	default:
		return nil
	}
}
