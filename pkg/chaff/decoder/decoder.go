// Package decoder finds encoded decoy files on disk and restores their
// original content.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
)

// SecretFunc returns the secret for the encoded file at path, or "" when
// none is known.
type SecretFunc func(path string) (string, error)

// Collect returns every encoded file under roots, sorted. Roots that are
// files are taken as given. A non-empty pattern is matched with doublestar
// against the path relative to its root, or the base name for file roots.
func Collect(ctx context.Context, roots []string, pattern string) ([]string, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	var (
		mu    sync.Mutex
		found []string
	)
	add := func(rel, path string) {
		if _, _, ok := encoding.SplitSuffix(filepath.Base(path)); !ok {
			return
		}
		if pattern != "" {
			if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); !ok {
				return
			}
		}
		mu.Lock()
		found = append(found, path)
		mu.Unlock()
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Base(abs), abs)
			continue
		}

		conf := fastwalk.Config{Follow: false}
		err = fastwalk.Walk(&conf, abs, func(path string, d fs.DirEntry, walkErr error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if walkErr != nil || d.IsDir() || !d.Type().IsRegular() {
				return nil //nolint:nilerr // unreadable entries are skipped
			}
			rel, err := filepath.Rel(abs, path)
			if err != nil {
				return nil //nolint:nilerr
			}
			add(rel, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(found)
	return found, nil
}

// Decoder restores encoded files.
type Decoder struct {
	Codec  *encoding.Codec
	Secret SecretFunc

	// OutDir receives decoded files. Empty writes next to the source.
	OutDir string

	// Overwrite allows replacing an existing output file.
	Overwrite bool
}

// Result is the outcome for one file.
type Result struct {
	Source string
	Output string
	Size   int64
	Err    error
}

// Decode restores every path and reports one Result per path. It stops
// early only when ctx is done.
func (d *Decoder) Decode(ctx context.Context, paths []string) []Result {
	log := logging.Get("decoder")
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		r := d.decodeFile(path)
		if r.Err != nil {
			log.Warn("decode failed", "path", path, "error", r.Err)
		} else {
			log.Debug("decoded", "path", path, "output", r.Output, "size", r.Size)
		}
		results = append(results, r)
	}
	return results
}

func (d *Decoder) decodeFile(path string) Result {
	r := Result{Source: path}

	var secret string
	if encoding.NeedsSecret(filepath.Base(path)) {
		if d.Secret == nil {
			r.Err = encoding.ErrSecretRequired
			return r
		}
		s, err := d.Secret(path)
		if err != nil {
			r.Err = err
			return r
		}
		if s == "" {
			r.Err = encoding.ErrSecretRequired
			return r
		}
		secret = s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.Err = err
		return r
	}
	plain, name, err := d.Codec.Decode(filepath.Base(path), data, secret)
	if err != nil {
		r.Err = err
		return r
	}

	dir := d.OutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Err = err
		return r
	}
	r.Output = filepath.Join(dir, name)
	r.Size = int64(len(plain))
	r.Err = d.write(r.Output, plain)
	return r
}

// write stages data in a temp file beside path and moves it into place, so
// a failed write leaves nothing at path to block a retry. Without Overwrite
// the move is a hard link, which refuses an existing target.
func (d *Decoder) write(path string, data []byte) error {
	if !d.Overwrite {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chaff-decode-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if d.Overwrite {
		return os.Rename(tmp.Name(), path)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		// Filesystems without hard links; the Lstat above guards the target.
		return os.Rename(tmp.Name(), path)
	}
	return nil
}
