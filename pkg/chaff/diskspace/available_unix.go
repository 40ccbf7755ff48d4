//go:build unix

package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Available returns the bytes available to an unprivileged user on the
// filesystem containing path.
func Available(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil //nolint:unconvert // field widths differ per platform
}
