//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the core count from the runtime and total memory from the
// hw.memsize sysctl.
func Detect() (SystemResources, error) {
	resources := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return resources, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	resources.TotalRAM = int64(memsize)
	// macOS keeps most free memory in its file cache; half of total is a
	// fair working figure without parsing vm_stat.
	resources.AvailableRAM = resources.TotalRAM / 2

	return resources, nil
}
