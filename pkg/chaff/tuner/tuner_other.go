//go:build !darwin && !linux

package tuner

import "runtime"

const defaultTotalRAM = 8 << 30

// Detect uses the runtime core count and assumes 8GB of memory, half of it
// available.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
