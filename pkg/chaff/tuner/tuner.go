// Package tuner sizes the generator worker pool from the host's CPU count
// and memory.
package tuner

// SystemResources describes the host.
type SystemResources struct {
	// CPUCores is the number of logical CPUs.
	CPUCores int

	// TotalRAM is physical memory in bytes.
	TotalRAM int64

	// AvailableRAM is memory we may plan to use, in bytes. It may be an
	// estimate.
	AvailableRAM int64
}
