// Package generator executes a plan: it renders, encodes and writes every
// node with a bounded worker pool, stops at the free space floor, then
// randomizes timestamps in a separate parallel pass.
package generator

import (
	"runtime"

	"github.com/jamesainslie/chaff/pkg/chaff/diskspace"
	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/render"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Cleaner removes written files when the run is configured to clean up
// after itself.
type Cleaner interface {
	Remove(paths []string) (removed int, err error)
}

// Options configures a run.
type Options struct {
	// Workers bounds concurrent node processing. Values below 1 use the
	// number of CPUs.
	Workers int

	// FailureThreshold is the failed/planned ratio above which Run reports
	// ErrFailureThreshold.
	FailureThreshold float64

	Renderer render.Renderer
	Codec    *encoding.Codec

	// Space guards the free space floor. Nil disables the check.
	Space *diskspace.Counter

	// ApplyMetadata sets timestamps on a written file. Nil uses
	// metadata.Apply.
	ApplyMetadata func(path string, ts types.TimestampTriple) error

	// Cleanup, when set, removes every written file at the end of the run.
	Cleanup Cleaner

	// OnProgress is called periodically. It must be safe to call from
	// multiple goroutines.
	OnProgress func(Progress)
}

func (o *Options) workers() int {
	if o.Workers < 1 {
		return runtime.NumCPU()
	}
	return o.Workers
}
