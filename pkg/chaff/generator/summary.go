package generator

import (
	"errors"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// ErrFailureThreshold reports a run whose failure rate exceeded the
// configured threshold.
var ErrFailureThreshold = errors.New("failure threshold exceeded")

// Phase is the stage a run is in.
type Phase string

// Run phases.
const (
	PhaseWriting  Phase = "writing"
	PhaseMetadata Phase = "metadata"
	PhaseCleanup  Phase = "cleanup"
	PhaseDone     Phase = "done"
)

// Progress is a snapshot for progress displays.
type Progress struct {
	Phase     Phase
	Planned   int
	Written   int64
	Failed    int64
	Skipped   int64
	Bytes     int64
	Free      int64
	Metadata  int64
	Current   string
	AtFloor   bool
	StartedAt time.Time
}

// File is one written file.
type File struct {
	ID         types.NodeID          `json:"id" yaml:"id"`
	Name       string                `json:"name" yaml:"name"`
	Path       string                `json:"path" yaml:"path"`
	Type       types.FileType        `json:"type" yaml:"type"`
	Size       int64                 `json:"size" yaml:"size"`
	Encoding   types.Encoding        `json:"encoding" yaml:"encoding"`
	Secret     string                `json:"-" yaml:"-"`
	References []string              `json:"references,omitempty" yaml:"references,omitempty"`
	Timestamps types.TimestampTriple `json:"timestamps" yaml:"timestamps"`
	Synthetic  bool                  `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Target string `json:"target" yaml:"target"`
	Seed   uint64 `json:"seed" yaml:"seed"`

	Planned            int `json:"planned" yaml:"planned"`
	Rendered           int `json:"rendered" yaml:"rendered"`
	Written            int `json:"written" yaml:"written"`
	MetadataRandomized int `json:"metadata_randomized" yaml:"metadata_randomized"`
	Failed             int `json:"failed" yaml:"failed"`
	Skipped            int `json:"skipped" yaml:"skipped"`
	Removed            int `json:"removed,omitempty" yaml:"removed,omitempty"`

	Bytes          int64 `json:"bytes" yaml:"bytes"`
	StoppedAtFloor bool  `json:"stopped_at_floor" yaml:"stopped_at_floor"`
	Cancelled      bool  `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`

	// CreationTimeSet is false on platforms where only access and
	// modification times can be applied.
	CreationTimeSet bool `json:"creation_time_set" yaml:"creation_time_set"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`

	Errors   []*types.NodeError `json:"-" yaml:"-"`
	Warnings []*types.NodeError `json:"-" yaml:"-"`
	Files    []File             `json:"files,omitempty" yaml:"files,omitempty"`
}

// FailureRate is Failed/Planned.
func (s *Summary) FailureRate() float64 {
	if s.Planned == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Planned)
}

// Paths returns the paths of every written file.
func (s *Summary) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}

// ErrorMessages flattens Errors for serialization.
func (s *Summary) ErrorMessages() []string {
	out := make([]string, len(s.Errors))
	for i, e := range s.Errors {
		out[i] = e.Error()
	}
	return out
}
