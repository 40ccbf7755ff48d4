// Package manifest keeps a JSON record of every generate and cleanup
// operation, without secrets, for the history command.
package manifest

import (
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// OperationType is the kind of operation an entry records.
type OperationType string

const (
	// OpGenerate records a generation run.
	OpGenerate OperationType = "generate"
	// OpCleanup records the removal of a run's files.
	OpCleanup OperationType = "cleanup"
)

// Entry is one manifest file.
type Entry struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Target    string        `json:"target"`
	Seed      uint64        `json:"seed,omitempty"`
	Files     []FileRecord  `json:"files"`
	Summary   Summary       `json:"summary"`
	Errors    []string      `json:"errors,omitempty"`
}

// FileRecord is a file touched by the operation.
type FileRecord struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Type      types.FileType `json:"type"`
	Encoding  types.Encoding `json:"encoding"`
	Size      int64          `json:"size"`
	Modified  time.Time      `json:"modified,omitzero"`
	RemovedAt time.Time      `json:"removed_at,omitzero"`
}

// Summary totals an entry.
type Summary struct {
	Planned        int   `json:"planned,omitempty"`
	Files          int   `json:"files"`
	Failed         int   `json:"failed,omitempty"`
	Skipped        int   `json:"skipped,omitempty"`
	Bytes          int64 `json:"bytes"`
	StoppedAtFloor bool  `json:"stopped_at_floor,omitempty"`
}
