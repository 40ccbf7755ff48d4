package types

import (
	"errors"
	"fmt"
)

// Planning errors. These are fatal and reported before any file is written.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidRange      = errors.New("invalid range")
	ErrInsufficientSpace = errors.New("insufficient space")
	ErrGraphInvariant    = errors.New("graph invariant violation")
)

// Execution errors. These are recorded per node and do not abort the run.
var (
	ErrRender           = errors.New("render failure")
	ErrEncode           = errors.New("encode failure")
	ErrWrite            = errors.New("write failure")
	ErrMetadataApply    = errors.New("metadata apply failure")
	ErrDependencyFailed = errors.New("dependency failed")
	ErrFloorReached     = errors.New("free space floor reached")
)

// Stage names the pipeline step a node failed in.
type Stage string

// Pipeline stages.
const (
	StageRender   Stage = "render"
	StageEncode   Stage = "encode"
	StageWrite    Stage = "write"
	StageMetadata Stage = "metadata"
	StageDepend   Stage = "dependency"
)

// NodeError is a failure of a single planned file.
type NodeError struct {
	ID    NodeID
	Name  string
	Stage Stage
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d (%s) %s: %v", e.ID, e.Name, e.Stage, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
