package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/graph"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
	"github.com/jamesainslie/chaff/pkg/chaff/metadata"
	"github.com/jamesainslie/chaff/pkg/chaff/planner"
	"github.com/jamesainslie/chaff/pkg/chaff/render"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// outcome of one node.
type outcome uint8

const (
	pending outcome = iota
	written
	failed
	skipped
)

// nodeState is closed over done once the node reached a terminal outcome.
// result is written before done is closed and read only after.
type nodeState struct {
	done   chan struct{}
	result outcome
}

// run holds the shared state of one Run call.
type run struct {
	plan *planner.Plan
	opts Options
	log  *logging.Logger

	states map[types.NodeID]*nodeState

	written  atomic.Int64
	rendered atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
	bytes    atomic.Int64
	meta     atomic.Int64
	atFloor  atomic.Bool
	current  atomic.Value
	phase    atomic.Value
	started  time.Time
	lastTick atomic.Int64

	mu    sync.Mutex
	files []File
	errs  []*types.NodeError
	warns []*types.NodeError
}

// Run writes the plan into plan.Target. Per-node failures are collected in
// the summary; the returned error is non-nil when the run was cancelled,
// when a write failed, when a count plan ran into the free space floor, or
// when the failure rate exceeded the threshold.
func Run(ctx context.Context, plan *planner.Plan, opts Options) (*Summary, error) {
	if opts.Renderer == nil || opts.Codec == nil {
		return nil, fmt.Errorf("%w: renderer and codec are required", types.ErrConfiguration)
	}
	if opts.ApplyMetadata == nil {
		opts.ApplyMetadata = metadata.Apply
	}
	if err := os.MkdirAll(plan.Target, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", types.ErrWrite, plan.Target, err)
	}

	r := &run{
		plan:    plan,
		opts:    opts,
		log:     logging.Get("generator").With("run", plan.RunID),
		states:  make(map[types.NodeID]*nodeState, len(plan.Order)),
		started: time.Now(),
	}
	r.current.Store("")
	r.phase.Store(PhaseWriting)
	for _, n := range plan.Order {
		r.states[n.ID] = &nodeState{done: make(chan struct{})}
	}

	r.log.Info("generation started", "files", len(plan.Order), "target", plan.Target, "workers", opts.workers())
	r.progress(true)

	r.execute(ctx)

	r.phase.Store(PhaseMetadata)
	r.progress(true)
	r.applyMetadata()

	summary := r.summary()
	summary.Cancelled = ctx.Err() != nil

	if opts.Cleanup != nil && len(summary.Files) > 0 {
		r.phase.Store(PhaseCleanup)
		r.progress(true)
		removed, err := opts.Cleanup.Remove(summary.Paths())
		summary.Removed = removed
		if err != nil {
			r.log.Warn("cleanup incomplete", "removed", removed, "error", err)
		}
	}

	summary.Elapsed = time.Since(r.started)
	r.phase.Store(PhaseDone)
	r.progress(true)
	r.log.Info("generation finished",
		"written", summary.Written, "failed", summary.Failed, "skipped", summary.Skipped,
		"bytes", types.FormatSize(summary.Bytes), "floor", summary.StoppedAtFloor, "elapsed", summary.Elapsed)

	return summary, r.verdict(ctx, summary)
}

// execute dispatches nodes in generation order to a bounded pool. Every
// dependency of a node has a strictly lower generation and is therefore
// queued before it, so waiting workers always make progress.
func (r *run) execute(ctx context.Context) {
	jobs := make(chan *types.FileSpec)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				r.process(ctx, n)
			}
		}()
	}

dispatch:
	for i, n := range r.plan.Order {
		select {
		case jobs <- n:
		case <-ctx.Done():
			for _, rest := range r.plan.Order[i:] {
				r.finish(rest.ID, skipped)
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
}

func (r *run) process(ctx context.Context, n *types.FileSpec) {
	if r.atFloor.Load() || ctx.Err() != nil {
		r.finish(n.ID, skipped)
		return
	}

	for _, dep := range graph.Dependencies(n) {
		select {
		case <-r.states[dep].done:
		case <-ctx.Done():
			r.finish(n.ID, skipped)
			return
		}
	}

	content, refs, err := r.resolve(n)
	if err != nil {
		r.fail(n, types.StageDepend, err)
		return
	}

	r.current.Store(n.FinalName)

	raw, err := r.opts.Renderer.Render(n, content)
	if err != nil {
		r.fail(n, types.StageRender, err)
		return
	}
	r.rendered.Add(1)

	data, _, err := r.opts.Codec.Encode(n.LogicalName(), raw, n.Encoding, n.Secret)
	if err != nil {
		r.fail(n, types.StageEncode, fmt.Errorf("%w: %w", types.ErrEncode, err))
		return
	}

	size := int64(len(data))
	if space := r.opts.Space; space != nil && !space.Reserve(size) {
		if !r.atFloor.Swap(true) {
			r.log.Info("free space floor reached, stopping", "free", types.FormatSize(space.Free()),
				"floor", types.FormatSize(space.Floor()))
		}
		r.finish(n.ID, skipped)
		return
	}

	path := filepath.Join(r.plan.Target, n.FinalName)
	if err := writeAtomic(ctx, path, data); err != nil {
		if r.opts.Space != nil {
			r.opts.Space.Release(size)
		}
		if ctx.Err() != nil {
			r.finish(n.ID, skipped)
			return
		}
		r.fail(n, types.StageWrite, fmt.Errorf("%w: %w", types.ErrWrite, err))
		return
	}
	if r.opts.Space != nil {
		if err := r.opts.Space.Commit(size); err != nil {
			r.log.Warn("free space recheck failed", "error", err)
		}
	}

	r.mu.Lock()
	r.files = append(r.files, File{
		ID:         n.ID,
		Name:       n.FinalName,
		Path:       path,
		Type:       n.Type,
		Size:       size,
		Encoding:   n.Encoding,
		Secret:     n.Secret,
		References: refs,
		Timestamps: n.Timestamps,
		Synthetic:  n.Synthetic,
	})
	r.mu.Unlock()

	r.written.Add(1)
	r.bytes.Add(size)
	r.finish(n.ID, written)
	r.progress(false)
}

// resolve builds the renderer content from the outcomes of n's
// dependencies. Links to targets that were not written are dropped; a
// missing hint carrier makes the node undecodable, so it fails.
func (r *run) resolve(n *types.FileSpec) (render.Content, []string, error) {
	c := render.Content{HintLines: n.HintLines, DocumentDate: n.Timestamps.DocumentDate}
	var names []string
	for _, ref := range n.References {
		target := r.plan.Graph.Node(ref.Target)
		ok := r.states[ref.Target].result == written

		if ref.Role == types.PasswordHint {
			if !ok {
				return c, nil, fmt.Errorf("%w: hint carrier %d (%s) was not written",
					types.ErrDependencyFailed, target.ID, target.FinalName)
			}
			continue
		}
		if !ok {
			r.log.Debug("dropping reference to unwritten file", "node", n.ID, "target", target.ID, "role", ref.Role)
			continue
		}
		c.References = append(c.References, render.Ref{Name: target.FinalName, Role: ref.Role, Type: target.Type})
		names = append(names, target.FinalName)
	}
	return c, names, nil
}

func (r *run) fail(n *types.FileSpec, stage types.Stage, err error) {
	nerr := &types.NodeError{ID: n.ID, Name: n.FinalName, Stage: stage, Err: err}
	r.log.Warn("file failed", "node", n.ID, "name", n.FinalName, "stage", stage, "error", err)
	r.mu.Lock()
	r.errs = append(r.errs, nerr)
	r.mu.Unlock()
	r.failed.Add(1)
	r.finish(n.ID, failed)
}

func (r *run) finish(id types.NodeID, o outcome) {
	st := r.states[id]
	st.result = o
	if o == skipped {
		r.skipped.Add(1)
	}
	close(st.done)
}

// writeAtomic writes data next to path and renames it into place, so a
// failed or cancelled write never leaves a partial file behind.
func writeAtomic(ctx context.Context, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chaff-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// applyMetadata sets timestamps on every written file in parallel.
// Failures are warnings: the file keeps its natural times.
func (r *run) applyMetadata() {
	r.mu.Lock()
	files := append([]File(nil), r.files...)
	r.mu.Unlock()

	sem := make(chan struct{}, r.opts.workers())
	var wg sync.WaitGroup
	var errsMu sync.Mutex
	var errs []error

	for _, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(f File) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := r.opts.ApplyMetadata(f.Path, f.Timestamps); err != nil {
				errsMu.Lock()
				errs = append(errs, err)
				r.warns = append(r.warns, &types.NodeError{ID: f.ID, Name: f.Name, Stage: types.StageMetadata, Err: err})
				errsMu.Unlock()
				return
			}
			r.meta.Add(1)
			r.progress(false)
		}(f)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		r.log.Warn("timestamps not applied to some files", "count", len(errs), "error", err)
	}
	if !metadata.CreationTimeSupported {
		r.log.Warn("creation time is not settable on this platform; left at write time")
	}
}

func (r *run) summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &Summary{
		RunID:              r.plan.RunID,
		Target:             r.plan.Target,
		Seed:               r.plan.Seed,
		Planned:            len(r.plan.Order),
		Rendered:           int(r.rendered.Load()),
		Written:            int(r.written.Load()),
		MetadataRandomized: int(r.meta.Load()),
		Failed:             int(r.failed.Load()),
		Skipped:            int(r.skipped.Load()),
		Bytes:              r.bytes.Load(),
		StoppedAtFloor:     r.atFloor.Load(),
		CreationTimeSet:    metadata.CreationTimeSupported,
		StartedAt:          r.started,
		Errors:             r.errs,
		Warnings:           r.warns,
		Files:              r.files,
	}
}

func (r *run) verdict(ctx context.Context, s *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var writeErrs []error
	for _, e := range s.Errors {
		if e.Stage == types.StageWrite {
			writeErrs = append(writeErrs, e)
		}
	}
	if len(writeErrs) > 0 {
		return fmt.Errorf("%d files could not be written: %w", len(writeErrs), errors.Join(writeErrs...))
	}
	if s.StoppedAtFloor && !r.plan.FillDrive {
		return fmt.Errorf("%w: wrote %d of %d planned files", types.ErrFloorReached, s.Written, s.Planned)
	}
	if s.FailureRate() > r.opts.FailureThreshold {
		return fmt.Errorf("%w: %d of %d files failed (%.1f%%, limit %.1f%%)", ErrFailureThreshold,
			s.Failed, s.Planned, 100*s.FailureRate(), 100*r.opts.FailureThreshold)
	}
	return nil
}

// progress reports to OnProgress at most every 50ms unless forced.
func (r *run) progress(force bool) {
	if r.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixMilli()
	if !force {
		last := r.lastTick.Load()
		if now-last < 50 || !r.lastTick.CompareAndSwap(last, now) {
			return
		}
	} else {
		r.lastTick.Store(now)
	}

	var free int64
	if r.opts.Space != nil {
		free = r.opts.Space.Free()
	}
	current, _ := r.current.Load().(string)
	phase, _ := r.phase.Load().(Phase)
	r.opts.OnProgress(Progress{
		Phase:     phase,
		Planned:   len(r.plan.Order),
		Written:   r.written.Load(),
		Failed:    r.failed.Load(),
		Skipped:   r.skipped.Load(),
		Bytes:     r.bytes.Load(),
		Free:      free,
		Metadata:  r.meta.Load(),
		Current:   current,
		AtFloor:   r.atFloor.Load(),
		StartedAt: r.started,
	})
}
