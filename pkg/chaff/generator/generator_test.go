package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/diskspace"
	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/graph"
	"github.com/jamesainslie/chaff/pkg/chaff/planner"
	"github.com/jamesainslie/chaff/pkg/chaff/render"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func fastCodec() *encoding.Codec {
	return encoding.NewCodec(encoding.Options{KDFIterations: 1000, Compress: true, ArchiveWorkFactor: 10})
}

func testPlan(t *testing.T, seed uint64) *planner.Plan {
	t.Helper()
	return planWith(t, seed, types.GiB, nil)
}

func planWith(t *testing.T, seed uint64, available int64, mutate func(*config.Settings)) *planner.Plan {
	t.Helper()
	s := &config.Settings{
		TargetDirectory: filepath.Join(t.TempDir(), "out"),
		MinFileSize:     512,
		MaxFileSize:     4 * types.KiB,
		MinFileCount:    30,
		MaxFileCount:    40,
		Types:           types.AllFileTypes,
		Languages:       []string{"en", "fr"},
		MaxOutDegree:    3,
		ExpansionMargin: 1.35,
		SecretLength:    12,
		Seed:            seed,
		AgeBuckets:      config.DefaultAgeBuckets,
		EncodingWeights: config.DefaultEncodingWeights,
	}
	if mutate != nil {
		mutate(s)
	}
	p, err := planner.Build(planner.Input{Settings: s, Available: available, Clock: stubClock{fixedNow}})
	require.NoError(t, err)
	return p
}

func baseOptions(seed uint64) Options {
	return Options{
		Workers:          4,
		FailureThreshold: 0.1,
		Renderer:         render.NewSet(seed),
		Codec:            fastCodec(),
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(dir, ".chaff-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRun_WritesEveryNodeWithoutDanglingReferences(t *testing.T) {
	t.Parallel()
	plan := testPlan(t, 11)

	summary, err := Run(context.Background(), plan, baseOptions(11))
	require.NoError(t, err)

	assert.Equal(t, len(plan.Order), summary.Planned)
	assert.Equal(t, summary.Planned, summary.Written)
	assert.Equal(t, summary.Planned, summary.Rendered)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, summary.Written, summary.MetadataRandomized)

	for _, f := range summary.Files {
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Size, info.Size())
		for _, ref := range f.References {
			_, err := os.Stat(filepath.Join(plan.Target, ref))
			assert.NoError(t, err, "%s references missing %s", f.Name, ref)
		}
	}
	assertNoTempFiles(t, plan.Target)
}

func TestRun_CarriersHoldSecretsThatDecodeTheirFiles(t *testing.T) {
	t.Parallel()
	plan := testPlan(t, 23)
	codec := fastCodec()

	opts := baseOptions(23)
	opts.Codec = codec
	summary, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)
	require.Equal(t, summary.Planned, summary.Written)

	secrets := 0
	for _, n := range plan.Graph.Nodes {
		if !n.Encoding.NeedsSecret() {
			continue
		}
		secrets++
		carrier := plan.Graph.Node(n.Targets(types.PasswordHint)[0])

		carrierBytes, err := os.ReadFile(filepath.Join(plan.Target, carrier.FinalName))
		require.NoError(t, err)
		if carrier.Encoding == types.EncodingBase64 {
			carrierBytes, _, err = codec.Decode(carrier.FinalName, carrierBytes, "")
			require.NoError(t, err)
		}
		assert.True(t, bytes.Contains(carrierBytes, []byte(n.Secret)), "carrier %s lacks secret of %s", carrier.FinalName, n.FinalName)

		data, err := os.ReadFile(filepath.Join(plan.Target, n.FinalName))
		require.NoError(t, err)
		_, name, err := codec.Decode(n.FinalName, data, n.Secret)
		require.NoError(t, err)
		assert.Equal(t, n.LogicalName(), name)
	}
	assert.Positive(t, secrets, "seed should produce secret-bearing files")
}

// fixedSpace reports free bytes that never change, so the counter's own
// reservations are the only thing moving it towards the floor.
func fixedSpace(t *testing.T, path string, free, floor int64) *diskspace.Counter {
	t.Helper()
	space, err := diskspace.NewCounter(path, floor, 1<<20, func(string) (uint64, error) {
		return uint64(free), nil
	})
	require.NoError(t, err)
	return space
}

func TestRun_FillPlanStopsAtFloor(t *testing.T) {
	t.Parallel()
	const floor = 1_000_000
	plan := planWith(t, 5, floor+256*types.KiB, func(s *config.Settings) {
		s.FillDrive = true
		s.MinRemainingFree = floor
	})
	require.True(t, plan.FillDrive)

	// The filesystem shrank after planning.
	space := fixedSpace(t, plan.Target, floor+20*types.KiB, floor)

	opts := baseOptions(5)
	opts.Space = space
	opts.FailureThreshold = 1
	summary, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)

	assert.True(t, summary.StoppedAtFloor)
	assert.Less(t, summary.Written, summary.Planned)
	assert.Positive(t, summary.Skipped)
	assert.LessOrEqual(t, summary.Bytes, int64(20*types.KiB))
	assert.GreaterOrEqual(t, space.Free(), int64(floor))
	assertNoTempFiles(t, plan.Target)
}

func TestRun_CountPlanStoppedAtFloorFails(t *testing.T) {
	t.Parallel()
	plan := testPlan(t, 5)
	require.False(t, plan.FillDrive)

	const floor = 1_000_000
	space := fixedSpace(t, plan.Target, floor+20*types.KiB, floor)

	opts := baseOptions(5)
	opts.Space = space
	opts.FailureThreshold = 1
	summary, err := Run(context.Background(), plan, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFloorReached)

	require.NotNil(t, summary)
	assert.True(t, summary.StoppedAtFloor)
	assert.Less(t, summary.Written, summary.Planned)
	assert.GreaterOrEqual(t, space.Free(), int64(floor))
	assertNoTempFiles(t, plan.Target)
}

func TestRun_FillDriveStaysAboveFloorAcrossEncodings(t *testing.T) {
	t.Parallel()
	only := func(w config.EncodingWeights) map[string]config.EncodingWeights {
		return map[string]config.EncodingWeights{"document": w, "spreadsheet": w, "text": w, "structured": w}
	}
	tests := []struct {
		name    string
		weights map[string]config.EncodingWeights
	}{
		{"defaults", config.DefaultEncodingWeights},
		{"base64", only(config.EncodingWeights{Base64: 1})},
		{"encrypted", only(config.EncodingWeights{Encrypted: 1})},
		{"archived", only(config.EncodingWeights{Archived: 1})},
		{"mixed", only(config.EncodingWeights{None: 0.1, Base64: 0.6, Encrypted: 0.15, Archived: 0.15})},
	}

	const floor = 1_000_000
	const available = floor + 2*types.MiB

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, seed := range []uint64{3, 17} {
				plan := planWith(t, seed, available, func(s *config.Settings) {
					s.FillDrive = true
					s.MinRemainingFree = floor
					s.MinFileSize = 16 * types.KiB
					s.MaxFileSize = 64 * types.KiB
					s.ExpansionMargin = config.DefaultExpansionMargin
					s.EncodingWeights = tt.weights
				})
				space := fixedSpace(t, plan.Target, available, floor)

				opts := baseOptions(seed)
				opts.Space = space
				summary, err := Run(context.Background(), plan, opts)
				require.NoError(t, err, "seed %d", seed)

				assert.False(t, summary.StoppedAtFloor, "seed %d: plan overran the margin", seed)
				assert.Zero(t, summary.Skipped, "seed %d", seed)
				assert.Equal(t, summary.Planned, summary.Written, "seed %d", seed)
				assert.LessOrEqual(t, summary.Bytes, available-floor, "seed %d", seed)
				assert.GreaterOrEqual(t, space.Free(), int64(floor), "seed %d", seed)
			}
		})
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	t.Parallel()
	plan := testPlan(t, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, plan, baseOptions(8))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Written)
	assert.Equal(t, summary.Planned, summary.Skipped)
	assertNoTempFiles(t, plan.Target)
}

type recordingRenderer struct {
	inner render.Renderer
	fail  map[types.NodeID]bool

	mu   sync.Mutex
	seen map[types.NodeID]render.Content
}

func (r *recordingRenderer) Render(s *types.FileSpec, c render.Content) ([]byte, error) {
	r.mu.Lock()
	r.seen[s.ID] = c
	r.mu.Unlock()
	if r.fail[s.ID] {
		return nil, fmt.Errorf("%w: injected", types.ErrRender)
	}
	return r.inner.Render(s, c)
}

// handPlan builds note(1) <- hint - report(2, encrypted); mail(3) attaches
// report and photo(4).
func handPlan(t *testing.T) *planner.Plan {
	t.Helper()
	ts := types.TimestampTriple{
		Created: fixedNow.Add(-72 * time.Hour), Modified: fixedNow.Add(-48 * time.Hour),
		Accessed: fixedNow.Add(-time.Hour), DocumentDate: fixedNow.Add(-60 * time.Hour),
	}
	specs := []*types.FileSpec{
		{ID: 1, Type: types.Text, Ext: "txt", TargetSize: 600, Language: "en", Generation: 1,
			BaseName: "keys", FinalName: "keys.txt", HintLines: []string{"Decryption key: K3yK3yK3yK3y"}, Timestamps: ts},
		{ID: 4, Type: types.Image, Ext: "png", TargetSize: 900, Language: "en", Generation: 2,
			BaseName: "photo", FinalName: "photo.png", Timestamps: ts},
		{ID: 2, Type: types.Document, Ext: "docx", TargetSize: 2000, Language: "en", Generation: 3,
			Encoding: types.EncodingEncrypted, Secret: "K3yK3yK3yK3y", BaseName: "report", FinalName: "report.docx.enc",
			References: []types.Reference{{Target: 1, Role: types.PasswordHint}}, Timestamps: ts},
		{ID: 3, Type: types.Email, Ext: "eml", TargetSize: 1500, Language: "en", Generation: 4,
			BaseName: "mail", FinalName: "mail.eml", Timestamps: ts,
			References: []types.Reference{{Target: 2, Role: types.Attachment}, {Target: 4, Role: types.Attachment}}},
	}
	g := graph.New(specs)
	require.NoError(t, g.Validate(3))
	return &planner.Plan{RunID: "hand", Target: t.TempDir(), Graph: g, Order: g.ByGeneration()}
}

func TestRun_FailedCarrierDropsSecretNodeAndItsReferrers(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	rec := &recordingRenderer{inner: render.NewSet(1), fail: map[types.NodeID]bool{1: true}, seen: map[types.NodeID]render.Content{}}

	opts := baseOptions(1)
	opts.Renderer = rec
	opts.FailureThreshold = 1
	summary, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.Written)

	stages := map[types.NodeID]types.Stage{}
	for _, e := range summary.Errors {
		stages[e.ID] = e.Stage
	}
	assert.Equal(t, types.StageRender, stages[1])
	assert.Equal(t, types.StageDepend, stages[2])
	for _, e := range summary.Errors {
		if e.ID == 2 {
			assert.True(t, errors.Is(e, types.ErrDependencyFailed))
		}
	}

	mail := rec.seen[3]
	require.Len(t, mail.References, 1)
	assert.Equal(t, "photo.png", mail.References[0].Name)

	body, err := os.ReadFile(filepath.Join(plan.Target, "mail.eml"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "photo.png")
	assert.NotContains(t, string(body), "report.docx.enc")
	_, err = os.Stat(filepath.Join(plan.Target, "report.docx.enc"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_FailureThreshold(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	rec := &recordingRenderer{inner: render.NewSet(1), fail: map[types.NodeID]bool{4: true}, seen: map[types.NodeID]render.Content{}}

	opts := baseOptions(1)
	opts.Renderer = rec
	opts.FailureThreshold = 0.1
	summary, err := Run(context.Background(), plan, opts)
	assert.ErrorIs(t, err, ErrFailureThreshold)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 0.25, summary.FailureRate(), 1e-9)
}

func TestRun_AppliesTimestamps(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	summary, err := Run(context.Background(), plan, baseOptions(2))
	require.NoError(t, err)
	require.Equal(t, 4, summary.MetadataRandomized)

	for _, f := range summary.Files {
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(f.Timestamps.Modified), "%s mtime %v", f.Name, info.ModTime())
	}
}

func TestRun_MetadataFailuresAreWarnings(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	opts := baseOptions(2)
	opts.ApplyMetadata = func(string, types.TimestampTriple) error {
		return fmt.Errorf("%w: read-only", types.ErrMetadataApply)
	}

	summary, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Written)
	assert.Zero(t, summary.MetadataRandomized)
	assert.Len(t, summary.Warnings, 4)
	assert.Empty(t, summary.Errors)
}

type fakeCleaner struct{ paths []string }

func (f *fakeCleaner) Remove(paths []string) (int, error) {
	f.paths = append(f.paths, paths...)
	return len(paths), nil
}

func TestRun_CleanupRemovesWrittenFiles(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	cleaner := &fakeCleaner{}
	opts := baseOptions(3)
	opts.Cleanup = cleaner

	summary, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Removed)
	assert.ElementsMatch(t, summary.Paths(), cleaner.paths)
}

func TestRun_ProgressReachesDone(t *testing.T) {
	t.Parallel()
	plan := handPlan(t)
	var mu sync.Mutex
	var last Progress
	opts := baseOptions(4)
	opts.OnProgress = func(p Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	}

	_, err := Run(context.Background(), plan, opts)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, PhaseDone, last.Phase)
	assert.Equal(t, int64(4), last.Written)
}

func TestRun_RequiresRendererAndCodec(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), handPlan(t), Options{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
