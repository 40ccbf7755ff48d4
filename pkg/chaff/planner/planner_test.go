package planner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/budget"
	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		TargetDirectory:  t.TempDir(),
		MinRemainingFree: 1 * types.MiB,
		MinFileSize:      1 * types.KiB,
		MaxFileSize:      16 * types.KiB,
		MinFileCount:     40,
		MaxFileCount:     80,
		Types:            types.AllFileTypes,
		Languages:        []string{"en", "de", "jp"},
		MaxOutDegree:     3,
		ExpansionMargin:  1.35,
		SecretLength:     12,
		Seed:             20240115,
		AgeBuckets:       config.DefaultAgeBuckets,
		EncodingWeights:  config.DefaultEncodingWeights,
	}
}

func build(t *testing.T, s *config.Settings) *Plan {
	t.Helper()
	p, err := Build(Input{Settings: s, Available: 1 * types.GiB, Clock: stubClock{fixedNow}})
	require.NoError(t, err)
	return p
}

type fingerprint struct {
	Name       string
	Encoding   types.Encoding
	Secret     string
	Generation int
	References []types.Reference
	Timestamps types.TimestampTriple
	Hints      []string
}

func fingerprints(p *Plan) []fingerprint {
	var out []fingerprint
	for _, n := range p.Graph.Nodes {
		out = append(out, fingerprint{n.FinalName, n.Encoding, n.Secret, n.Generation, n.References, n.Timestamps, n.HintLines})
	}
	return out
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	s := testSettings(t)

	a, b := build(t, s), build(t, s)
	assert.Equal(t, fingerprints(a), fingerprints(b))
	assert.NotEqual(t, a.RunID, b.RunID)

	s2 := *s
	s2.Seed++
	assert.NotEqual(t, fingerprints(a), fingerprints(build(t, &s2)))
}

func TestBuild_NoDanglingReferences(t *testing.T) {
	t.Parallel()
	for seed := uint64(1); seed <= 25; seed++ {
		s := testSettings(t)
		s.Seed = seed
		p := build(t, s)

		for _, n := range p.Graph.Nodes {
			for _, ref := range n.References {
				target := p.Graph.Node(ref.Target)
				require.NotNil(t, target, "seed %d: node %d -> %d", seed, n.ID, ref.Target)
				assert.Less(t, target.Generation, n.Generation)
			}
			if n.Encoding.NeedsSecret() {
				hints := n.Targets(types.PasswordHint)
				require.Len(t, hints, 1)
				carrier := p.Graph.Node(hints[0])
				assert.Contains(t, strings.Join(carrier.HintLines, "\n"), n.Secret)
			}
		}
	}
}

func TestBuild_OrderIsByGeneration(t *testing.T) {
	t.Parallel()
	p := build(t, testSettings(t))

	require.Len(t, p.Order, p.Graph.Len())
	for i := 1; i < len(p.Order); i++ {
		assert.LessOrEqual(t, p.Order[i-1].Generation, p.Order[i].Generation)
	}
}

func TestBuild_NamesAreUniqueAndAvoidExistingFiles(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	first := build(t, s)
	for _, n := range first.Graph.Nodes {
		require.NoError(t, os.WriteFile(filepath.Join(s.TargetDirectory, n.FinalName), nil, 0o644))
	}

	second := build(t, s)
	seen := make(map[string]bool)
	for _, n := range second.Graph.Nodes {
		key := strings.ToLower(n.FinalName)
		assert.False(t, seen[key], "duplicate name %s", n.FinalName)
		seen[key] = true

		_, err := os.Stat(filepath.Join(s.TargetDirectory, n.FinalName))
		assert.True(t, os.IsNotExist(err), "%s collides with an existing file", n.FinalName)
		assert.True(t, strings.HasPrefix(n.FinalName, n.BaseName+"."+n.Ext))
	}
}

func TestBuild_AssignsExtensionsAndLanguages(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	p := build(t, s)

	for _, n := range p.Graph.Nodes {
		assert.Contains(t, n.Type.Extensions(), n.Ext)
		assert.Contains(t, s.Languages, n.Language)
		assert.True(t, n.Timestamps.Ordered())
		assert.False(t, n.Timestamps.Accessed.After(fixedNow))
	}
}

func TestBuild_UnencodedTypesStayPlain(t *testing.T) {
	t.Parallel()
	p := build(t, testSettings(t))

	for _, n := range p.Graph.Nodes {
		if n.Type == types.Email || n.Type == types.Image {
			assert.Equal(t, types.EncodingNone, n.Encoding, "node %d", n.ID)
		}
	}
}

func TestBuild_FillDriveRespectsBudget(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	s.FillDrive = true
	available := int64(4 * types.MiB)

	p, err := Build(Input{Settings: s, Available: available, Clock: stubClock{fixedNow}})
	require.NoError(t, err)

	var cost int64
	for _, n := range p.Graph.Nodes {
		cost += budget.Cost(n.TargetSize, s.ExpansionMargin)
	}
	assert.LessOrEqual(t, cost, available-s.MinRemainingFree)
	assert.Greater(t, p.Graph.Len(), 100)
	assert.True(t, p.FillDrive)
}

func TestBuild_NotesStayWithinSizeRange(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	s.MinFileSize = 64 * types.KiB
	s.MaxFileSize = 128 * types.KiB
	// No enabled type can carry a hint, so every secret needs a
	// synthesized note.
	s.Types = []types.FileType{types.Spreadsheet, types.Structured, types.Image}
	s.EncodingWeights = map[string]config.EncodingWeights{
		"spreadsheet": {Encrypted: 1},
		"structured":  {Archived: 1},
	}

	for _, fill := range []bool{false, true} {
		s.FillDrive = fill
		available := int64(64 * types.MiB)
		if fill {
			available = 8 * types.MiB
		}
		p, err := Build(Input{Settings: s, Available: available, Clock: stubClock{fixedNow}})
		require.NoError(t, err)

		notes := 0
		var cost int64
		for _, n := range p.Graph.Nodes {
			cost += budget.Cost(n.TargetSize, s.ExpansionMargin)
			assert.GreaterOrEqual(t, n.TargetSize, s.MinFileSize, "node %d (%s synthetic=%v)", n.ID, n.Type, n.Synthetic)
			assert.LessOrEqual(t, n.TargetSize, s.MaxFileSize, "node %d (%s synthetic=%v)", n.ID, n.Type, n.Synthetic)
			if n.Synthetic {
				notes++
			}
		}
		assert.Positive(t, notes, "fill=%v", fill)
		if fill {
			assert.LessOrEqual(t, cost, available-s.MinRemainingFree)
		}
	}
}

func TestBuild_InsufficientSpace(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	_, err := Build(Input{Settings: s, Available: 512 * types.KiB, Clock: stubClock{fixedNow}})
	assert.True(t, errors.Is(err, types.ErrInsufficientSpace))
}

func TestBuild_CountPlanAboveFloor(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	s.MinFileCount, s.MaxFileCount = 50, 50
	s.MinFileSize, s.MaxFileSize = types.MiB, types.MiB

	_, err := Build(Input{Settings: s, Available: 10 * types.MiB, Clock: stubClock{fixedNow}})
	assert.True(t, errors.Is(err, types.ErrInsufficientSpace), "got %v", err)
}

func TestBuild_ZeroSeedIsRecorded(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	s.Seed = 0
	p := build(t, s)
	assert.Equal(t, uint64(fixedNow.UnixNano()), p.Seed)
}

func TestPlan_Stats(t *testing.T) {
	t.Parallel()
	p := build(t, testSettings(t))
	st := p.Stats()

	assert.Equal(t, p.Graph.Len(), st.Files)
	var byType, byEnc, byBucket int
	for _, v := range st.ByType {
		byType += v
	}
	for _, v := range st.ByEncoding {
		byEnc += v
	}
	for _, v := range st.ByBucket {
		byBucket += v
	}
	assert.Equal(t, st.Files, byType)
	assert.Equal(t, st.Files, byEnc)
	assert.Equal(t, st.Files, byBucket)
	assert.LessOrEqual(t, len(st.Largest), 5)
	if len(st.Largest) > 1 {
		assert.GreaterOrEqual(t, st.Largest[0].TargetSize, st.Largest[1].TargetSize)
	}
}
