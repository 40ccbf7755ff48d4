// Package planner turns settings into a complete, validated file graph.
// Planning touches the filesystem only to list names already present in the
// target directory; everything else is a pure function of the settings, the
// free space figure and the seed.
package planner

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/chaff/pkg/chaff/budget"
	"github.com/jamesainslie/chaff/pkg/chaff/config"
	"github.com/jamesainslie/chaff/pkg/chaff/encoding"
	"github.com/jamesainslie/chaff/pkg/chaff/graph"
	"github.com/jamesainslie/chaff/pkg/chaff/logging"
	"github.com/jamesainslie/chaff/pkg/chaff/metadata"
	"github.com/jamesainslie/chaff/pkg/chaff/names"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Plan is the output of planning.
type Plan struct {
	RunID     string
	Seed      uint64
	CreatedAt time.Time
	Target    string

	// Available is the free space measured before planning.
	Available int64

	// FillDrive marks a plan sized by free space rather than by count, for
	// which stopping at the floor is the expected end.
	FillDrive bool

	Graph *graph.Graph

	// Order lists nodes by ascending generation, the order in which they
	// can be written without waiting on anything not yet dispatched.
	Order []*types.FileSpec
}

// Input bundles what Build needs besides the settings.
type Input struct {
	Settings  *config.Settings
	Available int64
	Clock     metadata.Clock

	// Registry, when set, replaces a listing of the target directory.
	Registry *names.Registry
}

// Build runs allocation, graph construction, encoding selection, hint
// placement, timestamp sampling and naming, then validates the result.
func Build(in Input) (*Plan, error) {
	s := in.Settings
	log := logging.Get("planner")

	clock := in.Clock
	if clock == nil {
		clock = metadata.RealClock{}
	}
	now := clock.Now()

	seed := s.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano())
	}
	rng := types.NewRand(seed)

	constraints := budget.Constraints{
		MinCount:         s.MinFileCount,
		MaxCount:         s.MaxFileCount,
		MinSize:          s.MinFileSize,
		MaxSize:          s.MaxFileSize,
		FillDrive:        s.FillDrive,
		Available:        in.Available,
		MinRemainingFree: s.MinRemainingFree,
		Margin:           s.ExpansionMargin,
		Types:            s.Types,
	}
	if s.FillDrive {
		// AssignHints synthesizes at most one note: every later secret can
		// use the generation 0 note.
		constraints.Reserve = s.MinFileSize
	}
	specs, err := budget.Allocate(constraints, rng)
	if err != nil {
		return nil, err
	}
	log.Debug("allocated slots", "count", len(specs), "bytes", types.FormatSize(budget.Total(specs)))

	languages := s.Languages
	if len(languages) == 0 {
		languages = config.DefaultLanguages
	}
	for _, spec := range specs {
		exts := spec.Type.Extensions()
		spec.Ext = exts[rng.IntN(len(exts))]
		spec.Language = languages[rng.IntN(len(languages))]
	}

	g := graph.Build(specs, s.MaxOutDegree, rng)

	selector := &encoding.Selector{
		Weights:      encodingWeights(s),
		SecretLength: s.SecretLength,
		Unencoded:    encoding.DefaultUnencoded,
	}
	selector.Assign(g, rng)

	notes := graph.AssignHints(g, s.MinFileSize, rng)
	if len(notes) > 0 {
		log.Debug("synthesized hint notes", "count", len(notes))
	}
	if err := constraints.Fits(g.Nodes); err != nil {
		return nil, err
	}

	randomizer := &metadata.Randomizer{Weights: bucketWeights(s), Clock: clock}
	if w, ok := s.AgeBuckets[config.DefaultBucketKey]; ok {
		randomizer.Default = w.Slice()
	}
	for _, n := range g.Nodes {
		n.Timestamps = randomizer.Sample(n.Type, rng)
	}

	registry := in.Registry
	if registry == nil {
		registry = names.NewRegistry()
		if err := registry.LoadDir(s.TargetDirectory); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
	}
	assignNames(g, registry, now, rng)

	if err := g.Validate(s.MaxOutDegree); err != nil {
		return nil, err
	}

	return &Plan{
		RunID:     uuid.NewString(),
		Seed:      seed,
		CreatedAt: now,
		Target:    s.TargetDirectory,
		Available: in.Available,
		FillDrive: s.FillDrive,
		Graph:     g,
		Order:     g.ByGeneration(),
	}, nil
}

func assignNames(g *graph.Graph, registry *names.Registry, now time.Time, rng *rand.Rand) {
	for _, n := range g.Nodes {
		base := names.Base(n.Language, n.Synthetic, now, rng)
		rest := "." + n.Ext + encoding.Suffix(n.Encoding)
		n.BaseName = registry.Claim(base, rest)
		n.FinalName = encoding.FinalName(n)
	}
}

func encodingWeights(s *config.Settings) map[types.FileType][]float64 {
	out := make(map[types.FileType][]float64, len(s.EncodingWeights))
	for key, w := range s.EncodingWeights {
		out[types.FileType(key)] = w.Slice()
	}
	return out
}

func bucketWeights(s *config.Settings) map[types.FileType][]float64 {
	out := make(map[types.FileType][]float64, len(s.AgeBuckets))
	for key, w := range s.AgeBuckets {
		if key == config.DefaultBucketKey {
			continue
		}
		out[types.FileType(key)] = w.Slice()
	}
	return out
}

// Stats summarizes a plan for display.
type Stats struct {
	Files      int                    `json:"files" yaml:"files"`
	Synthetic  int                    `json:"synthetic_notes" yaml:"synthetic_notes"`
	Bytes      int64                  `json:"bytes" yaml:"bytes"`
	Edges      map[string]int         `json:"edges" yaml:"edges"`
	ByType     map[types.FileType]int `json:"by_type" yaml:"by_type"`
	ByEncoding map[string]int         `json:"by_encoding" yaml:"by_encoding"`
	ByBucket   map[string]int         `json:"by_bucket" yaml:"by_bucket"`
	Largest    []*types.FileSpec      `json:"-" yaml:"-"`
}

// Stats counts the plan's nodes and edges.
func (p *Plan) Stats() Stats {
	st := Stats{
		Edges:      make(map[string]int),
		ByType:     make(map[types.FileType]int),
		ByEncoding: make(map[string]int),
		ByBucket:   make(map[string]int),
	}
	for _, n := range p.Graph.Nodes {
		st.Files++
		if n.Synthetic {
			st.Synthetic++
		}
		st.Bytes += n.TargetSize
		st.ByType[n.Type]++
		st.ByEncoding[n.Encoding.String()]++
		st.ByBucket[n.Timestamps.Bucket.String()]++
		for _, r := range n.References {
			st.Edges[r.Role.String()]++
		}
	}

	st.Largest = append([]*types.FileSpec(nil), p.Graph.Nodes...)
	sort.SliceStable(st.Largest, func(i, j int) bool {
		return st.Largest[i].TargetSize > st.Largest[j].TargetSize
	})
	if len(st.Largest) > 5 {
		st.Largest = st.Largest[:5]
	}
	return st
}
