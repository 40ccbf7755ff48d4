// Package output renders run and plan results in the formats the CLI
// offers (pretty, plain, json, jsonl, yaml, csv, tsv, paths, null and
// template).
//
// Formatters are looked up by name from a registry:
//
//	f, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	if err := f.Format(os.Stdout, output.FromSummary(summary)); err != nil {
//	    return err
//	}
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/generator"
	"github.com/jamesainslie/chaff/pkg/chaff/planner"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// FileInfo is one generated (or, for a dry run, planned) file.
type FileInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path" yaml:"path"`
	Type       string    `json:"type" yaml:"type"`
	Encoding   string    `json:"encoding" yaml:"encoding"`
	Size       int64     `json:"size" yaml:"size"`
	SizeHuman  string    `json:"size_human" yaml:"size_human"`
	Modified   time.Time `json:"modified" yaml:"modified"`
	Bucket     string    `json:"age_bucket" yaml:"age_bucket"`
	References []string  `json:"references,omitempty" yaml:"references,omitempty"`
	Synthetic  bool      `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
}

// Stats counts what a run did or a plan would do.
type Stats struct {
	Planned    int            `json:"planned" yaml:"planned"`
	Written    int            `json:"written" yaml:"written"`
	Metadata   int            `json:"metadata_randomized" yaml:"metadata_randomized"`
	Failed     int            `json:"failed" yaml:"failed"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	Removed    int            `json:"removed" yaml:"removed"`
	Bytes      int64          `json:"bytes" yaml:"bytes"`
	Edges      int            `json:"edges" yaml:"edges"`
	ByType     map[string]int `json:"by_type" yaml:"by_type"`
	ByEncoding map[string]int `json:"by_encoding" yaml:"by_encoding"`
	Duration   time.Duration  `json:"-" yaml:"-"`
}

// Result is what every formatter renders.
type Result struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Target string `json:"target" yaml:"target"`
	Seed   uint64 `json:"seed" yaml:"seed"`
	DryRun bool   `json:"dry_run" yaml:"dry_run"`

	Files []FileInfo `json:"files" yaml:"files"`
	Stats Stats      `json:"stats" yaml:"stats"`

	StoppedAtFloor bool     `json:"stopped_at_floor" yaml:"stopped_at_floor"`
	Cancelled      bool     `json:"cancelled" yaml:"cancelled"`
	Warnings       []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// TotalSize sums the file sizes.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// FromSummary converts a finished run. Files are listed largest first.
func FromSummary(s *generator.Summary) *Result {
	r := &Result{
		RunID:          s.RunID,
		Target:         s.Target,
		Seed:           s.Seed,
		StoppedAtFloor: s.StoppedAtFloor,
		Cancelled:      s.Cancelled,
		Errors:         s.ErrorMessages(),
		Stats: Stats{
			Planned:    s.Planned,
			Written:    s.Written,
			Metadata:   s.MetadataRandomized,
			Failed:     s.Failed,
			Skipped:    s.Skipped,
			Removed:    s.Removed,
			Bytes:      s.Bytes,
			ByType:     make(map[string]int),
			ByEncoding: make(map[string]int),
			Duration:   s.Elapsed,
		},
	}
	for _, w := range s.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, f := range s.Files {
		r.Files = append(r.Files, FileInfo{
			Name:       f.Name,
			Path:       f.Path,
			Type:       string(f.Type),
			Encoding:   f.Encoding.String(),
			Size:       f.Size,
			SizeHuman:  types.FormatSize(f.Size),
			Modified:   f.Timestamps.Modified,
			Bucket:     f.Timestamps.Bucket.String(),
			References: f.References,
			Synthetic:  f.Synthetic,
		})
		r.Stats.Edges += len(f.References)
		r.Stats.ByType[string(f.Type)]++
		r.Stats.ByEncoding[f.Encoding.String()]++
	}
	sortBySize(r.Files)
	return r
}

// FromPlan converts a plan for a dry run. Sizes are pre-encoding targets.
func FromPlan(p *planner.Plan) *Result {
	st := p.Stats()
	r := &Result{
		RunID:  p.RunID,
		Target: p.Target,
		Seed:   p.Seed,
		DryRun: true,
		Stats: Stats{
			Planned:    st.Files,
			Bytes:      st.Bytes,
			ByType:     make(map[string]int),
			ByEncoding: st.ByEncoding,
		},
	}
	for t, n := range st.ByType {
		r.Stats.ByType[string(t)] = n
	}
	for _, n := range st.Edges {
		r.Stats.Edges += n
	}

	for _, spec := range p.Order {
		var refs []string
		for _, ref := range spec.References {
			if target := p.Graph.Node(ref.Target); target != nil {
				refs = append(refs, target.FinalName)
			}
		}
		r.Files = append(r.Files, FileInfo{
			Name:       spec.FinalName,
			Path:       filepath.Join(p.Target, spec.FinalName),
			Type:       string(spec.Type),
			Encoding:   spec.Encoding.String(),
			Size:       spec.TargetSize,
			SizeHuman:  types.FormatSize(spec.TargetSize),
			Modified:   spec.Timestamps.Modified,
			Bucket:     spec.Timestamps.Bucket.String(),
			References: refs,
			Synthetic:  spec.Synthetic,
		})
	}
	sortBySize(r.Files)
	return r
}

func sortBySize(files []FileInfo) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Size > files[j].Size })
}

// sortedKeys returns m's keys in order, for stable output of count maps.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Formatter writes a Result.
type Formatter interface {
	Format(w io.Writer, r *Result) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry maps names to formatter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the default registry's formatters.
func Available() []string {
	return DefaultRegistry.Available()
}
