// Package render produces the raw bytes of each chaff file. Renderers are
// deterministic for a given seed and node, land within Tolerance of the
// node's target size, and write references and hint lines verbatim so they
// can be found again after decoding.
package render

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Tolerance is the relative size band renderers aim for around a target.
// Targets smaller than a format's fixed overhead produce the overhead alone.
const Tolerance = 0.05

// Ref is a resolved outgoing reference: the name the target has on disk.
type Ref struct {
	Name string
	Role types.Role
	Type types.FileType
}

// Content is what a rendered file must mention.
type Content struct {
	References   []Ref
	HintLines    []string
	DocumentDate time.Time
}

// Renderer turns a node and its resolved content into file bytes.
type Renderer interface {
	Render(spec *types.FileSpec, c Content) ([]byte, error)
}

// Func renders one extension. rng is private to the call.
type Func func(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error)

// Set dispatches on the node's extension.
type Set struct {
	seed  uint64
	byExt map[string]Func
}

// NewSet returns a Set with a renderer for every known extension.
func NewSet(seed uint64) *Set {
	s := &Set{seed: seed, byExt: make(map[string]Func)}
	s.Register("txt", renderText)
	s.Register("md", renderMarkdown)
	s.Register("eml", renderEmail)
	s.Register("pdf", renderPDF)
	s.Register("docx", renderDocx)
	s.Register("csv", renderCSV)
	s.Register("xlsx", renderXlsx)
	s.Register("png", renderPNG)
	s.Register("jpg", renderJPEG)
	s.Register("json", renderJSON)
	s.Register("yaml", renderYAML)
	s.Register("xml", renderXML)
	return s
}

// Register sets the renderer for ext, replacing any existing one.
func (s *Set) Register(ext string, fn Func) {
	s.byExt[strings.ToLower(ext)] = fn
}

// Render implements Renderer. Errors wrap types.ErrRender.
func (s *Set) Render(spec *types.FileSpec, c Content) ([]byte, error) {
	fn, ok := s.byExt[strings.ToLower(spec.Ext)]
	if !ok {
		return nil, fmt.Errorf("%w: no renderer for .%s", types.ErrRender, spec.Ext)
	}
	rng := rand.New(rand.NewPCG(s.seed, uint64(spec.ID)))
	data, err := fn(spec, c, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrRender, spec.LogicalName(), err)
	}
	return data, nil
}

// Within reports whether size is inside the tolerance band around target.
func Within(size int, target int64) bool {
	diff := float64(int64(size) - target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= float64(target)*Tolerance
}

const maxFitAttempts = 5

// fitTo calls build with a filler budget and corrects the budget from the
// observed output size until the result falls within Tolerance. The closest
// attempt is returned when none converges.
func fitTo(target int64, build func(fill int) ([]byte, error)) ([]byte, error) {
	fill := int(target)
	var best []byte
	for i := 0; i < maxFitAttempts; i++ {
		out, err := build(fill)
		if err != nil {
			return nil, err
		}
		if best == nil || distance(len(out), target) < distance(len(best), target) {
			best = out
		}
		if Within(len(out), target) || len(out) == 0 {
			break
		}

		slope := 1.0
		if fill > 0 {
			slope = clampFloat(float64(len(out))/float64(fill), 0.25, 4)
		}
		next := fill + int(float64(target-int64(len(out)))/slope)
		if next < 0 {
			next = 0
		}
		if next == fill {
			break
		}
		fill = next
	}
	return best, nil
}

func distance(size int, target int64) int64 {
	d := int64(size) - target
	if d < 0 {
		return -d
	}
	return d
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// title derives a human title from the node's base name.
func title(spec *types.FileSpec) string {
	base := spec.BaseName
	if base == "" {
		base = string(spec.Type)
	}
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// byRole returns the names referenced with role.
func byRole(refs []Ref, role types.Role) []Ref {
	var out []Ref
	for _, r := range refs {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out
}
