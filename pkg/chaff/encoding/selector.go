// Package encoding selects how each planned file is wrapped on disk and
// implements the wrappers and their inverse.
//
// Every layer appends a suffix to the logical name, so "report.pdf" becomes
// "report.pdf.b64", "report.pdf.enc" or "report.pdf.zip". The suffix alone
// tells Decode which operation to invert.
package encoding

import (
	"math/rand/v2"

	"github.com/jamesainslie/chaff/pkg/chaff/graph"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// MinSecretLength is the shortest secret the selector will generate.
const MinSecretLength = 10

// Suffixes per encoding kind.
const (
	SuffixBase64    = ".b64"
	SuffixEncrypted = ".enc"
	SuffixArchived  = ".zip"
)

// Suffix returns the filename suffix for an encoding kind.
func Suffix(e types.Encoding) string {
	switch e {
	case types.EncodingBase64:
		return SuffixBase64
	case types.EncodingEncrypted:
		return SuffixEncrypted
	case types.EncodingArchived:
		return SuffixArchived
	default:
		return ""
	}
}

// FinalName returns the on-disk name for a spec with its base name set.
func FinalName(s *types.FileSpec) string {
	return s.LogicalName() + Suffix(s.Encoding)
}

// Selector assigns encodings and secrets.
type Selector struct {
	// Weights maps a type to weights in types.AllEncodings order. Types
	// without an entry stay unencoded.
	Weights map[types.FileType][]float64

	// SecretLength is raised to MinSecretLength when smaller.
	SecretLength int

	// Unencoded lists extensions that always stay plain regardless of
	// their type's weights.
	Unencoded map[string]bool
}

// DefaultUnencoded keeps PDFs openable by their native viewer.
var DefaultUnencoded = map[string]bool{"pdf": true}

// Assign samples an encoding for every node of g and a secret for those
// that need one. It must run after attachment and embed edges are final
// and before hint placement.
func (s *Selector) Assign(g *graph.Graph, rng *rand.Rand) {
	length := s.SecretLength
	if length < MinSecretLength {
		length = MinSecretLength
	}

	for _, n := range g.Nodes {
		weights, ok := s.Weights[n.Type]
		if !ok || s.Unencoded[n.Ext] {
			n.Encoding = types.EncodingNone
			continue
		}
		n.Encoding = types.AllEncodings[types.WeightedIndex(weights, rng)]
		if n.Encoding.NeedsSecret() {
			n.Secret = types.Alphanumeric(length, rng)
		}
	}
}
