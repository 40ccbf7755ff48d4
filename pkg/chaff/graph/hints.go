package graph

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// hintFormats never name a file, so a hint can not dangle when the file it
// unlocks fails to materialize.
var hintFormats = []string{
	"Decryption key: %s",
	"Backup access code: %s",
	"Archive password: %s",
	"Access credentials - Pass: %s",
	"Security memo: passphrase '%s'",
}

// HintLine formats a secret as a human readable hint.
func HintLine(secret string, rng *rand.Rand) string {
	return fmt.Sprintf(hintFormats[rng.IntN(len(hintFormats))], secret)
}

// NoteExt is the extension of synthesized hint notes.
const NoteExt = "txt"

// AssignHints runs after encodings are known. Every node whose encoding
// needs a secret gets exactly one passwordHint edge to a carrier of lower
// generation that renders the secret in plain or base64 form. When no such
// carrier exists a text note of size noteSize is synthesized at generation
// 0 and used instead. It returns the synthesized notes.
func AssignHints(g *Graph, noteSize int64, rng *rand.Rand) []*types.FileSpec {
	// Eligible carriers sorted by generation so the candidates of a node
	// are a prefix.
	var carriers []*types.FileSpec
	for _, n := range g.Nodes {
		if types.CapabilitiesOf(n.Type).SecretCarrier && !n.Encoding.NeedsSecret() {
			carriers = append(carriers, n)
		}
	}
	sort.SliceStable(carriers, func(i, j int) bool {
		return carriers[i].Generation < carriers[j].Generation
	})

	var notes []*types.FileSpec
	for _, n := range g.ByGeneration() {
		if !n.Encoding.NeedsSecret() {
			continue
		}

		eligible := sort.Search(len(carriers), func(i int) bool {
			return carriers[i].Generation >= n.Generation
		})

		var carrier *types.FileSpec
		if eligible > 0 {
			carrier = carriers[rng.IntN(eligible)]
		} else {
			carrier = &types.FileSpec{
				Type:       types.Text,
				Ext:        NoteExt,
				TargetSize: noteSize,
				Language:   n.Language,
				Generation: 0,
				Encoding:   types.EncodingNone,
				Synthetic:  true,
			}
			g.add(carrier)
			notes = append(notes, carrier)
			// Generation 0 sorts first, so later secrets may reuse it.
			carriers = append([]*types.FileSpec{carrier}, carriers...)
		}

		carrier.HintLines = append(carrier.HintLines, HintLine(n.Secret, rng))
		n.References = append(n.References, types.Reference{Target: carrier.ID, Role: types.PasswordHint})
	}

	return notes
}
