// Package metadata samples realistic file timestamps and applies them to
// written files.
package metadata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// DefaultWeights is the bucket distribution for types without an entry.
var DefaultWeights = []float64{0.25, 0.35, 0.25, 0.15}

// recentAccessWindow and recentAccessProbability model files that were
// opened lately regardless of their age.
const (
	recentAccessWindow      = 90 * 24 * time.Hour
	recentAccessProbability = 0.70
)

// modifiedSkew is the exponent applied to the uniform draw that places
// modified between created and now. Larger exponents pull modified towards
// created, so older files show less late activity.
var modifiedSkew = map[types.AgeBucket]float64{
	types.Recent:  1,
	types.Medium:  1.5,
	types.Old:     2.5,
	types.Archive: 4,
}

const day = 24 * time.Hour

// Randomizer samples a TimestampTriple per file.
type Randomizer struct {
	// Weights maps a type to bucket weights in types.AllAgeBuckets order.
	Weights map[types.FileType][]float64

	// Default applies to types missing from Weights. Nil uses DefaultWeights.
	Default []float64

	Clock Clock
}

func (r *Randomizer) weights(t types.FileType) []float64 {
	if w, ok := r.Weights[t]; ok {
		return w
	}
	if r.Default != nil {
		return r.Default
	}
	return DefaultWeights
}

// Sample draws a bucket for t and a triple within it. The result always
// satisfies created <= modified <= accessed <= now, and the document date
// lies between created and modified.
func (r *Randomizer) Sample(t types.FileType, rng *rand.Rand) types.TimestampTriple {
	clock := r.Clock
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()

	bucket := types.AllAgeBuckets[types.WeightedIndex(r.weights(t), rng)]
	lo, hi := bucket.DayRange()

	age := uniform(time.Duration(lo)*day, time.Duration(hi)*day, rng)
	created := now.Add(-age)

	span := now.Sub(created)
	modified := created.Add(time.Duration(float64(span) * math.Pow(rng.Float64(), modifiedSkew[bucket])))

	var accessed time.Time
	if rng.Float64() < recentAccessProbability {
		accessed = now.Add(-uniform(0, recentAccessWindow, rng))
	} else {
		accessed = modified.Add(uniform(0, now.Sub(modified), rng))
	}
	if accessed.Before(modified) {
		accessed = modified
	}

	// Content dates stay within a quarter of the bucket width after
	// creation and never after the last modification.
	docLimit := created.Add(time.Duration(hi-lo) * day / 4)
	if modified.Before(docLimit) {
		docLimit = modified
	}
	documentDate := created.Add(uniform(0, docLimit.Sub(created), rng))

	// Second resolution survives every filesystem; flooring is monotone so
	// the ordering holds.
	return types.TimestampTriple{
		Created:      created.Truncate(time.Second),
		Modified:     modified.Truncate(time.Second),
		Accessed:     accessed.Truncate(time.Second),
		DocumentDate: documentDate.Truncate(time.Second),
		Bucket:       bucket,
	}
}

func uniform(lo, hi time.Duration, rng *rand.Rand) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1))
}

// Apply sets the access and modification times of path, and its creation
// time where the platform allows. It is idempotent. Failures wrap
// types.ErrMetadataApply; the file is left with its natural timestamps.
func Apply(path string, ts types.TimestampTriple) error {
	if err := os.Chtimes(path, ts.Accessed, ts.Modified); err != nil {
		return fmt.Errorf("%w: setting times on %s: %w", types.ErrMetadataApply, path, err)
	}
	if CreationTimeSupported {
		if err := setCreationTime(path, ts); err != nil {
			return fmt.Errorf("%w: setting creation time on %s: %w", types.ErrMetadataApply, path, err)
		}
	}
	return nil
}
