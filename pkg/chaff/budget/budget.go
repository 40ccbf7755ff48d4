// Package budget turns count, size and free space constraints into a
// concrete list of planned file slots.
package budget

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// DefaultMargin is the fill-drive reservation factor against encoding
// expansion. Wrapped base64 alone is 4/3 * 77/76 (about 1.351) and the
// renderers may overshoot a target by 5%, so anything below 1.42 plans
// more than the floor allows.
const DefaultMargin = 1.45

// Constraints bound a plan.
type Constraints struct {
	MinCount int
	MaxCount int
	MinSize  int64
	MaxSize  int64

	// FillDrive ignores the count bounds and plans until the free space
	// budget is spent.
	FillDrive bool

	// Available is the measured free space of the target filesystem.
	Available int64

	// MinRemainingFree is the floor that must stay free.
	MinRemainingFree int64

	// Margin multiplies every planned size in fill-drive mode. Zero uses
	// DefaultMargin.
	Margin float64

	// Reserve is held back from the fill-drive budget for files added
	// after allocation, such as synthesized hint notes. It is a planned
	// size; the margin applies to it like any slot.
	Reserve int64

	Types []types.FileType
}

// Validate checks the constraints without sampling anything.
func (c Constraints) Validate() error {
	if c.MinSize <= 0 || c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: file size [%d, %d]", types.ErrInvalidRange, c.MinSize, c.MaxSize)
	}
	if !c.FillDrive && (c.MinCount < 0 || c.MinCount > c.MaxCount) {
		return fmt.Errorf("%w: file count [%d, %d]", types.ErrInvalidRange, c.MinCount, c.MaxCount)
	}
	if c.Margin != 0 && c.Margin < 1 {
		return fmt.Errorf("%w: margin %.2f below 1", types.ErrInvalidRange, c.Margin)
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("%w: no enabled file types", types.ErrConfiguration)
	}
	if c.MinRemainingFree > c.Available {
		return fmt.Errorf("%w: floor %s exceeds available %s", types.ErrInsufficientSpace,
			types.FormatSize(c.MinRemainingFree), types.FormatSize(c.Available))
	}
	if !c.FillDrive && c.MinCount > 0 && c.MinSize > c.Usable()/int64(c.MinCount) {
		return fmt.Errorf("%w: %d files of at least %s do not fit in %s above the floor", types.ErrInsufficientSpace,
			c.MinCount, types.FormatSize(c.MinSize), types.FormatSize(c.Usable()))
	}
	return nil
}

// Usable is the space that may be spent before the floor.
func (c Constraints) Usable() int64 {
	return c.Available - c.MinRemainingFree
}

func (c Constraints) margin() float64 {
	if c.Margin == 0 {
		return DefaultMargin
	}
	return c.Margin
}

// Fits reports ErrInsufficientSpace when specs cannot be written above the
// floor. Fill-drive plans are charged with the margin; count plans only
// need their planned bytes to fit.
func (c Constraints) Fits(specs []*types.FileSpec) error {
	need := Total(specs)
	if c.FillDrive {
		need = 0
		for _, s := range specs {
			need += Cost(s.TargetSize, c.margin())
		}
	}
	if need > c.Usable() {
		return fmt.Errorf("%w: %d files need %s, %s usable above the floor", types.ErrInsufficientSpace,
			len(specs), types.FormatSize(need), types.FormatSize(c.Usable()))
	}
	return nil
}

// Allocate returns the planned slots in creation order. IDs start at 1. The
// output depends only on the constraints and the rng state.
func Allocate(c Constraints, rng *rand.Rand) ([]*types.FileSpec, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.FillDrive {
		return fill(c, rng), nil
	}

	n := c.MinCount + rng.IntN(c.MaxCount-c.MinCount+1)
	specs := make([]*types.FileSpec, 0, n)
	for i := 0; i < n; i++ {
		specs = append(specs, &types.FileSpec{
			ID:         types.NodeID(i + 1),
			Type:       pickType(c.Types, rng),
			TargetSize: sampleSize(c.MinSize, c.MaxSize, rng),
		})
	}
	if err := c.Fits(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// fill appends slots while the projected post-encoding usage stays within
// the usable space less the reserve. The slot that would overshoot is
// truncated to what is left; a remainder below MinSize ends the plan, since
// fixed encoding overhead dwarfs the margin on tiny files.
func fill(c Constraints, rng *rand.Rand) []*types.FileSpec {
	margin := c.margin()

	remaining := c.Usable()
	if c.Reserve > 0 {
		remaining -= Cost(c.Reserve, margin)
	}
	var specs []*types.FileSpec
	for truncated := false; remaining > 0 && !truncated; {
		ft := pickType(c.Types, rng)
		size := sampleSize(c.MinSize, c.MaxSize, rng)

		cost := Cost(size, margin)
		if cost > remaining {
			truncated = true
			size = int64(math.Floor(float64(remaining) / margin))
			cost = Cost(size, margin)
			// Float rounding can put the ceiling one byte over.
			for cost > remaining && size > 0 {
				size--
				cost = Cost(size, margin)
			}
			if size < c.MinSize {
				break
			}
		}

		specs = append(specs, &types.FileSpec{
			ID:         types.NodeID(len(specs) + 1),
			Type:       ft,
			TargetSize: size,
		})
		remaining -= cost
	}
	return specs
}

// Cost is the projected on-disk reservation for a planned size.
func Cost(size int64, margin float64) int64 {
	return int64(math.Ceil(float64(size) * margin))
}

func pickType(ts []types.FileType, rng *rand.Rand) types.FileType {
	return ts[rng.IntN(len(ts))]
}

func sampleSize(lo, hi int64, rng *rand.Rand) int64 {
	return lo + rng.Int64N(hi-lo+1)
}

// Total sums the planned sizes.
func Total(specs []*types.FileSpec) int64 {
	var sum int64
	for _, s := range specs {
		sum += s.TargetSize
	}
	return sum
}
