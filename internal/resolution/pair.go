package resolution

import (
	"fmt"
	"math"
)

// Pair is an immutable (width, height) resolution in pixels.
type Pair struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String formats the pair as "WxH".
func (p Pair) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Area returns the pixel count of the pair.
func (p Pair) Area() int {
	return p.Width * p.Height
}

// Factor computes the degradation factor for an (original, effective)
// resolution pair: the square root of the area ratio between the effective
// and original resolutions. A factor of 1.0 means no degradation.
//
// Original dimensions must be positive; the degradation pipeline guarantees
// this, so Factor is total over its domain.
func Factor(orig, eff Pair) float64 {
	fw := float64(eff.Width) / float64(orig.Width)
	fh := float64(eff.Height) / float64(orig.Height)
	return math.Sqrt(fw * fh)
}

// Factors computes degradation factors element-wise across two aligned
// slices, preserving row order. The slices must be the same length.
func Factors(origs, effs []Pair) ([]float64, error) {
	if len(origs) != len(effs) {
		return nil, fmt.Errorf("mismatched batch lengths: %d original vs %d effective", len(origs), len(effs))
	}
	out := make([]float64, len(origs))
	for i := range origs {
		out[i] = Factor(origs[i], effs[i])
	}
	return out, nil
}

// FromFactor converts a degradation factor back to a concrete resolution
// against the given original. Each dimension is rounded and clamped to
// [1, original] so the result is always a valid, non-upscaled size.
func FromFactor(factor float64, orig Pair) Pair {
	return Pair{
		Width:  clamp(int(math.Round(factor*float64(orig.Width))), 1, orig.Width),
		Height: clamp(int(math.Round(factor*float64(orig.Height))), 1, orig.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
