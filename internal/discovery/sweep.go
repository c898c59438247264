package discovery

import (
	"math"

	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// sweep runs the initial coarse resolution scan: it walks the configured
// fractional range of the longer baseline edge in fixed steps, degrading and
// evaluating at each resolution. The shorter edge is scaled to preserve
// aspect ratio. Returns the total corrupted count and the working-set size
// observed on the first step.
func (r *Runner) sweep() (corrupted, maxImages int, err error) {
	cfg := r.ctx.Config.Discovery
	orig := r.ctx.BaselineSize()

	longer := orig.Width
	shorter := orig.Height
	if shorter > longer {
		longer, shorter = shorter, longer
	}
	shorterMult := float64(shorter) / float64(longer)

	low := int(math.Ceil(cfg.SearchResolutionRange[0] * float64(longer)))
	high := int(math.Ceil(cfg.SearchResolutionRange[1]*float64(longer))) + 1
	step := int(math.Floor(cfg.SearchResolutionStep * float64(longer)))
	if step < 1 {
		step = 1
	}

	r.ctx.Log.Debugw("coarse sweep", "low", low, "high", high, "step", step)

	for longRes := low; longRes < high; longRes += step {
		shortRes := int(math.Ceil(shorterMult * float64(longRes)))

		eff := resolution.Pair{Width: longRes, Height: shortRes}
		if orig.Height > orig.Width {
			eff = resolution.Pair{Width: shortRes, Height: longRes}
		}

		num, c, err := r.sampler.Sample(orig, eff)
		corrupted = c
		if err != nil {
			return corrupted, maxImages, err
		}
		if maxImages == 0 {
			maxImages = num
		}
	}
	return corrupted, maxImages, nil
}
