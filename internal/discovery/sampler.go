package discovery

import (
	"fmt"

	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// Sampler realizes a target resolution: it guarantees degraded assets exist
// on disk and that the result table holds an evaluation for that resolution.
// Both collaborators are idempotent for already-realized resolutions, so
// re-sampling a resolution only costs a directory scan plus an oracle call
// that updates rows in place.
type Sampler struct {
	ctx       *pipeline.Context
	degrader  AssetDegrader
	evaluator Evaluator
}

// NewSampler wires a sampler over the degradation and evaluation collaborators.
func NewSampler(ctx *pipeline.Context, degrader AssetDegrader, evaluator Evaluator) *Sampler {
	return &Sampler{ctx: ctx, degrader: degrader, evaluator: evaluator}
}

// Sample degrades the validation set to eff and runs the evaluation oracle
// over the degraded directory. Returns the number of valid images processed
// and the running corrupted-asset count.
func (s *Sampler) Sample(orig, eff resolution.Pair) (int, int, error) {
	dir := s.ctx.DegradedDir(orig, eff)

	num, corrupted, err := s.degrader.Degrade(orig, eff, dir)
	if err != nil {
		return num, corrupted, fmt.Errorf("degrade to %s: %w", eff, err)
	}
	if err := s.evaluator.RunEval(s.ctx, orig, eff, dir, "unknown"); err != nil {
		return num, corrupted, fmt.Errorf("evaluate %s: %w", eff, err)
	}
	return num, corrupted, nil
}
