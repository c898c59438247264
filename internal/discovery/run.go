// Package discovery implements the adaptive knee discovery stage: an initial
// coarse resolution sweep, per-class elbow detection on the resulting
// accuracy-vs-degradation curve, and an optional binary-search refinement
// loop that samples new resolutions around the knee estimate until it
// stabilizes. Classes are processed sequentially; the result table is the
// single shared mutable state and has exactly one writer.
package discovery

import (
	"fmt"
	"os"

	"github.com/perceptionbench/kneepoint/internal/knee"
	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/results"
)

// Runner drives one knee discovery run end to end.
type Runner struct {
	ctx      *pipeline.Context
	sampler  *Sampler
	detector *knee.Detector
	refiner  *Refiner
}

// NewRunner builds the stage over the two external collaborators. The knee
// detector is configured from the run context and wired to the append-only
// knee event log.
func NewRunner(ctx *pipeline.Context, degrader AssetDegrader, evaluator Evaluator) *Runner {
	detector := &knee.Detector{
		NoiseFloor: ctx.Config.Discovery.NoiseFloor,
		Recorder:   results.NewKneeLog(ctx.KneeLogFile()),
	}
	sampler := NewSampler(ctx, degrader, evaluator)
	return &Runner{
		ctx:      ctx,
		sampler:  sampler,
		detector: detector,
		refiner:  NewRefiner(ctx, sampler, detector),
	}
}

type classOutcome struct {
	factor float64
	found  bool
}

// Run executes the stage: sweep, detect, refine, flag, persist. A missing
// result table after the sweep is fatal for the whole run; everything
// per-class degrades to "no knee found" and continues.
func (r *Runner) Run() error {
	cfg := r.ctx.Config.Discovery
	log := r.ctx.Log
	log.Info("starting knee discovery")

	if cfg.CleanSubdir {
		if err := os.RemoveAll(r.ctx.ResultsDir()); err != nil {
			return fmt.Errorf("clean results dir: %w", err)
		}
		r.ctx.ResultsCache = nil
	}
	if err := os.MkdirAll(r.ctx.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	corrupted, maxImages, err := r.sweep()
	if err != nil {
		return fmt.Errorf("coarse sweep: %w", err)
	}
	if corrupted > 0 {
		log.Infof("%d out of %d images are corrupted", corrupted, maxImages)
	}

	table, err := loadTable(r.ctx)
	if err != nil {
		log.Errorw("results table unavailable", "path", r.ctx.ResultsFile(), "error", err)
		return err
	}

	// Decide every class before touching any flag, so refinement reloads
	// cannot clobber flags written for earlier classes.
	outcomes := make(map[string]classOutcome)
	for _, class := range table.Classes() {
		rows := table.Class(class)
		orig := rows[0].Original

		initial, err := r.detector.Detect(class, orig, samplesOf(rows))
		if err != nil {
			return err
		}

		var out classOutcome
		if cfg.SearchAlgorithm == "binary" {
			factor, found, state, err := r.refiner.Refine(class, orig, initial)
			if err != nil {
				return fmt.Errorf("refine class %s: %w", class, err)
			}
			log.Debugw("refinement finished", "class", class, "state", state.String())
			out = classOutcome{factor: factor, found: found}
		} else {
			f, _, ok := initial.Primary()
			out = classOutcome{factor: f, found: ok}
		}
		outcomes[class] = out
	}

	// Refinement may have appended rows; write flags onto the final table.
	table, err = loadTable(r.ctx)
	if err != nil {
		log.Errorw("results table unavailable", "path", r.ctx.ResultsFile(), "error", err)
		return err
	}
	for _, class := range table.Classes() {
		out, ok := outcomes[class]
		if ok && out.found && table.MarkKnee(class, out.factor, cfg.LocateTolerance) {
			log.Infow("knee discovered", "class", class, "degradation_factor", out.factor)
		} else {
			table.ClearKnees(class)
			log.Infow("no knee found", "class", class)
		}
	}

	if err := table.Save(r.ctx.ResultsFile()); err != nil {
		return err
	}
	if cfg.CacheResults {
		r.ctx.ResultsCache = table
	} else {
		r.ctx.ResultsCache = nil
	}
	log.Info("knee discovery complete")
	return nil
}

// loadTable returns the in-memory result table when one is cached, otherwise
// reads the persisted table. The evaluation oracle updates one or both as a
// side effect, so this is called after every oracle invocation.
func loadTable(ctx *pipeline.Context) (*results.Table, error) {
	if ctx.ResultsCache != nil {
		return ctx.ResultsCache, nil
	}
	return results.Load(ctx.ResultsFile())
}
