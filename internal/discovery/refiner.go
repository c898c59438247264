package discovery

import (
	"math"
	"sort"

	"github.com/perceptionbench/kneepoint/internal/knee"
	"github.com/perceptionbench/kneepoint/internal/pipeline"
	"github.com/perceptionbench/kneepoint/internal/resolution"
	"github.com/perceptionbench/kneepoint/internal/results"
)

// State is the terminal state of a per-class refinement.
type State int

const (
	// StateSampling is the in-progress state; Refine never returns it.
	StateSampling State = iota

	// StateConverged means the knee estimate stabilized within tolerance,
	// either by factor or by metric change.
	StateConverged

	// StateExhausted means no further refinement was possible: no usable
	// knee, no neighbor to bisect toward, a midpoint indistinguishable from
	// an existing sample, or the iteration cap.
	StateExhausted

	// StateStuck means a computed knee factor could not be re-located among
	// the samples. Refinement halts with the prior estimate intact.
	StateStuck
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	case StateStuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// Refiner tightens a knee estimate by binary search: each iteration bisects
// between the current knee and whichever neighbor shows the larger metric
// change, realizes the midpoint resolution through the sampler, and re-runs
// detection on the grown sample set.
type Refiner struct {
	ctx      *pipeline.Context
	sampler  *Sampler
	detector *knee.Detector
}

// NewRefiner wires a refiner over the shared sampler and detector.
func NewRefiner(ctx *pipeline.Context, sampler *Sampler, detector *knee.Detector) *Refiner {
	return &Refiner{ctx: ctx, sampler: sampler, detector: detector}
}

// Refine iterates from the initial detection result until the estimate
// converges, the search space is exhausted, or the iteration cap is hit.
// It returns the last non-nil knee factor (found reports whether one ever
// existed) and the terminal state. On error the prior estimate is still
// returned so callers can keep it.
func (r *Refiner) Refine(class string, orig resolution.Pair, initial knee.Result) (factor float64, found bool, state State, err error) {
	cfg := r.ctx.Config.Discovery
	log := r.ctx.Log

	newF, _, ok := initial.Primary()
	if !ok {
		return 0, false, StateExhausted, nil
	}
	last := newF
	haveNew := true

	var oldF, oldM float64
	var haveOld, haveOldM bool

	state = StateSampling
	iteration := 0

	for iteration < cfg.MaxIterations && haveNew &&
		(!haveOld || math.Abs(newF-oldF) >= cfg.FactorTolerance) {
		iteration++
		oldF, haveOld = newF, true

		table, err := loadTable(r.ctx)
		if err != nil {
			return last, true, state, err
		}
		rows := sortedSamples(table.Class(class))

		idx := locateFactor(rows, newF, cfg.LocateTolerance)
		if idx < 0 {
			log.Debugw("knee factor not found among samples", "class", class, "factor", newF)
			state = StateStuck
			break
		}

		newM := rows[idx].Metric
		if haveOldM && math.Abs(newM-oldM) < cfg.MetricTolerance {
			log.Debugw("metric change converged", "class", class, "metric", newM)
			state = StateConverged
			break
		}
		oldM, haveOldM = newM, true

		var leftF, rightF, deltaLeft, deltaRight float64
		var haveLeft, haveRight bool
		if idx > 0 {
			leftF, haveLeft = rows[idx-1].Factor, true
			deltaLeft = math.Abs(newM - rows[idx-1].Metric)
		}
		if idx < len(rows)-1 {
			rightF, haveRight = rows[idx+1].Factor, true
			deltaRight = math.Abs(newM - rows[idx+1].Metric)
		}

		// The side with the larger metric delta hides more of the curve's
		// bend. Exact ties go right, toward higher resolution.
		var lo, hi float64
		switch {
		case deltaLeft > deltaRight && haveLeft:
			lo, hi = leftF, newF
		case haveRight:
			lo, hi = newF, rightF
		default:
			log.Debugw("no further refinement possible", "class", class)
			state = StateExhausted
			return last, true, state, nil
		}

		mid := (lo + hi) / 2
		if locateFactor(rows, mid, cfg.DuplicateTolerance) >= 0 {
			log.Debugw("midpoint already evaluated", "class", class, "factor", mid)
			state = StateExhausted
			break
		}

		eff := resolution.FromFactor(mid, orig)
		if _, _, err := r.sampler.Sample(orig, eff); err != nil {
			return last, true, state, err
		}

		table, err = loadTable(r.ctx)
		if err != nil {
			return last, true, state, err
		}
		res, err := r.detector.Detect(class, orig, samplesOf(table.Class(class)))
		if err != nil {
			return last, true, state, err
		}
		if f, _, ok := res.Primary(); ok {
			newF, haveNew = f, true
			last = f
		} else {
			haveNew = false
		}
	}

	if state == StateSampling {
		switch {
		case !haveNew:
			state = StateExhausted
		case iteration >= cfg.MaxIterations &&
			(!haveOld || math.Abs(newF-oldF) >= cfg.FactorTolerance):
			state = StateExhausted
		default:
			state = StateConverged
		}
	}
	return last, true, state, nil
}

// sortedSamples converts class rows to samples ordered by ascending factor.
func sortedSamples(rows []results.Record) []knee.Sample {
	samples := samplesOf(rows)
	sort.Slice(samples, func(i, j int) bool { return samples[i].Factor < samples[j].Factor })
	return samples
}

func samplesOf(rows []results.Record) []knee.Sample {
	samples := make([]knee.Sample, len(rows))
	for i, r := range rows {
		samples[i] = knee.Sample{Factor: r.DegradationFactor, Metric: r.MAP}
	}
	return samples
}

// locateFactor returns the index of the first sample whose factor is within
// tol of target, or -1.
func locateFactor(samples []knee.Sample, target, tol float64) int {
	for i, s := range samples {
		if math.Abs(s.Factor-target) <= tol {
			return i
		}
	}
	return -1
}
