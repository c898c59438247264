package knee

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/perceptionbench/kneepoint/internal/resolution"
)

// DefaultNoiseFloor is the metric level at or below which a sample carries no
// usable curvature information and is excluded before fitting.
const DefaultNoiseFloor = 0.01

// Sample is one (degradation factor, metric) observation for a class.
type Sample struct {
	Factor float64
	Metric float64
}

// Recorder receives a notification for every detected knee. Events accumulate
// across detector re-runs; they are an audit trail, not the final flag.
type Recorder interface {
	RecordKnee(class string, orig resolution.Pair, factor, metric float64) error
}

// Result holds all knees detected on one curve, sorted by ascending
// degradation factor with metrics aligned index-for-index. The first entry is
// the primary candidate: the cheapest resolution that already reached the
// elbow.
type Result struct {
	Factors []float64
	Metrics []float64
}

// Empty reports whether no knee was determinable.
func (r Result) Empty() bool {
	return len(r.Factors) == 0
}

// Primary returns the smallest-factor knee.
func (r Result) Primary() (factor, metric float64, ok bool) {
	if r.Empty() {
		return 0, 0, false
	}
	return r.Factors[0], r.Metrics[0], true
}

// Detector locates the elbow of a concave, increasing metric-vs-degradation
// curve using normalized-distance (Kneedle) detection: the curve is fit,
// normalized to the unit square, and the local maxima of the difference
// between the normalized curve and the diagonal are tested against a
// sensitivity threshold. Detection scans the whole curve, so several knees
// can be reported on noisy input; every call refits from the full sample set.
type Detector struct {
	// NoiseFloor excludes samples with Metric <= NoiseFloor before fitting.
	// Zero means DefaultNoiseFloor.
	NoiseFloor float64

	// Sensitivity scales the detection threshold; 1.0 is the standard
	// Kneedle setting. Zero means 1.0.
	Sensitivity float64

	// Recorder, when set, is notified of every detected knee.
	Recorder Recorder
}

// Detect finds the knees of the per-class curve. A class whose every metric
// sits at or below the noise floor yields an empty Result, not an error; the
// only error source is the Recorder.
func (d *Detector) Detect(class string, orig resolution.Pair, samples []Sample) (Result, error) {
	floor := d.NoiseFloor
	if floor == 0 {
		floor = DefaultNoiseFloor
	}
	sens := d.Sensitivity
	if sens == 0 {
		sens = 1.0
	}

	xs, ys := filterAndSort(samples, floor)
	if len(xs) < 3 || xs[len(xs)-1] == xs[0] {
		// too little spread for curvature
		return Result{}, nil
	}

	res := locate(xs, ys, sens)

	if d.Recorder != nil {
		for i := range res.Factors {
			if err := d.Recorder.RecordKnee(class, orig, res.Factors[i], res.Metrics[i]); err != nil {
				return res, fmt.Errorf("record knee for %s: %w", class, err)
			}
		}
	}
	return res, nil
}

// filterAndSort drops samples at or below the noise floor, orders the rest by
// ascending factor and collapses duplicate factors (first wins) so the fit
// sees a strictly increasing axis.
func filterAndSort(samples []Sample, floor float64) (xs, ys []float64) {
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Metric > floor {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Factor < kept[j].Factor })

	for _, s := range kept {
		if len(xs) > 0 && s.Factor == xs[len(xs)-1] {
			continue
		}
		xs = append(xs, s.Factor)
		ys = append(ys, s.Metric)
	}
	return xs, ys
}

// locate runs the Kneedle scan over a sorted curve.
func locate(xs, ys []float64, sensitivity float64) Result {
	n := len(xs)

	// Fit a piecewise-linear curve and sample it back at the input points.
	// At the sample abscissae this is the identity, but it keeps the fitted
	// curve as the detection input, matching the interpolate-then-detect
	// structure of the method.
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return Result{}
	}
	fit := make([]float64, n)
	for i, x := range xs {
		fit[i] = pl.Predict(x)
	}

	// Normalize both axes to [0,1].
	xn := normalize(xs)
	yn := normalize(fit)

	// Difference curve against the diagonal. For a concave increasing curve
	// no axis transform is needed.
	yd := make([]float64, n)
	floats.SubTo(yd, yn, xn)

	maxima := localMaxima(yd)
	if len(maxima) == 0 {
		return Result{}
	}
	minima := localMinima(yd)

	// Per-maximum detection thresholds.
	spacing := make([]float64, n-1)
	for i := 1; i < n; i++ {
		spacing[i-1] = xn[i] - xn[i-1]
	}
	meanSpacing := stat.Mean(spacing, nil)

	isMax := indexSet(maxima)
	isMin := indexSet(minima)

	var res Result
	seen := make(map[float64]bool)
	threshold := 0.0
	thresholdIdx := 0

	for i := maxima[0]; i < n; i++ {
		if xn[i] == 1.0 {
			break
		}
		if isMax[i] {
			threshold = yd[i] - sensitivity*meanSpacing
			thresholdIdx = i
		}
		if isMin[i] {
			threshold = 0.0
		}
		if yd[i+1] < threshold {
			kneeX := xs[thresholdIdx]
			if !seen[kneeX] {
				seen[kneeX] = true
				res.Factors = append(res.Factors, kneeX)
				res.Metrics = append(res.Metrics, ys[thresholdIdx])
			}
		}
	}

	sortAligned(res.Factors, res.Metrics)
	return res
}

func normalize(v []float64) []float64 {
	lo, hi := floats.Min(v), floats.Max(v)
	out := make([]float64, len(v))
	if hi == lo {
		return out
	}
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}

// localMaxima returns indices where the curve is strictly greater than both
// neighbors. Endpoints are never extrema.
func localMaxima(v []float64) []int {
	var idx []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] > v[i-1] && v[i] > v[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

func localMinima(v []float64) []int {
	var idx []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] < v[i-1] && v[i] < v[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

func indexSet(idx []int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}

// sortAligned sorts factors ascending, carrying metrics along.
func sortAligned(factors, metrics []float64) {
	order := make([]int, len(factors))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return factors[order[a]] < factors[order[b]] })

	fs := make([]float64, len(factors))
	ms := make([]float64, len(metrics))
	for i, o := range order {
		fs[i] = factors[o]
		ms[i] = metrics[o]
	}
	copy(factors, fs)
	copy(metrics, ms)
}
