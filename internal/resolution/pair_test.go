package resolution

import (
	"math"
	"testing"
)

func TestFactor(t *testing.T) {
	tests := []struct {
		name string
		orig Pair
		eff  Pair
		want float64
	}{
		{"identity", Pair{1024, 768}, Pair{1024, 768}, 1.0},
		{"half linear", Pair{1024, 768}, Pair{512, 384}, 0.5},
		{"quarter area", Pair{100, 100}, Pair{50, 50}, 0.5},
		{"non-square", Pair{640, 480}, Pair{320, 480}, math.Sqrt(0.5)},
		{"tiny", Pair{1024, 768}, Pair{1, 1}, math.Sqrt((1.0 / 1024.0) * (1.0 / 768.0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Factor(tt.orig, tt.eff)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Factor(%v, %v) = %v, want %v", tt.orig, tt.eff, got, tt.want)
			}
		})
	}
}

func TestFactor_MatchesAreaRatio(t *testing.T) {
	// factor^2 must equal the area ratio for arbitrary pairs
	orig := Pair{1920, 1080}
	for _, eff := range []Pair{{1920, 1080}, {960, 540}, {123, 457}, {1, 1}} {
		f := Factor(orig, eff)
		areaRatio := float64(eff.Area()) / float64(orig.Area())
		if math.Abs(f*f-areaRatio) > 1e-12 {
			t.Errorf("factor^2 = %v, want area ratio %v for %v", f*f, areaRatio, eff)
		}
	}
}

func TestFactors(t *testing.T) {
	origs := []Pair{{100, 100}, {200, 100}, {1024, 768}}
	effs := []Pair{{50, 50}, {200, 100}, {512, 384}}

	got, err := Factors(origs, effs)
	if err != nil {
		t.Fatalf("Factors failed: %v", err)
	}
	want := []float64{0.5, 1.0, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFactors_MismatchedLengths(t *testing.T) {
	_, err := Factors([]Pair{{1, 1}}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched batch lengths")
	}
}

func TestFromFactor(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		orig   Pair
		want   Pair
	}{
		{"half of 1024x768", 0.5, Pair{1024, 768}, Pair{512, 384}},
		{"identity", 1.0, Pair{640, 480}, Pair{640, 480}},
		{"rounds", 0.333, Pair{100, 100}, Pair{33, 33}},
		{"clamps low", 0.0001, Pair{100, 100}, Pair{1, 1}},
		{"clamps high", 1.5, Pair{100, 100}, Pair{100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromFactor(tt.factor, tt.orig)
			if got != tt.want {
				t.Errorf("FromFactor(%v, %v) = %v, want %v", tt.factor, tt.orig, got, tt.want)
			}
		})
	}
}
