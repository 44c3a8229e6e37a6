package reconcile

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

var labels = []string{"asian", "black", "caucasian", "hispanic", "indian", "mixed", "male", "female", "18-24"}

func drawDistribution(rt *rapid.T, name string) core.Distribution {
	n := rapid.IntRange(0, len(labels)).Draw(rt, name+"_len")
	d := core.Distribution{}
	for i := 0; i < n; i++ {
		label := rapid.SampledFrom(labels).Draw(rt, name+"_label")
		d[label] = rapid.Float64Range(0, 100).Draw(rt, name+"_value")
	}
	return d
}

func TestProperty_SumAndNonNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := drawDistribution(rt, "a")
		b := drawDistribution(rt, "b")
		w := rapid.Float64Range(0, 1).Draw(rt, "weight")
		opts := DefaultOptions()
		opts.Seed = rapid.Int64Range(1, math.MaxInt32).Draw(rt, "seed")

		got := New(opts).Reconcile(a, b, w)
		if a.Sum() <= 0 && b.Sum() <= 0 {
			if len(got) != 0 {
				rt.Fatalf("expected empty result, got %v", got)
			}
			return
		}
		if math.Abs(got.Sum()-100) > 0.5 {
			rt.Fatalf("sum = %v", got.Sum())
		}
		for k, v := range got {
			if v < 0 {
				rt.Fatalf("%s = %v is negative", k, v)
			}
		}
	})
}

func TestProperty_RunsDifferWithinBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := drawDistribution(rt, "a")
		b := drawDistribution(rt, "b")
		w := rapid.Float64Range(0, 1).Draw(rt, "weight")

		first := New(Options{Weight: 0.7, MaxPerturbation: 1.5, Seed: rapid.Int64Range(1, 1<<30).Draw(rt, "seed1")})
		second := New(Options{Weight: 0.7, MaxPerturbation: 1.5, Seed: rapid.Int64Range(1, 1<<30).Draw(rt, "seed2")})

		x := first.Reconcile(a, b, w)
		y := second.Reconcile(a, b, w)
		if len(x) != len(y) {
			rt.Fatalf("category sets differ: %v vs %v", x, y)
		}
		for k := range x {
			if diff := math.Abs(x[k] - y[k]); diff > 1.5+1e-6 {
				rt.Fatalf("%s differs by %v", k, diff)
			}
		}
	})
}

func TestProperty_ScoresInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := core.NormalizedMetric{Score: core.Score(rapid.Float64Range(0, 100).Draw(rt, "a"))}
		b := core.NormalizedMetric{Score: core.Score(rapid.Float64Range(0, 100).Draw(rt, "b"))}
		w := rapid.Float64Range(0, 1).Draw(rt, "weight")

		got, rec := New(DefaultOptions()).Scores("m", a, b, w)
		if got.Score < 0 || got.Score > 100 {
			rt.Fatalf("score %v out of range", got.Score)
		}
		gap := math.Abs(float64(a.Score - b.Score))
		if (rec != nil) != (gap >= 15) {
			rt.Fatalf("gap %v produced contradiction %v", gap, rec)
		}
	})
}
