// Package reconcile merges overlapping estimates from the two analysis
// sources. Distributions are blended with a configurable weight and a small
// zero-sum perturbation; scores are blended and large disagreements are
// recorded as contradictions.
package reconcile

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Total is the value every reconciled distribution sums to.
const Total = 100.0

// Options configure a Reconciler.
type Options struct {
	// Weight is the share given to the first source.
	Weight float64
	// MaxPerturbation bounds how far two runs on identical input may differ.
	// Each entry moves at most half of it.
	MaxPerturbation float64
	// ContradictionThreshold is the score gap that produces a contradiction.
	ContradictionThreshold float64
	// Seed makes the perturbation deterministic. Zero seeds from the clock.
	Seed int64
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Weight:                 0.7,
		MaxPerturbation:        1.5,
		ContradictionThreshold: 15,
	}
}

// OptionsFromConfig converts the reconcile config section.
func OptionsFromConfig(cfg config.ReconcileConfig) Options {
	opts := DefaultOptions()
	if cfg.Weight > 0 && cfg.Weight <= 1 {
		opts.Weight = cfg.Weight
	}
	if cfg.MaxPerturbation >= 0 {
		opts.MaxPerturbation = cfg.MaxPerturbation
	}
	if cfg.ContradictionThreshold > 0 {
		opts.ContradictionThreshold = cfg.ContradictionThreshold
	}
	opts.Seed = cfg.Seed
	return opts
}

// Reconciler is safe for concurrent use.
type Reconciler struct {
	opts Options

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a reconciler.
func New(opts Options) *Reconciler {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.Weight < 0 || opts.Weight > 1 || math.IsNaN(opts.Weight) {
		opts.Weight = DefaultOptions().Weight
	}
	if opts.MaxPerturbation < 0 {
		opts.MaxPerturbation = 0
	}
	return &Reconciler{
		opts: opts,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// Options returns the effective settings.
func (r *Reconciler) Options() Options {
	return r.opts
}

// Weight returns the configured share of the first source.
func (r *Reconciler) Weight() float64 {
	return r.opts.Weight
}

// Reconcile blends a and b over the union of their categories. Each input
// is first scaled to sum to 100; a category missing from one side counts as
// 0 there. The blend is renormalized, perturbed and renormalized again so
// the result sums to exactly 100 with the largest entry absorbing the
// residual. An empty side contributes nothing; two empty sides give an
// empty distribution.
func (r *Reconciler) Reconcile(a, b core.Distribution, weightA float64) core.Distribution {
	if weightA < 0 || weightA > 1 || math.IsNaN(weightA) {
		weightA = r.opts.Weight
	}
	sa, sb := scaleTo100(a), scaleTo100(b)
	if len(sa) == 0 && len(sb) == 0 {
		return core.Distribution{}
	}
	if len(sa) == 0 {
		weightA = 0
	} else if len(sb) == 0 {
		weightA = 1
	}

	blended := make(core.Distribution, len(sa)+len(sb))
	for k, v := range sa {
		blended[k] += weightA * v
	}
	for k, v := range sb {
		blended[k] += (1 - weightA) * v
	}
	blended = scaleTo100(blended)
	if len(blended) == 0 {
		return blended
	}
	r.perturb(blended)
	return absorbResidual(blended)
}

// Dimension canonicalizes both inputs with t before reconciling them.
func (r *Reconciler) Dimension(t Taxonomy, a, b core.Distribution, weightA float64) core.Distribution {
	return r.Reconcile(t.Canonicalize(a), t.Canonicalize(b), weightA)
}

// Demographics reconciles all three dimensions of two breakdowns. The
// subject count is taken from whichever side observed more subjects.
func (r *Reconciler) Demographics(a, b core.DemographicsBreakdown, weightA float64) core.DemographicsBreakdown {
	out := core.DemographicsBreakdown{
		AgeDistribution:       r.Dimension(Age, a.AgeDistribution, b.AgeDistribution, weightA),
		GenderDistribution:    r.Dimension(Gender, a.GenderDistribution, b.GenderDistribution, weightA),
		EthnicityDistribution: r.Dimension(Ethnicity, a.EthnicityDistribution, b.EthnicityDistribution, weightA),
		TotalSubjects:         a.TotalSubjects,
	}
	if b.TotalSubjects > out.TotalSubjects {
		out.TotalSubjects = b.TotalSubjects
	}
	if len(out.GenderDistribution) == 0 {
		out.GenderDistribution = CollapseGender(nil)
	}
	return out
}

// perturb applies a zero-sum random shift to the positive entries of d,
// keeping every entry within MaxPerturbation/2 of its input and >= 0.
func (r *Reconciler) perturb(d core.Distribution) {
	half := r.opts.MaxPerturbation / 2
	if half <= 0 {
		return
	}
	keys := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		if d[k] > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) < 2 {
		return
	}

	deltas := make([]float64, len(keys))
	r.mu.Lock()
	for i := range deltas {
		deltas[i] = (r.rnd.Float64()*2 - 1) * half
	}
	r.mu.Unlock()

	var m float64
	for _, v := range deltas {
		m += v
	}
	m /= float64(len(deltas))

	scale := 1.0
	for i, k := range keys {
		deltas[i] -= m
		if abs := math.Abs(deltas[i]); abs > 0 {
			scale = math.Min(scale, half/abs)
			if deltas[i] < 0 {
				scale = math.Min(scale, d[k]/abs)
			}
		}
	}
	for i, k := range keys {
		d[k] = math.Max(0, d[k]+deltas[i]*scale)
	}
}

// Scores blends two metrics. When one side was substituted with defaults
// the other side wins unchanged. When both are real and differ by at
// least the contradiction threshold a ContradictionRecord is returned.
func (r *Reconciler) Scores(name string, a, b core.NormalizedMetric, weightA float64) (core.NormalizedMetric, *core.ContradictionRecord) {
	if weightA < 0 || weightA > 1 || math.IsNaN(weightA) {
		weightA = r.opts.Weight
	}
	switch {
	case a.Defaulted && b.Defaulted:
		out := a.Clamp()
		out.Name = name
		return out, nil
	case b.Defaulted:
		out := a.Clamp()
		out.Name = name
		return out, nil
	case a.Defaulted:
		out := b.Clamp()
		out.Name = name
		return out, nil
	}

	sa, sb := float64(a.Score), float64(b.Score)
	gap := math.Abs(sa - sb)
	out := core.NormalizedMetric{
		Name:       name,
		Score:      core.Score(roundTo(weightA*sa+(1-weightA)*sb, 1)),
		Confidence: AgreementConfidence(gap),
		Insights:   a.Insights,
		Breakdown:  blendBreakdown(a.Breakdown, b.Breakdown, weightA),
	}
	if out.Insights == "" {
		out.Insights = b.Insights
	}
	out = out.Clamp()

	if gap < r.opts.ContradictionThreshold {
		return out, nil
	}
	return out, &core.ContradictionRecord{
		Metric:              name,
		NarrativeAssessment: assessment(a),
		VisionAssessment:    assessment(b),
		Reconciliation:      reconciliationText(out.Score, weightA),
		Confidence:          out.Confidence,
	}
}

func assessment(m core.NormalizedMetric) string {
	if m.Insights == "" {
		return fmt.Sprintf("%.0f/100", float64(m.Score))
	}
	return fmt.Sprintf("%.0f/100: %s", float64(m.Score), m.Insights)
}

func reconciliationText(score core.Score, weightA float64) string {
	return fmt.Sprintf("Weighted blend (%.0f%% narrative, %.0f%% vision) gives %.1f/100",
		weightA*100, (1-weightA)*100, float64(score))
}

// AgreementConfidence rates how much two scores agree.
func AgreementConfidence(gap float64) core.Confidence {
	switch {
	case gap < 10:
		return core.ConfidenceHigh
	case gap < 25:
		return core.ConfidenceMedium
	default:
		return core.ConfidenceLow
	}
}

func blendBreakdown(a, b map[string]float64, weightA float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, va := range a {
		if vb, ok := b[k]; ok {
			out[k] = roundTo(weightA*va+(1-weightA)*vb, 1)
		} else {
			out[k] = va
		}
	}
	for k, vb := range b {
		if _, ok := a[k]; !ok {
			out[k] = vb
		}
	}
	return out
}

// Round rounds every entry to places decimals while keeping the sum: the
// largest entry absorbs the rounding residual.
func Round(d core.Distribution, places int) core.Distribution {
	if len(d) == 0 {
		return core.Distribution{}
	}
	target := d.Sum()
	out := make(core.Distribution, len(d))
	var sum float64
	for k, v := range d {
		out[k] = roundTo(v, places)
		sum += out[k]
	}
	if largest := out.Largest(); largest != "" {
		out[largest] = roundTo(out[largest]+roundTo(target, places)-sum, places)
	}
	return out
}

// scaleTo100 drops negative entries and scales the rest to sum to 100.
// A distribution with no positive mass scales to an empty result.
func scaleTo100(d core.Distribution) core.Distribution {
	out := make(core.Distribution, len(d))
	var total float64
	for k, v := range d {
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		out[k] = v
		total += v
	}
	if total <= 0 {
		return core.Distribution{}
	}
	for k, v := range out {
		out[k] = v * Total / total
	}
	return out
}

// absorbResidual forces the sum to exactly Total.
func absorbResidual(d core.Distribution) core.Distribution {
	residual := Total - d.Sum()
	if largest := d.Largest(); largest != "" {
		d[largest] += residual
	}
	return d
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
