package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Thresholds are the minimum detection confidence per sub-model family.
type Thresholds struct {
	Concept   float64
	Face      float64
	Object    float64
	Celebrity float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Concept:   0.7,
		Face:      0.3,
		Object:    0.7,
		Celebrity: 0.8,
	}
}

// ThresholdsFromMap overlays configured values keyed by family name.
func ThresholdsFromMap(m map[string]float64) Thresholds {
	t := DefaultThresholds()
	if v, ok := m["concept"]; ok {
		t.Concept = v
	}
	if v, ok := m["face"]; ok {
		t.Face = v
	}
	if v, ok := m["object"]; ok {
		t.Object = v
	}
	if v, ok := m["celebrity"]; ok {
		t.Celebrity = v
	}
	return t
}

// For returns the threshold applied to a sub-model. Color has none: the
// strongest color of each frame wins.
func (t Thresholds) For(model core.VisionModel) float64 {
	switch {
	case model == core.VisionConcept:
		return t.Concept
	case model.IsFace():
		return t.Face
	case model == core.VisionObject:
		return t.Object
	case model == core.VisionCelebrity:
		return t.Celebrity
	}
	return 0
}

// VisionMetricNames lists every metric a VisionMetrics carries.
func VisionMetricNames() []string {
	return []string{
		core.MetricEngagement,
		core.MetricShareability,
		core.MetricConversionPotential,
		core.MetricViralPotential,
		MetricRepresentation,
	}
}

const topColors = 5

// VisionMetrics is the canonical form of the vision provider output.
// Distributions hold the percentage of frames in which a label appears.
type VisionMetrics struct {
	TotalFrames            int                              `json:"total_frames"`
	DurationSeconds        float64                          `json:"duration_seconds"`
	Concepts               core.Distribution                `json:"concepts"`
	Objects                core.Distribution                `json:"objects"`
	Celebrities            core.Distribution                `json:"celebrities"`
	Sentiment              core.Distribution                `json:"sentiment"`
	Demographics           core.DemographicsBreakdown       `json:"demographics"`
	FramesWithFacesPercent float64                          `json:"frames_with_faces_percent"`
	DominantColors         []string                         `json:"dominant_colors"`
	ColorFrequency         core.Distribution                `json:"color_frequency"`
	CutCount               int                              `json:"cut_count"`
	AvgSecondsPerCut       float64                          `json:"avg_seconds_per_cut"`
	Metrics                map[string]core.NormalizedMetric `json:"metrics"`
	Virality               core.Confidence                  `json:"virality"`
	// Defaulted is set when no frames were available.
	Defaulted bool `json:"defaulted"`
}

// Metric returns a metric by name, or a neutral default.
func (v VisionMetrics) Metric(name string) core.NormalizedMetric {
	if m, ok := v.Metrics[name]; ok {
		return m
	}
	return core.NeutralMetric(name)
}

// DefaultedNames lists metrics substituted with neutral defaults.
func (v VisionMetrics) DefaultedNames() []string {
	return defaultedNames(v.Metrics)
}

// DefaultVision is the neutral vision set: every score 50, virality
// Medium, empty distributions.
func DefaultVision() VisionMetrics {
	v := VisionMetrics{
		Concepts:       core.Distribution{},
		Objects:        core.Distribution{},
		Celebrities:    core.Distribution{},
		Sentiment:      core.Distribution{},
		ColorFrequency: core.Distribution{},
		DominantColors: []string{},
		Demographics: core.DemographicsBreakdown{
			AgeDistribution:       core.Distribution{},
			GenderDistribution:    core.Distribution{},
			EthnicityDistribution: core.Distribution{},
		},
		Metrics:   make(map[string]core.NormalizedMetric, 5),
		Virality:  core.ConfidenceMedium,
		Defaulted: true,
	}
	for _, name := range VisionMetricNames() {
		m := core.NeutralMetric(name)
		m.Breakdown = core.DefaultBreakdown(name)
		v.Metrics[name] = m
	}
	return v
}

// Vision aggregates frame detections into distributions and scores.
func Vision(frames core.VisionFrames, t Thresholds) VisionMetrics {
	if frames.TotalFrames() == 0 {
		return DefaultVision()
	}

	v := VisionMetrics{
		TotalFrames: frames.TotalFrames(),
		Concepts:    presence(frames.Models[core.VisionConcept], t.Concept),
		Objects:     presence(frames.Models[core.VisionObject], t.Object),
		Celebrities: presence(frames.Models[core.VisionCelebrity], t.Celebrity),
		Sentiment:   presence(frames.Models[core.VisionFaceSentiment], t.Face),
		Demographics: core.DemographicsBreakdown{
			AgeDistribution:       presence(frames.Models[core.VisionFaceAge], t.Face),
			GenderDistribution:    presence(frames.Models[core.VisionFaceGender], t.Face),
			EthnicityDistribution: presence(frames.Models[core.VisionFaceMulticulturality], t.Face),
			TotalSubjects:         core.Count(maxDetections(frames.Models[core.VisionFaceGender], t.Face)),
		},
		Metrics: make(map[string]core.NormalizedMetric, 5),
	}
	v.FramesWithFacesPercent = framesWithFaces(frames, t.Face)
	v.ColorFrequency, v.DominantColors = dominantColors(frames.Models[core.VisionColor])
	v.CutCount, v.DurationSeconds = detectCuts(frames.Models[core.VisionConcept], t.Concept, frames.SampleIntervalMs)
	if v.CutCount > 0 {
		v.AvgSecondsPerCut = round2(v.DurationSeconds / float64(v.CutCount))
	}

	confidence := core.ConfidenceMedium
	if v.TotalFrames < 10 {
		confidence = core.ConfidenceLow
	}

	faces := present(v.FramesWithFacesPercent)
	positive := positiveSentiment(v.Sentiment, len(frames.Models[core.VisionFaceSentiment]) > 0)
	pace := paceScore(v.CutCount, v.AvgSecondsPerCut, len(frames.Models[core.VisionConcept]) > 0)
	richness := visualRichness(v.Concepts, len(frames.Models[core.VisionConcept]) > 0)
	celebrity := scored{}
	if len(frames.Models[core.VisionCelebrity]) > 0 {
		celebrity = present(50)
		if len(v.Celebrities) > 0 {
			celebrity = present(80)
		}
	}

	engagement := metricFrom(core.MetricEngagement,
		weighted([]scored{faces, positive, pace}, []float64{0.4, 0.3, 0.3}),
		fmt.Sprintf("Faces present in %.1f%% of frames; %d cuts detected", v.FramesWithFacesPercent, v.CutCount),
		map[string]scored{
			"hook_effectiveness": pace,
			"emotional_impact":   positive,
			"audience_retention": pace,
			"attention_score":    faces,
		})
	engagement.Confidence = confidence
	v.Metrics[core.MetricEngagement] = engagement

	viral := metricFrom(core.MetricViralPotential,
		mean(richness, positive, celebrity, faces),
		fmt.Sprintf("%d distinct concepts across %d frames", len(v.Concepts), v.TotalFrames),
		map[string]scored{
			"visuals_quality":     richness,
			"emotional_resonance": positive,
			"shareability_factor": celebrity,
			"relatability":        faces,
			"uniqueness":          richness,
		})
	viral.Confidence = confidence
	v.Metrics[core.MetricViralPotential] = viral
	v.Virality = viralityLabel(float64(viral.Score))

	representation := metricFrom(MetricRepresentation,
		diversity(v.Demographics.EthnicityDistribution),
		"Diversity of on-screen subjects",
		map[string]scored{
			"ethnic_diversity": diversity(v.Demographics.EthnicityDistribution),
			"gender_balance":   balance(v.Demographics.GenderDistribution),
			"age_range":        diversity(v.Demographics.AgeDistribution),
		})
	if !representation.Defaulted {
		representation.Confidence = confidence
	}
	v.Metrics[MetricRepresentation] = representation

	// not observable from frames
	for _, name := range []string{core.MetricShareability, core.MetricConversionPotential} {
		m := core.NeutralMetric(name)
		m.Breakdown = core.DefaultBreakdown(name)
		v.Metrics[name] = m
	}
	return v
}

// presence returns, per label, the percentage of frames where the label
// reached the threshold.
func presence(frames []core.Frame, threshold float64) core.Distribution {
	d := core.Distribution{}
	if len(frames) == 0 {
		return d
	}
	counts := make(map[string]int)
	for _, f := range frames {
		seen := make(map[string]bool)
		for _, det := range f.Detections {
			name := strings.ToLower(strings.TrimSpace(det.Name))
			if name == "" || det.Value < threshold || seen[name] {
				continue
			}
			seen[name] = true
			counts[name]++
		}
	}
	for name, n := range counts {
		d[name] = round2(float64(n) / float64(len(frames)) * 100)
	}
	return d
}

func maxDetections(frames []core.Frame, threshold float64) int {
	best := 0
	for _, f := range frames {
		n := 0
		for _, det := range f.Detections {
			if det.Value >= threshold {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

// framesWithFaces counts frames where any face variant detected something.
func framesWithFaces(frames core.VisionFrames, threshold float64) float64 {
	total := 0
	hits := make(map[int]bool)
	for model, list := range frames.Models {
		if !model.IsFace() {
			continue
		}
		if len(list) > total {
			total = len(list)
		}
		for i, f := range list {
			for _, det := range f.Detections {
				if det.Value >= threshold {
					hits[i] = true
					break
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return round2(float64(len(hits)) / float64(total) * 100)
}

// dominantColors picks each frame's strongest color and ranks them.
func dominantColors(frames []core.Frame) (core.Distribution, []string) {
	freq := core.Distribution{}
	if len(frames) == 0 {
		return freq, []string{}
	}
	counts := make(map[string]int)
	for _, f := range frames {
		best, bestVal := "", 0.0
		for _, det := range f.Detections {
			if det.Value > bestVal {
				best, bestVal = det.Name, det.Value
			}
		}
		if best != "" {
			counts[best]++
		}
	}
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		names = append(names, name)
		freq[name] = round2(float64(n) / float64(len(frames)) * 100)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > topColors {
		names = names[:topColors]
	}
	return freq, names
}

// detectCuts counts changes of the concept set between consecutive frames.
func detectCuts(frames []core.Frame, threshold float64, sampleMs int) (int, float64) {
	var prev map[string]bool
	cuts := 0
	var lastMs int64
	for i, f := range frames {
		set := make(map[string]bool)
		for _, det := range f.Detections {
			if det.Value >= threshold {
				set[strings.ToLower(det.Name)] = true
			}
		}
		if prev != nil && !sameSet(prev, set) {
			cuts++
		}
		prev = set
		lastMs = f.TimeMs
		if lastMs == 0 && sampleMs > 0 {
			lastMs = int64(i * sampleMs)
		}
	}
	return cuts, float64(lastMs) / 1000
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

var positiveLabels = map[string]bool{
	"happy": true, "happiness": true, "joy": true, "joyful": true,
	"surprise": true, "surprised": true, "positive": true, "excited": true,
}

func positiveSentiment(d core.Distribution, observed bool) scored {
	if !observed {
		return scored{}
	}
	var total float64
	for label, pct := range d {
		if positiveLabels[label] {
			total += pct
		}
	}
	return present(total)
}

// paceScore rates editing rhythm; one cut every one to three seconds
// scores highest.
func paceScore(cuts int, secondsPerCut float64, observed bool) scored {
	switch {
	case !observed:
		return scored{}
	case cuts == 0:
		return present(40)
	case secondsPerCut <= 1:
		return present(70)
	case secondsPerCut <= 3:
		return present(85)
	case secondsPerCut <= 6:
		return present(65)
	default:
		return present(45)
	}
}

func visualRichness(concepts core.Distribution, observed bool) scored {
	if !observed {
		return scored{}
	}
	return present(20 + 4*float64(len(concepts)))
}

// diversity is the normalized Shannon entropy of d, scaled to 0-100.
func diversity(d core.Distribution) scored {
	if len(d) == 0 {
		return scored{}
	}
	if len(d) == 1 {
		return present(0)
	}
	total := d.Sum()
	if total <= 0 {
		return scored{}
	}
	var h float64
	for _, v := range d {
		if v <= 0 {
			continue
		}
		p := v / total
		h -= p * math.Log(p)
	}
	return present(h / math.Log(float64(len(d))) * 100)
}

// balance is 100 for an even two-way split and 0 for a single group.
func balance(d core.Distribution) scored {
	total := d.Sum()
	if len(d) == 0 || total <= 0 {
		return scored{}
	}
	largest := d[d.Largest()] / total
	return present((1 - largest) * 200)
}

func weighted(values []scored, weights []float64) scored {
	var sum, wsum float64
	for i, v := range values {
		if v.ok {
			sum += v.value * weights[i]
			wsum += weights[i]
		}
	}
	if wsum == 0 {
		return scored{}
	}
	return present(sum / wsum)
}

func viralityLabel(score float64) core.Confidence {
	switch {
	case score >= 70:
		return core.ConfidenceHigh
	case score >= 40:
		return core.ConfidenceMedium
	default:
		return core.ConfidenceLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
