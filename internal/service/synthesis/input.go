package synthesis

import (
	"sort"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/reconcile"
)

// Input carries everything the synthesis pass needs. Metrics,
// Demographics and Contradictions are computed locally and are
// authoritative over anything the model writes.
type Input struct {
	VideoID        string
	Narrative      normalize.NarrativeMetrics
	Vision         normalize.VisionMetrics
	Metrics        map[string]core.NormalizedMetric
	Demographics   core.DemographicsBreakdown
	Representation core.NormalizedMetric
	Contradictions []core.ContradictionRecord
	// Errors holds provider failures keyed like ErrorRecord.Details.
	Errors map[string]string
}

// Prepare reconciles the two normalized payloads into an Input: every
// performance metric is blended and the demographic breakdowns merged.
func Prepare(videoID string, narrative normalize.NarrativeMetrics, vision normalize.VisionMetrics, r *reconcile.Reconciler) Input {
	w := r.Weight()
	in := Input{
		VideoID:        videoID,
		Narrative:      narrative,
		Vision:         vision,
		Metrics:        make(map[string]core.NormalizedMetric, 4),
		Contradictions: []core.ContradictionRecord{},
		Errors:         map[string]string{},
	}

	for _, name := range core.PerformanceMetricNames() {
		m, rec := r.Scores(name, narrative.Metric(name), vision.Metric(name), w)
		if len(m.Breakdown) == 0 {
			m.Breakdown = core.DefaultBreakdown(name)
		}
		in.Metrics[name] = m
		if rec != nil {
			in.Contradictions = append(in.Contradictions, *rec)
		}
	}

	var narrativeDemo core.DemographicsBreakdown
	if narrative.Demographics != nil {
		narrativeDemo = *narrative.Demographics
	}
	in.Demographics = r.Demographics(narrativeDemo, vision.Demographics, w)
	in.Representation = vision.Metric(normalize.MetricRepresentation)
	return in
}

// DefaultedNames lists every metric substituted with defaults, prefixed by
// the source it came from.
func (in Input) DefaultedNames() []string {
	var names []string
	for _, n := range in.Narrative.DefaultedNames() {
		names = append(names, string(core.ProviderNarrative)+"."+n)
	}
	for _, n := range in.Vision.DefaultedNames() {
		names = append(names, string(core.ProviderVision)+"."+n)
	}
	sort.Strings(names)
	return names
}

// reconciledView is the authoritative block shown to the model.
type reconciledView struct {
	PerformanceMetrics map[string]core.NormalizedMetric `json:"performance_metrics"`
	Demographics       core.DemographicsBreakdown       `json:"demographics_breakdown"`
	Contradictions     []core.ContradictionRecord       `json:"contradiction_analysis"`
}

func (in Input) reconciled() reconciledView {
	return reconciledView{
		PerformanceMetrics: in.Metrics,
		Demographics:       in.Demographics,
		Contradictions:     in.Contradictions,
	}
}
