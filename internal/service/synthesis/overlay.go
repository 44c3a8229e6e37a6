package synthesis

import (
	"fmt"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// Overlay writes the locally computed sections of in over a repaired
// report: reconciled metric scores, the reconciled demographic breakdown,
// the contradiction records, measured editing pace and colors, and the
// error metadata. Model-written insights are kept where present.
func Overlay(r *core.UnifiedReport, in Input) *core.UnifiedReport {
	if in.VideoID != "" {
		r.Metadata.VideoID = in.VideoID
	}
	r.Metadata.AnalysisSources = []string{core.SourceNarrative, core.SourceVision}
	r.Metadata.Defaulted = in.DefaultedNames()
	for key, msg := range in.Errors {
		r.MarkError(key, msg)
	}

	for _, name := range core.PerformanceMetricNames() {
		local, ok := in.Metrics[name]
		if !ok {
			continue
		}
		merged := local
		merged.Breakdown = make(map[string]float64, len(local.Breakdown))
		if block := r.PerformanceMetrics.Get(name); block != nil {
			for k, v := range block.Breakdown {
				merged.Breakdown[k] = v
			}
			if block.Insights != "" {
				merged.Insights = block.Insights
			}
		}
		for k, v := range local.Breakdown {
			merged.Breakdown[k] = v
		}
		r.PerformanceMetrics.Set(name, merged.Clamp())
	}

	rm := &r.AudienceAnalysis.RepresentationMetrics
	rm.DemographicsBreakdown = in.Demographics
	if !in.Representation.Defaulted {
		rm.DiversityScore = in.Representation.Score
	}

	r.Contradictions = mergeContradictions(in.Contradictions, r.Contradictions)

	if !in.Vision.Defaulted {
		pace := &r.ContentQuality.PacingAndFlow.EditingPace
		pace.TotalCutCount = core.Count(in.Vision.CutCount)
		pace.AverageCutsPerSecond = cutFrequency(in.Vision.CutCount, in.Vision.AvgSecondsPerCut)
		if len(in.Vision.DominantColors) > 0 {
			r.ContentQuality.VisualElements.ColorScheme.DominantColors = append([]string(nil), in.Vision.DominantColors...)
		}
	}

	if len(r.Summary.KeyStrengths) == 0 {
		r.Summary.KeyStrengths = append([]string{}, in.Narrative.KeyStrengths...)
	}
	if len(r.Summary.ImprovementAreas) == 0 {
		r.Summary.ImprovementAreas = append([]string{}, in.Narrative.ImprovementSuggestions...)
	}
	return r
}

// mergeContradictions keeps every local record and adds model records for
// metrics the local pass did not cover.
func mergeContradictions(local, generated []core.ContradictionRecord) []core.ContradictionRecord {
	out := make([]core.ContradictionRecord, 0, len(local)+len(generated))
	seen := make(map[string]bool, len(local))
	for _, c := range local {
		out = append(out, c)
		seen[c.Metric] = true
	}
	for _, c := range generated {
		if seen[c.Metric] {
			continue
		}
		seen[c.Metric] = true
		out = append(out, c)
	}
	return out
}

func cutFrequency(cuts int, secondsPerCut float64) string {
	if cuts == 0 || secondsPerCut <= 0 {
		return "No cuts detected"
	}
	return fmt.Sprintf("1 cut every %.1f seconds", secondsPerCut)
}
