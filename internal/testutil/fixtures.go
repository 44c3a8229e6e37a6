package testutil

import (
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// FixedTime is the clock used by fixtures.
var FixedTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// CompletedView returns a finished job with a small synthesized report.
func CompletedView() core.ProgressView {
	r := core.NewUnifiedReport("clip")
	r.Metadata.Timestamp = FixedTime
	r.Summary = &core.Summary{
		ContentOverview:         "A short product demo.",
		KeyStrengths:            []string{"clear hook"},
		OverallPerformanceScore: 72,
	}
	r.PerformanceMetrics = &core.PerformanceMetrics{}
	r.PerformanceMetrics.Set(core.MetricEngagement, core.NormalizedMetric{Score: 81, Confidence: core.ConfidenceHigh})
	r.AudienceAnalysis = &core.AudienceAnalysis{
		PrimaryAudience: core.PrimaryAudience{Demographic: "18-24", Confidence: core.ConfidenceMedium},
		RepresentationMetrics: core.RepresentationMetrics{
			DemographicsBreakdown: core.DemographicsBreakdown{
				GenderDistribution: core.Distribution{"male": 40, "female": 60},
			},
		},
	}
	r.AddContradiction(core.ContradictionRecord{Metric: core.MetricViralPotential, Reconciliation: "weighted toward narrative"})
	return core.ProgressView{
		JobID:           "clip_20240501_100000_ab12cd34",
		Name:            "clip",
		SourceRef:       "https://example.com/clip.mp4",
		Stage:           core.StageDone,
		StageName:       core.StageDone.String(),
		Status:          core.JobStatusCompleted,
		ProgressPercent: 100,
		Result:          r,
		CreatedAt:       FixedTime.Add(-time.Minute),
		UpdatedAt:       FixedTime,
	}
}

// FailedView returns a job aborted by a provider failure.
func FailedView() core.ProgressView {
	return core.ProgressView{
		JobID:           "clip-2",
		SourceRef:       "https://example.com/clip.mp4",
		Stage:           core.StageDone,
		StageName:       core.StageDone.String(),
		Status:          core.JobStatusError,
		ProgressPercent: 100,
		Error: &core.ErrorRecord{
			Code:    core.CodeStrictModeAbort,
			Message: "narrative failed",
			Details: map[string]string{
				core.DetailVisionError:    "quota exceeded",
				core.DetailNarrativeError: "timeout",
			},
		},
		CreatedAt: FixedTime.Add(-time.Minute),
		UpdatedAt: FixedTime,
	}
}
