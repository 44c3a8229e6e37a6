package synthesis

import (
	"encoding/json"
	"testing"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

func TestRepair_NilReport(t *testing.T) {
	r := Repair(nil)

	if r.Metadata.VideoID != DefaultVideoID || r.Metadata.ConfidenceIndex != DefaultConfidenceIndex {
		t.Errorf("metadata = %+v", r.Metadata)
	}
	for _, name := range core.PerformanceMetricNames() {
		m := r.PerformanceMetrics.Get(name)
		if m == nil || m.Score != core.NeutralScore || len(m.Breakdown) == 0 {
			t.Errorf("%s = %+v", name, m)
		}
	}
	if r.Summary.ContentOverview != DefaultContentOverview || r.Summary.OverallPerformanceScore != 50 {
		t.Errorf("summary = %+v", r.Summary)
	}
	gender := r.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown.GenderDistribution
	if gender["male"] != 50 || gender["female"] != 50 || len(gender) != 2 {
		t.Errorf("gender = %v", gender)
	}
	if r.ContentQuality.PacingAndFlow.EditingPace.TotalCutCount != DefaultCutCount {
		t.Errorf("cut count = %d", r.ContentQuality.PacingAndFlow.EditingPace.TotalCutCount)
	}
	if r.TranscriptionAnalysis.Available || r.TranscriptionAnalysis.Confidence != core.ConfidenceLow {
		t.Errorf("transcription = %+v", r.TranscriptionAnalysis)
	}
	if len(r.Recommendations.PriorityImprovements) != 2 {
		t.Errorf("recommendations = %+v", r.Recommendations)
	}

	// every required section is serialized
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, s := range append(RequiredSections, SectionMetadata, SectionContradictions) {
		if _, ok := obj[s]; !ok {
			t.Errorf("section %s missing from output", s)
		}
	}
	if _, ok := obj["gemini_analysis"]; ok {
		t.Error("repair must not add fallback payloads")
	}
}

func TestRepair_KeepsPresentValues(t *testing.T) {
	r, err := AttemptParse(generatedReport)
	if err != nil {
		t.Fatalf("AttemptParse() error = %v", err)
	}
	Repair(r)

	if r.Summary.ContentOverview != "A product demo with a fast hook." {
		t.Errorf("overview overwritten: %q", r.Summary.ContentOverview)
	}
	if r.AudienceAnalysis.PrimaryAudience.Demographic != "Young professionals" {
		t.Errorf("primary audience overwritten")
	}
	parents := r.AudienceAnalysis.SecondaryAudiences[1]
	if parents.Confidence != core.ConfidenceMedium || len(parents.Reasons) != 1 {
		t.Errorf("secondary audience not completed: %+v", parents)
	}
	if got := r.PerformanceMetrics.Shareability.Breakdown; len(got) != 3 {
		t.Errorf("empty breakdown should get defaults, got %v", got)
	}
	if r.EmotionalAnalysis.EmotionalArc != DefaultEmotionalArc || r.EmotionalAnalysis.DominantEmotions[0] != "Joy" {
		t.Errorf("emotional analysis = %+v", r.EmotionalAnalysis)
	}
	// a High contradiction leaves the High label alone
	if r.PerformanceMetrics.Engagement.Confidence != core.ConfidenceHigh {
		t.Errorf("engagement confidence = %s", r.PerformanceMetrics.Engagement.Confidence)
	}
}

func TestRepair_RelabelsOverconfidentMetric(t *testing.T) {
	r := Repair(nil)
	high := *r.PerformanceMetrics.Engagement
	high.Confidence = core.ConfidenceHigh
	r.PerformanceMetrics.Set(core.MetricEngagement, high)
	r.AddContradiction(core.ContradictionRecord{Metric: core.MetricEngagement, Confidence: core.ConfidenceLow})
	r.AddContradiction(core.ContradictionRecord{Metric: "unknown"})

	Repair(r)
	if got := r.PerformanceMetrics.Engagement.Confidence; got != core.ConfidenceLow {
		t.Errorf("confidence = %s, want Low", got)
	}
	if r.Contradictions[1].Confidence != core.ConfidenceMedium {
		t.Errorf("invalid record confidence should default to Medium")
	}
}

func TestRepair_CollapsesGender(t *testing.T) {
	r := Repair(nil)
	r.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown.GenderDistribution =
		core.Distribution{"male": 45, "female": 45, "other": 10}

	Repair(r)
	gender := r.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown.GenderDistribution
	if len(gender) != 2 || gender["male"] != 50 || gender["female"] != 50 {
		t.Errorf("gender = %v, want 50/50", gender)
	}
}

func TestRepair_CompetitiveFromStrengths(t *testing.T) {
	r := &core.UnifiedReport{Summary: &core.Summary{KeyStrengths: []string{"Hook"}}}
	Repair(r)
	want := []string{"Hook", DefaultDeliveryStrength}
	got := r.CompetitiveAdvantage.UniquenessFactors
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("uniqueness factors = %v, want %v", got, want)
	}
}
