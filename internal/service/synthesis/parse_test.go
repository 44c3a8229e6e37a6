package synthesis

import (
	"errors"
	"testing"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
)

func TestAttemptParse_GeneratedReport(t *testing.T) {
	r, err := AttemptParse(generatedReport)
	if err != nil {
		t.Fatalf("AttemptParse() error = %v", err)
	}
	if r.Summary == nil || r.Summary.OverallPerformanceScore != 71 {
		t.Errorf("summary = %+v", r.Summary)
	}
	if r.PerformanceMetrics == nil || r.PerformanceMetrics.Engagement == nil {
		t.Fatal("performance metrics missing")
	}
	if r.PerformanceMetrics.Shareability.Score != 70 {
		t.Errorf("shareability score = %v, want 70", r.PerformanceMetrics.Shareability.Score)
	}
	if r.PerformanceMetrics.ViralPotential != nil {
		t.Error("absent block should stay nil until repaired")
	}
	if len(r.AudienceAnalysis.SecondaryAudiences) != 2 || r.AudienceAnalysis.SecondaryAudiences[0].Demographic != "Students" {
		t.Errorf("secondary audiences = %+v", r.AudienceAnalysis.SecondaryAudiences)
	}
	if r.ContentQuality != nil {
		t.Error("content quality should be absent")
	}
	if len(r.Contradictions) != 2 || r.Contradictions[1].Confidence != core.ConfidenceMedium {
		t.Errorf("contradictions = %+v", r.Contradictions)
	}
}

func TestAttemptParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"prose", "I'm unable to produce the analysis right now.", normalize.ErrNoStructuredData},
		{"unrelated object", `{"answer": 42}`, ErrNoReportSections},
		{"only metadata", `{"metadata": {"video_id": "x"}, "contradiction_analysis": []}`, ErrNoReportSections},
		{"null sections", `{"summary": null}`, ErrNoReportSections},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := AttemptParse(tt.raw)
			if r != nil {
				t.Errorf("expected no report, got %+v", r)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttemptParse_NestedAndPartiallyMalformed(t *testing.T) {
	raw := `{"unified_analysis": {
		"summary": {"key_strengths": "should be a list"},
		"emotional_analysis": {"dominant_emotions": ["Calm"], "emotional_resonance_score": "high"}
	}}`

	r, err := AttemptParse(raw)
	if err != nil {
		t.Fatalf("AttemptParse() error = %v", err)
	}
	if r.Summary != nil {
		t.Error("malformed section should be dropped")
	}
	if r.EmotionalAnalysis == nil || r.EmotionalAnalysis.EmotionalResonanceScore != 80 {
		t.Errorf("emotional analysis = %+v", r.EmotionalAnalysis)
	}
	if r.Contradictions == nil {
		t.Error("contradictions should be an empty list")
	}
}
