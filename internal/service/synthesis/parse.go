package synthesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
)

// Top-level report sections. A parsed object must carry at least one.
const (
	SectionSummary         = "summary"
	SectionPerformance     = "performance_metrics"
	SectionAudience        = "audience_analysis"
	SectionContentQuality  = "content_quality"
	SectionEmotional       = "emotional_analysis"
	SectionCompetitive     = "competitive_advantage"
	SectionRecommendations = "optimization_recommendations"
	SectionTranscription   = "transcription_analysis"
	SectionContradictions  = "contradiction_analysis"
	SectionMetadata        = "metadata"
)

// RequiredSections lists the content sections every report carries.
var RequiredSections = []string{
	SectionSummary,
	SectionPerformance,
	SectionAudience,
	SectionContentQuality,
	SectionEmotional,
	SectionCompetitive,
	SectionRecommendations,
	SectionTranscription,
}

// ErrNoReportSections is returned for objects without any report section.
var ErrNoReportSections = errors.New("object has none of the required report sections")

// AttemptParse decodes generated text into a report. Sections are decoded
// independently: one malformed section is left nil for Repair to fill
// instead of failing the whole document.
func AttemptParse(raw string) (*core.UnifiedReport, error) {
	obj, err := normalize.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("extracting report: %w", err)
	}
	obj = unwrapReport(obj)
	if !hasSection(obj) {
		return nil, ErrNoReportSections
	}

	r := &core.UnifiedReport{Contradictions: []core.ContradictionRecord{}}
	if m := section[core.ReportMetadata](obj, SectionMetadata); m != nil {
		r.Metadata = *m
	}
	r.Summary = section[core.Summary](obj, SectionSummary)
	r.PerformanceMetrics = section[core.PerformanceMetrics](obj, SectionPerformance)
	r.AudienceAnalysis = section[core.AudienceAnalysis](obj, SectionAudience)
	r.ContentQuality = section[core.ContentQuality](obj, SectionContentQuality)
	r.EmotionalAnalysis = section[core.EmotionalAnalysis](obj, SectionEmotional)
	r.CompetitiveAdvantage = section[core.CompetitiveAdvantage](obj, SectionCompetitive)
	r.Recommendations = section[core.Recommendations](obj, SectionRecommendations)
	r.TranscriptionAnalysis = section[core.TranscriptionAnalysis](obj, SectionTranscription)
	r.Contradictions = contradictions(obj[SectionContradictions])
	return r, nil
}

// unwrapReport handles models that nest the report under a single key
// such as "unified_analysis".
func unwrapReport(obj map[string]json.RawMessage) map[string]json.RawMessage {
	if hasSection(obj) || len(obj) != 1 {
		return obj
	}
	for _, raw := range obj {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil && hasSection(nested) {
			return nested
		}
	}
	return obj
}

func hasSection(obj map[string]json.RawMessage) bool {
	for _, name := range RequiredSections {
		if raw, ok := obj[name]; ok && !isNull(raw) {
			return true
		}
	}
	return false
}

func section[T any](obj map[string]json.RawMessage, key string) *T {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// contradictions keeps every record that decodes.
func contradictions(raw json.RawMessage) []core.ContradictionRecord {
	out := []core.ContradictionRecord{}
	if isNull(raw) {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var c core.ContradictionRecord
		if err := json.Unmarshal(item, &c); err == nil && c.Metric != "" {
			out = append(out, c)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
