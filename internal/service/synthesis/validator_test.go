package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

const validatedReport = `{
  "summary": {"content_overview": "Validated overview", "key_strengths": ["Hook", "Pacing"]},
  "performance_metrics": {
    "engagement": {"score": 99, "confidence": "High", "insights": "Validated insight"}
  },
  "audience_analysis": {
    "primary_audience": {"demographic": "Creators"},
    "representation_metrics": {"demographics_breakdown": {"gender_distribution": {"male": 50, "female": 50}}}
  },
  "content_quality": {"pacing_and_flow": {"editing_pace": {"total_cut_count": 40}}},
  "contradiction_analysis": []
}`

func synthesized(t *testing.T) *core.UnifiedReport {
	t.Helper()
	s := newTestSynthesizer(t, &scriptedGenerator{responses: []string{generatedReport}})
	report, outcome := s.Synthesize(context.Background(), fixtureInput())
	require.Equal(t, StatusParsed, outcome.Status)
	return report
}

func newTestValidator(t *testing.T, gen core.Generator, opts Options) *Validator {
	t.Helper()
	prompts, err := service.NewPromptRenderer()
	require.NoError(t, err)
	return NewValidator(gen, prompts, opts)
}

func TestValidate_PreservesLocalSections(t *testing.T) {
	pre := synthesized(t)
	gen := &scriptedGenerator{responses: []string{validatedReport}}
	v := newTestValidator(t, gen, DefaultOptions())

	out, outcome := v.Validate(context.Background(), pre)

	require.NotNil(t, out)
	assert.Equal(t, StatusParsed, outcome.Status)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, string(StatusParsed), out.Metadata.Validation)
	assert.Equal(t, "video_1", out.Metadata.VideoID)

	assert.Equal(t, "Validated overview", out.Summary.ContentOverview)
	assert.Equal(t, "Creators", out.AudienceAnalysis.PrimaryAudience.Demographic)

	engagement := out.PerformanceMetrics.Engagement
	assert.InDelta(t, 75, float64(engagement.Score), 0.01)
	assert.Equal(t, core.ConfidenceLow, engagement.Confidence)
	assert.Equal(t, "Validated insight", engagement.Insights)

	gender := out.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown.GenderDistribution
	assert.InDelta(t, 61, gender["male"], 0.01)
	assert.Equal(t, core.Count(8), out.ContentQuality.PacingAndFlow.EditingPace.TotalCutCount)

	require.Len(t, out.Contradictions, 2)
	require.NotNil(t, out.Recommendations)
	assert.Equal(t, []string{"Joy"}, out.EmotionalAnalysis.DominantEmotions)

	req := gen.requests[0]
	assert.Contains(t, req.Prompt, `"video_id": "video_1"`)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
}

func TestValidate_DoesNotModifyInput(t *testing.T) {
	pre := synthesized(t)
	v := newTestValidator(t, &scriptedGenerator{responses: []string{validatedReport}}, DefaultOptions())

	v.Validate(context.Background(), pre)

	assert.Empty(t, pre.Metadata.Validation)
	assert.Equal(t, "A product demo with a fast hook.", pre.Summary.ContentOverview)
}

func TestValidate_UnparseableKeepsPreReport(t *testing.T) {
	pre := synthesized(t)
	gen := &scriptedGenerator{responses: []string{"The report looks fine to me."}}
	v := newTestValidator(t, gen, DefaultOptions())

	out, outcome := v.Validate(context.Background(), pre)

	require.NotNil(t, out)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.True(t, outcome.Degraded())
	assert.True(t, errors.Is(outcome.Err, core.ErrSynthesis(core.CodeValidationSkipped, "")))
	assert.Equal(t, string(StatusSkipped), out.Metadata.Validation)
	assert.Equal(t, pre.Summary.ContentOverview, out.Summary.ContentOverview)
	assert.Equal(t, pre.PerformanceMetrics.Engagement.Score, out.PerformanceMetrics.Engagement.Score)
	assert.Len(t, out.Contradictions, len(pre.Contradictions))
}

func TestValidate_GeneratorErrorKeepsPreReport(t *testing.T) {
	pre := synthesized(t)
	gen := &scriptedGenerator{errs: []error{errors.New("quota exceeded")}}
	v := newTestValidator(t, gen, DefaultOptions())

	out, outcome := v.Validate(context.Background(), pre)

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, pre.Summary.ContentOverview, out.Summary.ContentOverview)
}

func TestValidate_Disabled(t *testing.T) {
	pre := synthesized(t)
	gen := &scriptedGenerator{responses: []string{validatedReport}}
	opts := DefaultOptions()
	opts.ValidationEnabled = false
	v := newTestValidator(t, gen, opts)

	out, outcome := v.Validate(context.Background(), pre)

	assert.Equal(t, StatusDisabled, outcome.Status)
	assert.False(t, outcome.Degraded())
	assert.Equal(t, 0, gen.calls())
	assert.Equal(t, string(StatusDisabled), out.Metadata.Validation)
	assert.Equal(t, pre.Summary.ContentOverview, out.Summary.ContentOverview)
}

func TestValidate_RepairsFallbackReport(t *testing.T) {
	in := fixtureInput()
	fallback := FallbackMerge(in)
	v := newTestValidator(t, &scriptedGenerator{responses: []string{"no"}}, DefaultOptions())

	out, outcome := v.Validate(context.Background(), fallback)

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.True(t, out.IsFallback())
	require.NotNil(t, out.Summary)
	require.NotNil(t, out.PerformanceMetrics)
	require.NotNil(t, out.TranscriptionAnalysis)
}
