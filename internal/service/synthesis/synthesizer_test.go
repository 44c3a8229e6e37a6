package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

func newTestSynthesizer(t *testing.T, gen core.Generator, options ...Option) *Synthesizer {
	t.Helper()
	prompts, err := service.NewPromptRenderer()
	require.NoError(t, err)
	return NewSynthesizer(gen, prompts, DefaultOptions(), options...)
}

func TestSynthesize_ParsedReportKeepsLocalSections(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{generatedReport}}
	s := newTestSynthesizer(t, gen)

	report, outcome := s.Synthesize(context.Background(), fixtureInput())

	require.NotNil(t, report)
	assert.Equal(t, StatusParsed, outcome.Status)
	assert.NoError(t, outcome.Err)
	assert.False(t, outcome.Degraded())
	assert.False(t, report.IsFallback())

	assert.Equal(t, "video_1", report.Metadata.VideoID)
	assert.Equal(t, core.Score(82), report.Metadata.ConfidenceIndex)
	assert.Equal(t, []string{core.SourceNarrative, core.SourceVision}, report.Metadata.AnalysisSources)

	// the model wrote 12; the blended score wins
	engagement := report.PerformanceMetrics.Engagement
	assert.InDelta(t, 75, float64(engagement.Score), 0.01)
	assert.Equal(t, core.ConfidenceLow, engagement.Confidence)
	assert.Equal(t, "Viewers stay for the demo", engagement.Insights)
	assert.InDelta(t, 71, engagement.Breakdown["hook_effectiveness"], 0.01)
	assert.InDelta(t, 61, engagement.Breakdown["novelty"], 0.01)

	require.Len(t, report.Contradictions, 2)
	assert.Equal(t, core.MetricEngagement, report.Contradictions[0].Metric)
	assert.Equal(t, core.ConfidenceLow, report.Contradictions[0].Confidence)
	assert.Equal(t, "tone", report.Contradictions[1].Metric)

	gender := report.AudienceAnalysis.RepresentationMetrics.DemographicsBreakdown.GenderDistribution
	assert.InDelta(t, 61, gender["male"], 0.01)
	assert.InDelta(t, 39, gender["female"], 0.01)
	assert.InDelta(t, 100, float64(report.AudienceAnalysis.RepresentationMetrics.DiversityScore), 0.01)

	pace := report.ContentQuality.PacingAndFlow.EditingPace
	assert.Equal(t, core.Count(8), pace.TotalCutCount)
	assert.Equal(t, "1 cut every 2.5 seconds", pace.AverageCutsPerSecond)
	assert.Equal(t, []string{"red", "blue"}, report.ContentQuality.VisualElements.ColorScheme.DominantColors)

	assert.Equal(t, []string{"Hook"}, report.Summary.KeyStrengths)
	assert.Contains(t, report.Metadata.Defaulted, "vision.shareability")
}

func TestSynthesize_PromptCarriesInputs(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{generatedReport}}
	s := newTestSynthesizer(t, gen)

	s.Synthesize(context.Background(), fixtureInput())

	require.Equal(t, 1, gen.calls())
	req := gen.requests[0]
	assert.Contains(t, req.Prompt, "video_1")
	assert.Contains(t, req.Prompt, "engagement")
	assert.Equal(t, "gemini-2.0-flash", req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.Equal(t, 8192, req.MaxTokens)
}

func TestSynthesize_UnparseableOutputFallsBack(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I am unable to analyze this video."}}
	s := newTestSynthesizer(t, gen)

	report, outcome := s.Synthesize(context.Background(), fixtureInput())

	require.NotNil(t, report)
	assert.Equal(t, StatusFallback, outcome.Status)
	assert.True(t, outcome.Degraded())
	assert.True(t, errors.Is(outcome.Err, core.ErrSynthesis(core.CodeSynthesisUnparseable, "")))

	assert.True(t, report.IsFallback())
	assert.Equal(t, core.Score(70), report.Metadata.ConfidenceIndex)
	assert.Equal(t, []string{core.SourceNarrative, core.SourceVision}, report.Metadata.AnalysisSources)
	assert.Contains(t, string(report.NarrativeAnalysis), "engagement")

	// the fallback still carries a full schema with the local scores
	require.NotNil(t, report.Summary)
	require.NotNil(t, report.Recommendations)
	assert.InDelta(t, 75, float64(report.PerformanceMetrics.Engagement.Score), 0.01)
	require.Len(t, report.Contradictions, 1)
}

func TestSynthesize_GeneratorErrorFallsBack(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("connection reset")}}
	s := newTestSynthesizer(t, gen)

	report, outcome := s.Synthesize(context.Background(), fixtureInput())

	require.NotNil(t, report)
	assert.Equal(t, StatusFallback, outcome.Status)
	assert.True(t, errors.Is(outcome.Err, core.ErrSynthesis(core.CodeSynthesisFailed, "")))
	assert.True(t, report.IsFallback())
	assert.Equal(t, 1, gen.calls())
}

func TestSynthesize_NoGenerator(t *testing.T) {
	s := newTestSynthesizer(t, nil)

	report, outcome := s.Synthesize(context.Background(), fixtureInput())

	assert.Equal(t, StatusFallback, outcome.Status)
	assert.True(t, report.IsFallback())
}

func TestSynthesize_RetriesTransientFailures(t *testing.T) {
	gen := &scriptedGenerator{
		errs:      []error{core.ErrRateLimit("slow down")},
		responses: []string{generatedReport},
	}
	var slept []time.Duration
	policy := service.NewRetryPolicy(
		service.WithMaxAttempts(3),
		service.WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)
	s := newTestSynthesizer(t, gen, WithRetryPolicy(policy))

	report, outcome := s.Synthesize(context.Background(), fixtureInput())

	assert.Equal(t, StatusParsed, outcome.Status)
	assert.False(t, report.IsFallback())
	assert.Equal(t, 2, gen.calls())
	assert.Len(t, slept, 1)
}

func TestSynthesize_RateLimited(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{generatedReport}}
	limiter := service.NewRateLimiter(service.RateLimiterConfig{PerMinute: 6000, Burst: 1})
	s := newTestSynthesizer(t, gen, WithRateLimiter(limiter))

	_, outcome := s.Synthesize(context.Background(), fixtureInput())

	assert.Equal(t, StatusParsed, outcome.Status)
	assert.Equal(t, 1, gen.calls())
}

func TestSynthesize_CancelledContextFallsBack(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{generatedReport}}
	limiter := service.NewRateLimiter(service.RateLimiterConfig{PerMinute: 1, Burst: 1})
	require.True(t, limiter.TryAcquire())
	s := newTestSynthesizer(t, gen, WithRateLimiter(limiter))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, outcome := s.Synthesize(ctx, fixtureInput())

	assert.Equal(t, StatusFallback, outcome.Status)
	assert.True(t, report.IsFallback())
	assert.Equal(t, 0, gen.calls())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.SynthesisConfig{
		Model:                "gpt-4o-mini",
		Temperature:          0.3,
		ValidatorTemperature: 0,
		Timeout:              "45s",
		ValidationEnabled:    false,
	})

	assert.Equal(t, "gpt-4o-mini", opts.Model)
	assert.Equal(t, 8192, opts.MaxTokens)
	assert.InDelta(t, 0.3, opts.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, opts.Timeout)
	assert.False(t, opts.ValidationEnabled)
}

func TestFallbackMerge(t *testing.T) {
	in := fixtureInput()
	r := FallbackMerge(in)

	assert.True(t, r.IsFallback())
	assert.Equal(t, "video_1", r.Metadata.VideoID)
	assert.True(t, strings.HasPrefix(string(r.VisionAnalysis), "{"))
	assert.Empty(t, r.Contradictions)
	assert.Nil(t, r.Summary)
}
