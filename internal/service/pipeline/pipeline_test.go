package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
)

func TestRun_HappyPath(t *testing.T) {
	h := newHarness()
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/ads/Launch Spot.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	assert.Equal(t, core.StageDone, view.Stage)
	assert.Equal(t, 100, view.ProgressPercent)
	assert.Nil(t, view.Error)
	require.NotNil(t, view.Result)
	assert.Equal(t, string(view.JobID), view.Result.Metadata.VideoID)
	assert.False(t, view.Result.Metadata.HasErrors)
	assert.Equal(t, core.ProviderStateComplete, view.Providers[core.ProviderNarrative])
	assert.Equal(t, core.ProviderStateComplete, view.Providers[core.ProviderVision])
	assert.True(t, strings.HasPrefix(string(view.JobID), "launch_spot_"), view.JobID)
	assert.Equal(t, "Launch Spot", view.Name)

	// both providers see the staged copy
	assert.Equal(t, "https://blobs.example.com/staged/clip.mp4", h.lastVisionRef.Load())
	assert.Equal(t, []string{"https://blobs.example.com/staged/clip.mp4"}, h.narrativeRefs)
	assert.Contains(t, h.lastNarrPrompt.Load(), "https://blobs.example.com/staged/clip.mp4")
	assert.EqualValues(t, 1, h.fetcher.cleaned.Load())

	rec, err := h.store.Get(context.Background(), view.JobID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.JobStatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.ProgressPercent)
	assert.NotNil(t, rec.Result)
	assert.Equal(t, 1, h.store.putCount(view.JobID), "store is written once per job")

	for _, p := range []core.ProviderName{core.ProviderNarrative, core.ProviderVision} {
		events := h.events.forProvider(p)
		require.Len(t, events, 2, p)
		assert.Equal(t, core.ProviderStateRunning, events[0].state)
		assert.Equal(t, core.ProviderStateComplete, events[1].state)
		assert.Equal(t, 1, events[1].attempt)
	}
}

func TestRun_NarrativeFailureUsesFallback(t *testing.T) {
	h := newHarness()
	h.narrative = func(context.Context, string, core.CallOptions) (string, error) {
		return "", core.ErrPermanentProvider(core.ProviderNarrative, "invalid API key")
	}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailNarrativeError], "invalid API key")
	assert.NotContains(t, view.Error.Details, core.DetailVisionError)
	assert.Equal(t, core.ProviderStateFailed, view.Providers[core.ProviderNarrative])
	assert.Equal(t, core.ProviderStateComplete, view.Providers[core.ProviderVision])

	require.NotNil(t, view.Result)
	assert.True(t, view.Result.Metadata.HasErrors)
	assert.Contains(t, view.Result.Metadata.ErrorDetails, core.DetailNarrativeError)
	assertNarrativeNeutral(t, view.Result, h.opts)

	rec, err := h.store.Get(context.Background(), view.JobID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Summary().HasErrors)
}

func TestRun_NarrativeExhaustsRetriesTakesVisionScores(t *testing.T) {
	h := newHarness()
	var calls atomic.Int32
	h.narrative = func(context.Context, string, core.CallOptions) (string, error) {
		calls.Add(1)
		return "", core.ErrTransientProvider(core.ProviderNarrative, "503 from upstream")
	}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	assert.EqualValues(t, 3, calls.Load())
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailNarrativeError], "503 from upstream")
	require.NotNil(t, view.Result)
	assertNarrativeNeutral(t, view.Result, h.opts)
}

// assertNarrativeNeutral checks that a report built without narrative
// output carries the vision scores unchanged and no contradictions.
func assertNarrativeNeutral(t *testing.T, report *core.UnifiedReport, opts Options) {
	t.Helper()
	assert.Empty(t, report.Contradictions)
	vision := normalize.Vision(*testFrames(), opts.Thresholds)
	for _, name := range core.PerformanceMetricNames() {
		got := report.PerformanceMetrics.Get(name)
		require.NotNil(t, got, name)
		assert.InDelta(t, float64(vision.Metric(name).Clamp().Score), float64(got.Score), 0.01, name)
	}
	for _, name := range normalize.NarrativeMetricNames() {
		assert.Contains(t, report.Metadata.Defaulted, string(core.ProviderNarrative)+"."+name)
	}
}

func TestRun_TransientFailureIsRetried(t *testing.T) {
	h := newHarness()
	var calls atomic.Int32
	h.vision = func(context.Context, string, core.CallOptions) (*core.VisionFrames, error) {
		if calls.Add(1) == 1 {
			return nil, core.ErrTransientProvider(core.ProviderVision, "503 from upstream")
		}
		return testFrames(), nil
	}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	assert.Nil(t, view.Error)
	assert.EqualValues(t, 2, calls.Load())

	events := h.events.forProvider(core.ProviderVision)
	require.Len(t, events, 3)
	assert.Equal(t, core.ProviderStateRunning, events[1].state)
	assert.Equal(t, 2, events[1].attempt)
	assert.Equal(t, core.ProviderStateComplete, events[2].state)
	assert.Equal(t, 2, events[2].attempt)
}

func TestRun_BothProvidersFailStillCompletes(t *testing.T) {
	h := newHarness()
	h.narrative = func(context.Context, string, core.CallOptions) (string, error) {
		return "", core.ErrTransientProvider(core.ProviderNarrative, "timeout")
	}
	h.vision = func(context.Context, string, core.CallOptions) (*core.VisionFrames, error) {
		return nil, core.ErrAuth("bad PAT")
	}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailNarrativeError], "exhausted after 3")
	assert.Contains(t, view.Error.Details, core.DetailVisionError)
	require.NotNil(t, view.Result)
	require.NotNil(t, view.Result.PerformanceMetrics)
	assert.Empty(t, view.Result.Contradictions)
	for _, name := range core.PerformanceMetricNames() {
		m := view.Result.PerformanceMetrics.Get(name)
		require.NotNil(t, m, name)
		assert.InDelta(t, float64(core.NeutralScore), float64(m.Score), 0.01, name)
	}
}

func TestRun_StrictPolicyAborts(t *testing.T) {
	h := newHarness()
	h.opts.FailurePolicy = PolicyStrict
	h.vision = func(context.Context, string, core.CallOptions) (*core.VisionFrames, error) {
		return nil, core.ErrPermanentProvider(core.ProviderVision, "model not found")
	}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusError, view.Status)
	assert.Equal(t, 100, view.ProgressPercent)
	require.NotNil(t, view.Error)
	assert.Equal(t, core.CodeStrictModeAbort, view.Error.Code)
	assert.Contains(t, view.Error.Details[core.DetailVisionError], "model not found")
	assert.Nil(t, view.Result)

	rec, err := h.store.Get(context.Background(), view.JobID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.JobStatusError, rec.Status)
	assert.Equal(t, 1, h.store.putCount(view.JobID))
}

func TestRun_UnreadableLocalSourceFailsJob(t *testing.T) {
	h := newHarness()
	h.fetcher.err = core.ErrValidation(core.CodeInvalidSource, "file does not exist")
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "/missing/clip.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, core.CodeInvalidSource, view.Error.Code)
	assert.Equal(t, "file does not exist", view.Error.Message)
	assert.EqualValues(t, 0, h.visionCalls.Load())
	assert.Empty(t, h.narrativeRefs)
}

func TestRun_DownloadFailureSkipsVision(t *testing.T) {
	h := newHarness()
	h.fetcher.err = fmt.Errorf("yt-dlp: 403 forbidden")
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	assert.Equal(t, 100, view.ProgressPercent)
	assert.EqualValues(t, 0, h.visionCalls.Load())
	assert.Equal(t, []string{"https://cdn.example.com/a.mp4"}, h.narrativeRefs)
	assert.Contains(t, h.lastNarrPrompt.Load(), "https://cdn.example.com/a.mp4")
	assert.EqualValues(t, 0, h.fetcher.cleaned.Load())

	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailVisionError], "403 forbidden")
	assert.NotContains(t, view.Error.Details, core.DetailNarrativeError)
	assert.Equal(t, core.ProviderStateFailed, view.Providers[core.ProviderVision])
	assert.Equal(t, core.ProviderStateComplete, view.Providers[core.ProviderNarrative])
	require.NotNil(t, view.Result)
	assert.Contains(t, view.Result.Metadata.ErrorDetails, core.DetailVisionError)
}

func TestRun_LocalSourceWithoutStagerFailsJob(t *testing.T) {
	h := newHarness()
	h.stager = nil
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "/videos/clip.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, core.CodeInvalidSource, view.Error.Code)
	assert.EqualValues(t, 0, h.visionCalls.Load())
	assert.Empty(t, h.narrativeRefs)
	assert.EqualValues(t, 1, h.fetcher.cleaned.Load())
}

func TestRun_StagingFailureSkipsVision(t *testing.T) {
	h := newHarness()
	h.stager = &fakeStager{err: core.ErrNetwork("bucket unreachable")}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	assert.EqualValues(t, 0, h.visionCalls.Load())
	assert.Equal(t, []string{"https://cdn.example.com/a.mp4"}, h.narrativeRefs)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailVisionError], "bucket unreachable")
	assert.Equal(t, core.ProviderStateFailed, view.Providers[core.ProviderVision])
}

func TestRun_UnparseableSynthesisFallsBack(t *testing.T) {
	h := newHarness()
	h.gen = &fixedGenerator{text: "I cannot produce JSON today."}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details, core.DetailSynthesisError)
	assert.Contains(t, view.Error.Details, core.DetailValidationError)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.IsFallback())
}

func TestRun_PanicBecomesInternalError(t *testing.T) {
	h := newHarness()
	h.gen = &fixedGenerator{panic: true}
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, core.CodeInternal, view.Error.Code)
	assert.Contains(t, view.Error.Message, "generator exploded")
	assert.EqualValues(t, 1, h.fetcher.cleaned.Load())
}

func TestRun_PersistenceFailureStillCompletes(t *testing.T) {
	h := newHarness()
	h.store.putErr = core.ErrPersistence("disk full")
	o := h.build(t)

	view, err := o.Run(context.Background(), SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4"})
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, view.Error.Details[core.DetailPersistenceError], "disk full")
	require.NotNil(t, view.Result)
}

func TestSubmit_RunsInBackground(t *testing.T) {
	h := newHarness()
	h.fetcher.hold = 20 * time.Millisecond
	h.opts.MaxConcurrent = 2
	o := h.build(t)

	ctx, cancel := context.WithCancel(context.Background())
	ids := make([]core.JobID, 0, 6)
	for i := 0; i < 6; i++ {
		id, err := o.Submit(ctx, SubmitRequest{SourceRef: fmt.Sprintf("https://cdn.example.com/clip-%d.mp4", i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// jobs outlive the submitting request
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	require.NoError(t, o.Wait(waitCtx))

	for _, id := range ids {
		view, err := o.Poll(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusCompleted, view.Status, id)
	}
	assert.LessOrEqual(t, h.fetcher.peak(), 2)
	assert.EqualValues(t, 6, h.fetcher.calls.Load())
}

func TestSubmit_Validation(t *testing.T) {
	o := newHarness().build(t)
	ctx := context.Background()

	_, err := o.Submit(ctx, SubmitRequest{SourceRef: "  "})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	_, err = o.Submit(ctx, SubmitRequest{SourceRef: "a.mp4", ID: "../etc/passwd"})
	require.Error(t, err)

	_, err = o.Submit(ctx, SubmitRequest{SourceRef: "a.mp4", Name: strings.Repeat("n", core.MaxJobNameLength+1)})
	require.Error(t, err)

	id, err := o.Submit(ctx, SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4", ID: "custom-job.1"})
	require.NoError(t, err)
	assert.Equal(t, core.JobID("custom-job.1"), id)

	_, err = o.Submit(ctx, SubmitRequest{SourceRef: "https://cdn.example.com/a.mp4", ID: "custom-job.1"})
	assert.Error(t, err, "duplicate ids are rejected")

	require.NoError(t, o.Wait(ctx))
}

func TestPoll_UnknownJob(t *testing.T) {
	o := newHarness().build(t)
	_, err := o.Poll(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, DefaultOptions())
	require.Error(t, err)
	for _, want := range []string{"fetcher", "narrative", "vision", "synthesizer", "tracker"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Pipeline.FailurePolicy = "STRICT"
	cfg.Pipeline.MaxConcurrent = 7
	cfg.Providers.Vision.SampleIntervalMs = 500

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, opts.FailurePolicy)
	assert.Equal(t, 7, opts.MaxConcurrent)
	assert.Equal(t, 500, opts.SampleIntervalMs)

	cfg.Pipeline.FailurePolicy = "sometimes"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestFallbackPayloads(t *testing.T) {
	n := FallbackNarrative()
	assert.True(t, n.Defaulted)
	for _, name := range normalize.NarrativeMetricNames() {
		m := n.Metric(name)
		assert.True(t, m.Defaulted, name)
		assert.Equal(t, core.NeutralScore, m.Score, name)
	}
	assert.Len(t, n.DefaultedNames(), len(normalize.NarrativeMetricNames()))
	assert.NotEmpty(t, n.ImprovementSuggestions)

	v := FallbackVision()
	assert.NotEmpty(t, v.DefaultedNames())
}
