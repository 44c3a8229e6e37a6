package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/providers"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/progress"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/synthesis"
)

const narrativeOutput = `Here is the analysis:
{
  "Performance Metrics": {
    "Attention Score": "82",
    "Engagement Potential": "High",
    "Watch Time Retention": "64%",
    "Key Strengths": ["Fast hook", "Clear product shot"],
    "Improvement Suggestions": ["Shorter intro"]
  },
  "Detailed Analysis": {
    "In-depth Video Analysis": {
      "Hook": "Opens on the product",
      "Tone": "Upbeat"
    }
  }
}`

const generatedReport = `{
  "summary": {
    "overall_score": 74,
    "key_strengths": ["Fast hook"],
    "improvement_areas": ["Shorter intro"]
  },
  "performance_metrics": {
    "engagement": {"score": 70, "confidence": "Medium", "insights": "Holds attention"}
  }
}`

func testFrames() *core.VisionFrames {
	frame := func(i int, names ...string) core.Frame {
		f := core.Frame{Index: i, TimeMs: int64(i) * 1000}
		for _, n := range names {
			f.Detections = append(f.Detections, core.Detection{Name: n, Value: 0.9})
		}
		return f
	}
	return &core.VisionFrames{
		SampleIntervalMs: 1000,
		Models: map[core.VisionModel][]core.Frame{
			core.VisionConcept:       {frame(0, "people", "product"), frame(1, "people"), frame(2, "outdoor")},
			core.VisionFaceSentiment: {frame(0, "joy"), frame(1, "joy"), frame(2, "neutral")},
			core.VisionFaceGender:    {frame(0, "feminine"), frame(1, "masculine"), frame(2, "feminine")},
			core.VisionColor:         {frame(0, "red"), frame(1, "blue"), frame(2, "red")},
		},
	}
}

type fakeFetcher struct {
	err     error
	calls   atomic.Int32
	cleaned atomic.Int32

	mu       sync.Mutex
	inFlight int
	maxSeen  int
	hold     time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (*core.LocalHandle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return &core.LocalHandle{
		Origin:      ref,
		Path:        "/tmp/reelsight/clip.mp4",
		ContentType: "video/mp4",
		Size:        2048,
		Cleanup: func() error {
			f.cleaned.Add(1)
			return nil
		},
	}, nil
}

func (f *fakeFetcher) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

type fakeStager struct {
	url string
	err error
}

func (s *fakeStager) Stage(_ context.Context, _ *core.LocalHandle) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

// fixedGenerator answers every prompt with the same text.
type fixedGenerator struct {
	text  string
	err   error
	panic bool
}

func (g *fixedGenerator) Generate(_ context.Context, _ core.GenerateRequest) (string, error) {
	if g.panic {
		panic("generator exploded")
	}
	return g.text, g.err
}

// memStore is an in-memory ResultStore that counts writes.
type memStore struct {
	mu      sync.Mutex
	records map[core.JobID]*core.JobRecord
	puts    map[core.JobID]int
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{records: map[core.JobID]*core.JobRecord{}, puts: map[core.JobID]int{}}
}

func (s *memStore) Put(_ context.Context, rec *core.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[rec.ID]++
	if s.putErr != nil {
		return s.putErr
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id core.JobID) (*core.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) List(_ context.Context, _ core.ListOptions) ([]core.JobSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.JobSummary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id core.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) putCount(id core.JobID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[id]
}

type stateEvent struct {
	provider core.ProviderName
	state    core.ProviderState
	attempt  int
}

type recordingEvents struct {
	mu     sync.Mutex
	events []stateEvent
}

func (r *recordingEvents) PublishProviderState(_ core.JobID, p core.ProviderName, state core.ProviderState, attempt int, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, stateEvent{provider: p, state: state, attempt: attempt})
}

func (r *recordingEvents) forProvider(p core.ProviderName) []stateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stateEvent
	for _, e := range r.events {
		if e.provider == p {
			out = append(out, e)
		}
	}
	return out
}

// harness wires an orchestrator from fakes. Tests replace the call
// functions before calling build.
type harness struct {
	fetcher   *fakeFetcher
	stager    core.BlobStager
	narrative providers.CallFunc[string]
	vision    providers.CallFunc[*core.VisionFrames]
	gen       core.Generator
	store     *memStore
	events    *recordingEvents
	tracker   *progress.Tracker
	opts      Options

	narrativeRefs  []string
	narrativeMu    sync.Mutex
	visionCalls    atomic.Int32
	lastVisionRef  atomic.Value
	lastNarrPrompt atomic.Value
}

func newHarness() *harness {
	h := &harness{
		fetcher: &fakeFetcher{},
		stager:  &fakeStager{url: "https://blobs.example.com/staged/clip.mp4"},
		gen:     &fixedGenerator{text: generatedReport},
		store:   newMemStore(),
		events:  &recordingEvents{},
		opts:    DefaultOptions(),
	}
	h.narrative = func(_ context.Context, ref string, opts core.CallOptions) (string, error) {
		h.narrativeMu.Lock()
		h.narrativeRefs = append(h.narrativeRefs, ref)
		h.narrativeMu.Unlock()
		h.lastNarrPrompt.Store(opts.Prompt)
		return narrativeOutput, nil
	}
	h.vision = func(_ context.Context, ref string, _ core.CallOptions) (*core.VisionFrames, error) {
		h.visionCalls.Add(1)
		h.lastVisionRef.Store(ref)
		return testFrames(), nil
	}
	return h
}

func fastRetry() *service.RetryPolicy {
	return service.NewRetryPolicy(
		service.WithMaxAttempts(3),
		service.WithBaseDelay(time.Millisecond),
		service.WithMaxDelay(5*time.Millisecond),
		service.WithJitter(0),
	)
}

func (h *harness) build(t *testing.T) *Orchestrator {
	t.Helper()
	prompts, err := service.NewPromptRenderer()
	require.NoError(t, err)

	h.tracker = progress.NewTracker(progress.WithStore(h.store))
	synthOpts := synthesis.DefaultOptions()
	o, err := New(Deps{
		Fetcher:     h.fetcher,
		Stager:      h.stager,
		Narrative:   providers.NewAdapter(core.ProviderNarrative, h.narrative, providers.WithRetry(fastRetry())),
		Vision:      providers.NewAdapter(core.ProviderVision, h.vision, providers.WithRetry(fastRetry())),
		Prompts:     prompts,
		Synthesizer: synthesis.NewSynthesizer(h.gen, prompts, synthOpts),
		Validator:   synthesis.NewValidator(h.gen, prompts, synthOpts),
		Tracker:     h.tracker,
		Store:       h.store,
		Events:      h.events,
	}, h.opts)
	require.NoError(t, err)
	return o
}

var errBoom = errors.New("boom")
