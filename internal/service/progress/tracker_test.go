package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

type recordingPublisher struct {
	mu    sync.Mutex
	views []core.ProgressView
}

func (p *recordingPublisher) PublishProgress(view core.ProgressView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, view)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

type memStore struct {
	mu      sync.Mutex
	records map[core.JobID]*core.JobRecord
	err     error
}

func (s *memStore) Put(_ context.Context, rec *core.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[core.JobID]*core.JobRecord{}
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) Get(_ context.Context, id core.JobID) (*core.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.records[id], nil
}

func (s *memStore) List(context.Context, core.ListOptions) ([]core.JobSummary, error) {
	return nil, nil
}
func (s *memStore) Delete(context.Context, core.JobID) error { return nil }
func (s *memStore) Count(context.Context) (int, error)       { return len(s.records), nil }
func (s *memStore) Close() error                             { return nil }

func startJob(t *testing.T, tr *Tracker, id core.JobID) {
	t.Helper()
	if err := tr.Start(core.NewJob(id, "clip", "https://example.com/v.mp4").View()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestMilestoneTable(t *testing.T) {
	want := map[Milestone]int{
		MilestoneCreated:           0,
		MilestoneDownloadStarted:   5,
		MilestoneDownloadComplete:  15,
		MilestoneUploadComplete:    25,
		MilestoneProviderStarted:   30,
		MilestoneProviderComplete:  50,
		MilestoneProvidersJoined:   60,
		MilestoneSynthesisStarted:  70,
		MilestoneValidationStarted: 85,
		MilestonePersisting:        95,
		MilestoneCompleted:         100,
		MilestoneError:             100,
	}
	prev := -1
	for _, m := range Milestones() {
		step, ok := StepFor(m)
		if !ok {
			t.Fatalf("StepFor(%s) missing", m)
		}
		if step.Percent != want[m] {
			t.Errorf("%s percent = %d, want %d", m, step.Percent, want[m])
		}
		if m != MilestoneError && step.Percent < prev {
			t.Errorf("%s percent %d is below the previous milestone", m, step.Percent)
		}
		prev = step.Percent
	}
	if _, ok := StepFor("bogus"); ok {
		t.Error("StepFor(bogus) should not exist")
	}
}

func TestTracker_HappyPath(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(WithPublisher(pub))
	startJob(t, tr, "job_1")

	sequence := []struct {
		m       Milestone
		status  core.JobStatus
		percent int
		stage   core.Stage
	}{
		{MilestoneDownloadStarted, core.JobStatusInitializing, 5, core.StageAcquiring},
		{MilestoneDownloadComplete, core.JobStatusInitializing, 15, core.StageAcquiring},
		{MilestoneUploadComplete, core.JobStatusInitializing, 25, core.StageStaging},
		{MilestoneProviderStarted, core.JobStatusAnalyzing, 30, core.StageAnalyzing},
		{MilestoneProviderStarted, core.JobStatusAnalyzing, 30, core.StageAnalyzing},
		{MilestoneProviderComplete, core.JobStatusAnalyzing, 50, core.StageAnalyzing},
		{MilestoneProviderComplete, core.JobStatusAnalyzing, 50, core.StageAnalyzing},
		{MilestoneProvidersJoined, core.JobStatusProvidersComplete, 60, core.StageJoined},
		{MilestoneSynthesisStarted, core.JobStatusSynthesizing, 70, core.StageSynthesizing},
		{MilestoneValidationStarted, core.JobStatusValidating, 85, core.StageValidating},
		{MilestonePersisting, core.JobStatusValidating, 95, core.StagePersisting},
		{MilestoneCompleted, core.JobStatusCompleted, 100, core.StageDone},
	}
	for _, step := range sequence {
		view, err := tr.Apply("job_1", step.m)
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", step.m, err)
		}
		if view.Status != step.status || view.ProgressPercent != step.percent || view.Stage != step.stage {
			t.Fatalf("Apply(%s) = %s/%d/%s, want %s/%d/%s", step.m,
				view.Status, view.ProgressPercent, view.Stage, step.status, step.percent, step.stage)
		}
		if view.StageName != view.Stage.String() {
			t.Errorf("StageName = %q, want %q", view.StageName, view.Stage.String())
		}
	}

	if got := pub.count(); got != len(sequence)+1 {
		t.Errorf("published %d views, want %d", got, len(sequence)+1)
	}
}

func TestTracker_TerminalIsFrozen(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")
	if _, err := tr.Apply("job_1", MilestoneError); err != nil {
		t.Fatalf("Apply(error) error = %v", err)
	}

	view, err := tr.Apply("job_1", MilestoneSynthesisStarted)
	if !errors.Is(err, core.ErrState(core.CodeJobTerminal, "")) {
		t.Fatalf("Apply after terminal error = %v, want JOB_TERMINAL", err)
	}
	if view.Status != core.JobStatusError || view.ProgressPercent != 100 {
		t.Errorf("frozen view = %s/%d", view.Status, view.ProgressPercent)
	}
}

func TestTracker_RejectsSkippedStatus(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")

	_, err := tr.Apply("job_1", MilestoneSynthesisStarted)
	if !errors.Is(err, core.ErrState(core.CodeInvalidTransition, "")) {
		t.Fatalf("Apply() error = %v, want INVALID_TRANSITION", err)
	}
	view, _ := tr.Peek("job_1")
	if view.Status != core.JobStatusInitializing || view.ProgressPercent != 0 {
		t.Errorf("view changed after rejected milestone: %s/%d", view.Status, view.ProgressPercent)
	}
}

func TestTracker_UpdateNeverMovesBackwards(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")
	if _, err := tr.Apply("job_1", MilestoneUploadComplete); err != nil {
		t.Fatal(err)
	}

	view, err := tr.Update("job_1", func(v *core.ProgressView) error {
		v.ProgressPercent = 3
		v.Stage = core.StageQueued
		v.Providers[core.ProviderVision] = core.ProviderStateRunning
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if view.ProgressPercent != 25 || view.Stage != core.StageStaging {
		t.Errorf("Update moved backwards: %d/%s", view.ProgressPercent, view.Stage)
	}
	if view.Providers[core.ProviderVision] != core.ProviderStateRunning {
		t.Errorf("provider state = %s, want running", view.Providers[core.ProviderVision])
	}
}

func TestTracker_UpdateErrorLeavesView(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")
	boom := errors.New("boom")

	_, err := tr.Update("job_1", func(v *core.ProgressView) error {
		v.Message = "changed"
		v.Providers[core.ProviderNarrative] = core.ProviderStateFailed
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	view, _ := tr.Peek("job_1")
	if view.Message == "changed" || view.Providers[core.ProviderNarrative] != core.ProviderStatePending {
		t.Errorf("rejected update leaked into the tracker: %+v", view)
	}
}

func TestTracker_StartTwice(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")
	if err := tr.Start(core.NewJob("job_1", "", "").View()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := tr.Start(core.ProgressView{}); err == nil {
		t.Error("Start() without id should fail")
	}
}

func TestTracker_UnknownMilestone(t *testing.T) {
	tr := NewTracker()
	startJob(t, tr, "job_1")
	if _, err := tr.Apply("job_1", "teleported"); !core.IsCategory(err, core.ErrCatValidation) {
		t.Errorf("Apply(unknown) error = %v, want validation", err)
	}
}

func TestTracker_GetFallsBackToStore(t *testing.T) {
	store := &memStore{}
	rec := core.NewJob("job_old", "old", "ref").View().Record()
	rec.Status = core.JobStatusCompleted
	rec.ProgressPercent = 100
	rec.Stage = core.StageDone
	_ = store.Put(context.Background(), rec)
	tr := NewTracker(WithStore(store))

	view, err := tr.Get(context.Background(), "job_old")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.Status != core.JobStatusCompleted || view.StageName != "done" {
		t.Errorf("Get() = %s/%s", view.Status, view.StageName)
	}

	_, err = tr.Get(context.Background(), "job_missing")
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("Get(missing) error = %v, want not_found", err)
	}

	store.err = errors.New("disk gone")
	if _, err := tr.Get(context.Background(), "job_old"); err == nil || core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("Get() with failing store error = %v", err)
	}
}

func TestTracker_GetWithoutStore(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.Get(context.Background(), "nope"); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("Get() error = %v, want not_found", err)
	}
}

func TestTracker_Evict(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := NewTracker(WithClock(clock), WithShards(4))
	startJob(t, tr, "done_old")
	startJob(t, tr, "running")
	if _, err := tr.Apply("done_old", MilestoneError); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	startJob(t, tr, "done_new")
	if _, err := tr.Apply("done_new", MilestoneError); err != nil {
		t.Fatal(err)
	}

	if got := tr.Evict(time.Hour); got != 1 {
		t.Fatalf("Evict() = %d, want 1", got)
	}
	if _, ok := tr.Peek("done_old"); ok {
		t.Error("done_old should be evicted")
	}
	if _, ok := tr.Peek("running"); !ok {
		t.Error("running jobs must not be evicted")
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
	if active := tr.Active(); len(active) != 1 || active[0].JobID != "running" {
		t.Errorf("Active() = %v", active)
	}
}

func TestTracker_ConcurrentJobs(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(WithPublisher(pub))
	const jobs = 50

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := core.JobID(fmt.Sprintf("job_%d", i))
			if err := tr.Start(core.NewJob(id, "", "").View()); err != nil {
				t.Error(err)
				return
			}
			for _, m := range []Milestone{MilestoneDownloadComplete, MilestoneProviderStarted, MilestoneProviderComplete, MilestoneProvidersJoined} {
				if _, err := tr.Apply(id, m); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	if tr.Len() != jobs {
		t.Fatalf("Len() = %d, want %d", tr.Len(), jobs)
	}
	for i := 0; i < jobs; i++ {
		view, _ := tr.Peek(core.JobID(fmt.Sprintf("job_%d", i)))
		if view.ProgressPercent != 60 {
			t.Errorf("job_%d percent = %d, want 60", i, view.ProgressPercent)
		}
	}
	if pub.count() != jobs*5 {
		t.Errorf("published %d, want %d", pub.count(), jobs*5)
	}
}
