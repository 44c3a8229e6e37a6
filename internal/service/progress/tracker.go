package progress

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 16

type shard struct {
	mu    sync.RWMutex
	views map[core.JobID]core.ProgressView
}

// Tracker is a sharded, concurrency-safe map of job snapshots. Every
// change is published to the configured EventPublisher after the shard
// lock is released.
type Tracker struct {
	shards    []*shard
	store     core.ResultStore
	publisher core.EventPublisher
	metrics   *metrics.Collector
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore sets the durable fallback used by Get.
func WithStore(s core.ResultStore) Option {
	return func(t *Tracker) { t.store = s }
}

// WithPublisher sets the change listener.
func WithPublisher(p core.EventPublisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

// WithMetrics records stage transitions.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Tracker) { t.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithShards sets the shard count.
func WithShards(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.shards = newShards(n)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		shards: newShards(DefaultShards),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{views: make(map[core.JobID]core.ProgressView)}
	}
	return shards
}

func (t *Tracker) shardFor(id core.JobID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// Start registers a new job. Registering an id twice is an error.
func (t *Tracker) Start(view core.ProgressView) error {
	if view.JobID == "" {
		return core.ErrValidation(core.CodeInvalidJobID, "job id is required")
	}
	s := t.shardFor(view.JobID)
	s.mu.Lock()
	if _, exists := s.views[view.JobID]; exists {
		s.mu.Unlock()
		return core.ErrState(core.CodeInvalidTransition, fmt.Sprintf("job %s is already tracked", view.JobID))
	}
	if view.StageName == "" {
		view.StageName = view.Stage.String()
	}
	s.views[view.JobID] = view
	s.mu.Unlock()

	t.publish(view)
	return nil
}

// Apply advances a job to milestone m through the milestone table.
// Stage and percent never move backwards, and terminal snapshots are
// frozen.
func (t *Tracker) Apply(id core.JobID, m Milestone) (core.ProgressView, error) {
	step, ok := StepFor(m)
	if !ok {
		return core.ProgressView{}, core.ErrValidation("UNKNOWN_MILESTONE", fmt.Sprintf("unknown milestone %q", m))
	}
	return t.Update(id, func(v *core.ProgressView) error {
		if step.Status != "" && step.Status != v.Status {
			if !v.Status.CanTransitionTo(step.Status) {
				return core.ErrState(core.CodeInvalidTransition,
					fmt.Sprintf("milestone %s cannot move job %s from %s to %s", m, id, v.Status, step.Status))
			}
			v.Status = step.Status
		}
		if step.Stage > v.Stage {
			v.Stage = step.Stage
		}
		if step.Percent > v.ProgressPercent {
			v.ProgressPercent = step.Percent
		}
		v.Message = step.Message
		return nil
	})
}

// Update applies fn to the snapshot of id under the shard lock. fn may
// change any field; percent and stage are clamped so they never decrease.
// Terminal snapshots are not modified.
func (t *Tracker) Update(id core.JobID, fn func(*core.ProgressView) error) (core.ProgressView, error) {
	s := t.shardFor(id)
	s.mu.Lock()
	current, ok := s.views[id]
	if !ok {
		s.mu.Unlock()
		return core.ProgressView{}, core.ErrNotFound("job", string(id))
	}
	if current.Status.IsTerminal() {
		s.mu.Unlock()
		return current, core.ErrState(core.CodeJobTerminal, fmt.Sprintf("job %s already %s", id, current.Status))
	}

	next := current
	next.Providers = cloneProviders(current.Providers)
	next.Error = current.Error.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return current, err
	}
	if next.ProgressPercent < current.ProgressPercent {
		next.ProgressPercent = current.ProgressPercent
	}
	if next.ProgressPercent > 100 {
		next.ProgressPercent = 100
	}
	if next.Stage < current.Stage {
		next.Stage = current.Stage
	}
	next.StageName = next.Stage.String()
	next.UpdatedAt = t.now()
	s.views[id] = next
	s.mu.Unlock()

	if next.Stage != current.Stage {
		t.metrics.StageReached(next.StageName)
	}
	t.publish(next)
	return next, nil
}

// Get returns the snapshot for id from memory, then from the store.
func (t *Tracker) Get(ctx context.Context, id core.JobID) (core.ProgressView, error) {
	if view, ok := t.Peek(id); ok {
		return view, nil
	}
	if t.store == nil {
		return core.ProgressView{}, core.ErrNotFound("job", string(id))
	}
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return core.ProgressView{}, fmt.Errorf("loading job %s: %w", id, err)
	}
	if rec == nil {
		return core.ProgressView{}, core.ErrNotFound("job", string(id))
	}
	return rec.View(), nil
}

// Peek returns the in-memory snapshot only.
func (t *Tracker) Peek(id core.JobID) (core.ProgressView, bool) {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.views[id]
	if !ok {
		return core.ProgressView{}, false
	}
	view.Providers = cloneProviders(view.Providers)
	view.Error = view.Error.Clone()
	return view, true
}

// Active returns every non-terminal snapshot, oldest first.
func (t *Tracker) Active() []core.ProgressView {
	var out []core.ProgressView
	for _, s := range t.shards {
		s.mu.RLock()
		for _, v := range s.views {
			if !v.Status.IsTerminal() {
				out = append(out, v)
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.views)
		s.mu.RUnlock()
	}
	return n
}

// Evict drops terminal snapshots last updated more than olderThan ago and
// returns how many were removed. Running jobs are never evicted.
func (t *Tracker) Evict(olderThan time.Duration) int {
	cutoff := t.now().Add(-olderThan)
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for id, v := range s.views {
			if v.Status.IsTerminal() && v.UpdatedAt.Before(cutoff) {
				delete(s.views, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		t.logger.Debug("evicted finished jobs from memory", "count", removed)
	}
	return removed
}

// Forget removes id from memory regardless of its status.
func (t *Tracker) Forget(id core.JobID) {
	s := t.shardFor(id)
	s.mu.Lock()
	delete(s.views, id)
	s.mu.Unlock()
}

func (t *Tracker) publish(view core.ProgressView) {
	if t.publisher == nil {
		return
	}
	view.Providers = cloneProviders(view.Providers)
	view.Error = view.Error.Clone()
	t.publisher.PublishProgress(view)
}

func cloneProviders(in map[core.ProviderName]core.ProviderState) map[core.ProviderName]core.ProviderState {
	if in == nil {
		return nil
	}
	out := make(map[core.ProviderName]core.ProviderState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
