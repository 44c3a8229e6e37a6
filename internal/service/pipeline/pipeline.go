// Package pipeline runs analysis jobs end to end: acquire the source, fan
// out to both providers, normalize and reconcile their output, synthesize
// and validate the unified report, then persist it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/providers"
	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/progress"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/reconcile"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/synthesis"
)

// Options tunes the orchestrator.
type Options struct {
	FailurePolicy    FailurePolicy
	SampleIntervalMs int
	Thresholds       normalize.Thresholds
	// MaxConcurrent bounds running jobs; queued jobs wait at 0%.
	MaxConcurrent int
}

// DefaultOptions returns best effort with one-second sampling.
func DefaultOptions() Options {
	return Options{
		FailurePolicy:    PolicyBestEffort,
		SampleIntervalMs: 1000,
		Thresholds:       normalize.DefaultThresholds(),
		MaxConcurrent:    4,
	}
}

// OptionsFromConfig reads the pipeline and vision sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	policy, err := ParseFailurePolicy(cfg.Pipeline.FailurePolicy)
	if err != nil {
		return Options{}, err
	}
	opts.FailurePolicy = policy
	if cfg.Pipeline.MaxConcurrent > 0 {
		opts.MaxConcurrent = cfg.Pipeline.MaxConcurrent
	}
	if cfg.Providers.Vision.SampleIntervalMs > 0 {
		opts.SampleIntervalMs = cfg.Providers.Vision.SampleIntervalMs
	}
	opts.Thresholds = normalize.ThresholdsFromMap(cfg.Providers.Vision.Thresholds)
	return opts, nil
}

// Deps are the collaborators a job needs. Fetcher, Narrative, Vision,
// Synthesizer and Tracker are required.
type Deps struct {
	Fetcher     core.SourceFetcher
	Stager      core.BlobStager
	Narrative   *providers.Adapter[string]
	Vision      *providers.Adapter[*core.VisionFrames]
	Prompts     *service.PromptRenderer
	Reconciler  *reconcile.Reconciler
	Synthesizer *synthesis.Synthesizer
	Validator   *synthesis.Validator
	Tracker     *progress.Tracker
	Store       core.ResultStore
	Events      core.ProviderStatePublisher
	Metrics     *metrics.Collector
	Logger      *logging.Logger
}

// SubmitRequest describes one analysis. ID and Name are optional.
type SubmitRequest struct {
	SourceRef string `json:"source_ref"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Orchestrator accepts jobs and drives them to a terminal state.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *logging.Logger
	sem  chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// New validates deps and creates an orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	var missing []string
	if deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if deps.Narrative == nil {
		missing = append(missing, "narrative adapter")
	}
	if deps.Vision == nil {
		missing = append(missing, "vision adapter")
	}
	if deps.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}
	if deps.Tracker == nil {
		missing = append(missing, "tracker")
	}
	if len(missing) > 0 {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "pipeline is missing: "+strings.Join(missing, ", "))
	}
	if deps.Reconciler == nil {
		deps.Reconciler = reconcile.New(reconcile.DefaultOptions())
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = PolicyBestEffort
	}
	if opts.SampleIntervalMs <= 0 {
		opts.SampleIntervalMs = DefaultOptions().SampleIntervalMs
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultOptions().MaxConcurrent
	}
	return &Orchestrator{
		deps: deps,
		opts: opts,
		log:  deps.Logger,
		sem:  make(chan struct{}, opts.MaxConcurrent),
		now:  time.Now,
	}, nil
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Submit registers a job and starts it in the background. It returns as
// soon as the job is tracked. The job outlives ctx: cancelling the caller
// does not stop a running analysis.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (core.JobID, error) {
	job, err := o.newJob(req)
	if err != nil {
		return "", err
	}
	if err := o.deps.Tracker.Start(job.View()); err != nil {
		return "", err
	}
	o.deps.Metrics.JobSubmitted()
	o.log.WithJob(string(job.ID)).Info("job submitted", "source", job.SourceRef, "name", job.Name)

	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sem <- struct{}{}
		defer func() { <-o.sem }()
		o.execute(runCtx, job)
	}()
	return job.ID, nil
}

// Run executes a job synchronously and returns its terminal snapshot.
func (o *Orchestrator) Run(ctx context.Context, req SubmitRequest) (core.ProgressView, error) {
	job, err := o.newJob(req)
	if err != nil {
		return core.ProgressView{}, err
	}
	if err := o.deps.Tracker.Start(job.View()); err != nil {
		return core.ProgressView{}, err
	}
	o.deps.Metrics.JobSubmitted()
	o.execute(ctx, job)
	return o.deps.Tracker.Get(ctx, job.ID)
}

// Poll returns the current snapshot of a job.
func (o *Orchestrator) Poll(ctx context.Context, id core.JobID) (core.ProgressView, error) {
	return o.deps.Tracker.Get(ctx, id)
}

// Wait blocks until every submitted job reached a terminal state or ctx
// is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) newJob(req SubmitRequest) (*core.Job, error) {
	ref := strings.TrimSpace(req.SourceRef)
	if ref == "" {
		return nil, core.ErrValidation(core.CodeEmptySource, "source reference is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = nameFromSource(ref)
	}
	if len(name) > core.MaxJobNameLength {
		return nil, core.ErrValidation(core.CodeInvalidJobID,
			fmt.Sprintf("name is longer than %d characters", core.MaxJobNameLength))
	}

	id := core.JobID(strings.TrimSpace(req.ID))
	if id == "" {
		id = NewJobID(name, o.now())
	} else if err := ValidateJobID(id); err != nil {
		return nil, err
	}
	return core.NewJob(id, name, ref), nil
}
