package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/providers"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/normalize"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/progress"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/synthesis"
)

const persistTimeout = 30 * time.Second

// jobRun holds the state of one execution. errs is only touched by the
// goroutine running the job.
type jobRun struct {
	o     *Orchestrator
	id    core.JobID
	ref   string
	start time.Time
	log   *logging.Logger
	errs  map[string]string
}

func (o *Orchestrator) execute(ctx context.Context, job *core.Job) {
	r := &jobRun{
		o:     o,
		id:    job.ID,
		ref:   job.SourceRef,
		start: o.now(),
		log:   o.log.WithJob(string(job.ID)),
		errs:  map[string]string{},
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("job panicked", "panic", p, "stack", string(debug.Stack()))
			r.fail(ctx, core.ErrInternal(fmt.Sprintf("panic: %v", p)))
		}
	}()
	if err := r.run(ctx); err != nil {
		r.fail(ctx, err)
	}
}

func (r *jobRun) run(ctx context.Context) error {
	deps := r.o.deps

	r.apply(progress.MilestoneDownloadStarted)
	src, err := r.prepare(ctx)
	if err != nil {
		return err
	}
	defer r.cleanup(src.handle)

	narrativeRes, visionRes := r.analyze(ctx, src)
	r.apply(progress.MilestoneProvidersJoined)

	narrative, vision, err := r.normalize(narrativeRes, visionRes)
	if err != nil {
		return err
	}

	in := synthesis.Prepare(string(r.id), narrative, vision, deps.Reconciler)
	for k, v := range r.errs {
		in.Errors[k] = v
	}
	deps.Metrics.Contradictions(len(in.Contradictions))

	r.apply(progress.MilestoneSynthesisStarted)
	report, outcome := deps.Synthesizer.Synthesize(ctx, in)
	r.record(outcome, core.DetailSynthesisError)

	r.apply(progress.MilestoneValidationStarted)
	if deps.Validator != nil {
		report, outcome = deps.Validator.Validate(ctx, report)
		r.record(outcome, core.DetailValidationError)
	}

	return r.complete(ctx, report)
}

// source is the video as the providers see it. A non-nil skipVision
// means vision cannot run and carries the reason.
type source struct {
	handle     *core.LocalHandle
	visionURL  string
	skipVision error
}

// prepare downloads and stages the source for the vision provider. A
// remote source that cannot be downloaded or staged only skips vision; the
// narrative provider still reads it by reference. A reference that is
// unusable altogether fails the job.
func (r *jobRun) prepare(ctx context.Context) (source, error) {
	handle, err := r.o.deps.Fetcher.Fetch(ctx, r.ref)
	if err != nil {
		if !isURL(r.ref) {
			return source{}, err
		}
		r.log.Warn("download failed, skipping vision", "error", err)
		r.apply(progress.MilestoneDownloadComplete)
		r.apply(progress.MilestoneUploadComplete)
		return source{
			handle:     &core.LocalHandle{Origin: r.ref},
			skipVision: fmt.Errorf("video could not be downloaded: %w", err),
		}, nil
	}
	r.apply(progress.MilestoneDownloadComplete)

	src := source{handle: handle}
	src.visionURL, err = r.stage(ctx, handle)
	r.apply(progress.MilestoneUploadComplete)
	switch {
	case err == nil:
	case core.IsCategory(err, core.ErrCatValidation) && !isURL(handle.Origin):
		r.cleanup(handle)
		return source{}, err
	default:
		src.skipVision = fmt.Errorf("video could not be staged: %w", err)
	}
	return src, nil
}

func (r *jobRun) cleanup(h *core.LocalHandle) {
	if h == nil || h.Cleanup == nil {
		return
	}
	if err := h.Cleanup(); err != nil {
		r.log.Warn("removing local copy failed", "path", h.Path, "error", err)
	}
}

// stage publishes the local copy for the vision provider. Remote sources
// without a stager are passed through unchanged.
func (r *jobRun) stage(ctx context.Context, h *core.LocalHandle) (string, error) {
	if r.o.deps.Stager == nil {
		if isURL(h.Origin) {
			return h.Origin, nil
		}
		return "", core.ErrValidation(core.CodeInvalidSource, "local file needs a staging backend")
	}
	url, err := r.o.deps.Stager.Stage(ctx, h)
	if err != nil {
		r.log.Warn("staging failed", "error", err)
		return "", err
	}
	return url, nil
}

// analyze runs both providers concurrently and waits for both. Neither
// goroutine returns an error: each outcome is carried by its result.
func (r *jobRun) analyze(ctx context.Context, src source) (core.ProviderResult[string], core.ProviderResult[*core.VisionFrames]) {
	deps := r.o.deps
	r.apply(progress.MilestoneProviderStarted)

	narrativeRef := src.visionURL
	if narrativeRef == "" {
		narrativeRef = src.handle.Origin
	}
	prompt := r.narrativePrompt(narrativeRef)
	cb := r.callbacks()

	var (
		g            errgroup.Group
		narrativeRes core.ProviderResult[string]
		visionRes    core.ProviderResult[*core.VisionFrames]
	)
	g.Go(func() error {
		narrativeRes = deps.Narrative.Invoke(ctx, narrativeRef, core.CallOptions{Prompt: prompt}, cb)
		return nil
	})
	g.Go(func() error {
		if src.skipVision != nil {
			visionRes = core.Failure[*core.VisionFrames](deps.Vision.Name(), core.FailurePermanent,
				src.skipVision.Error(), 0)
			cb.Finished(deps.Vision.Name(), visionRes.Failure, 0)
			return nil
		}
		visionRes = deps.Vision.Invoke(ctx, src.visionURL, core.CallOptions{SampleIntervalMs: r.o.opts.SampleIntervalMs}, cb)
		return nil
	})
	_ = g.Wait()
	return narrativeRes, visionRes
}

func (r *jobRun) narrativePrompt(ref string) string {
	if r.o.deps.Prompts == nil {
		return ""
	}
	prompt, err := r.o.deps.Prompts.RenderNarrative(service.NarrativeParams{
		VideoRef: ref,
		IsURL:    isURL(ref),
	})
	if err != nil {
		r.log.Warn("rendering narrative prompt failed, using default", "error", err)
		return ""
	}
	return prompt
}

func (r *jobRun) callbacks() providers.Callbacks {
	tracker := r.o.deps.Tracker
	events := r.o.deps.Events
	return providers.Callbacks{
		Started: func(p core.ProviderName) {
			r.setProvider(p, core.ProviderStateRunning)
			if events != nil {
				events.PublishProviderState(r.id, p, core.ProviderStateRunning, 1, "")
			}
		},
		Retrying: func(p core.ProviderName, attempt int, err error, delay time.Duration) {
			if events != nil {
				events.PublishProviderState(r.id, p, core.ProviderStateRunning, attempt+1,
					fmt.Sprintf("retrying in %s: %v", delay.Round(time.Millisecond), err))
			}
		},
		Finished: func(p core.ProviderName, failure *core.ProviderFailure, attempts int) {
			state, msg := core.ProviderStateComplete, ""
			if failure != nil {
				state, msg = core.ProviderStateFailed, failure.Error()
			}
			r.setProvider(p, state)
			if _, err := tracker.Apply(r.id, progress.MilestoneProviderComplete); err != nil {
				r.log.Warn("progress update failed", "milestone", progress.MilestoneProviderComplete, "error", err)
			}
			if events != nil {
				events.PublishProviderState(r.id, p, state, attempts, msg)
			}
		},
	}
}

func (r *jobRun) setProvider(p core.ProviderName, state core.ProviderState) {
	_, err := r.o.deps.Tracker.Update(r.id, func(v *core.ProgressView) error {
		if v.Providers == nil {
			v.Providers = make(map[core.ProviderName]core.ProviderState, 2)
		}
		v.Providers[p] = state
		return nil
	})
	if err != nil {
		r.log.Warn("provider state update failed", "provider", p, "error", err)
	}
}

// normalize turns both results into canonical payloads, substituting the
// fallback payload for a failed provider. Under the strict policy any
// failure aborts the job instead.
func (r *jobRun) normalize(nr core.ProviderResult[string], vr core.ProviderResult[*core.VisionFrames]) (normalize.NarrativeMetrics, normalize.VisionMetrics, error) {
	deps := r.o.deps
	var failed []string

	narrative := FallbackNarrative()
	if nr.OK() {
		narrative = normalize.Narrative(nr.Payload)
	} else {
		r.errs[core.DetailNarrativeError] = nr.Failure.Error()
		failed = append(failed, string(core.ProviderNarrative))
		r.log.Warn("narrative provider failed, using fallback", "kind", nr.Failure.Kind, "attempts", nr.Failure.Attempts)
	}

	vision := FallbackVision()
	if vr.OK() && vr.Payload != nil {
		vision = normalize.Vision(*vr.Payload, r.o.opts.Thresholds)
	} else {
		msg := "vision provider returned no frames"
		if vr.Failure != nil {
			msg = vr.Failure.Error()
		}
		r.errs[core.DetailVisionError] = msg
		failed = append(failed, string(core.ProviderVision))
		r.log.Warn("vision provider failed, using fallback", "error", msg)
	}

	if len(failed) > 0 && r.o.opts.FailurePolicy == PolicyStrict {
		return narrative, vision, &core.DomainError{
			Category: core.ErrCatProvider,
			Code:     core.CodeStrictModeAbort,
			Message:  fmt.Sprintf("provider failed under strict policy: %v", failed),
		}
	}

	deps.Metrics.DefaultedMetrics(string(core.ProviderNarrative), len(narrative.DefaultedNames()))
	deps.Metrics.DefaultedMetrics(string(core.ProviderVision), len(vision.DefaultedNames()))
	return narrative, vision, nil
}

func (r *jobRun) record(out synthesis.Outcome, key string) {
	r.o.deps.Metrics.SynthesisOutcome(string(out.Phase), string(out.Status))
	if out.Err != nil {
		r.errs[key] = out.Err.Error()
		r.log.Warn("generation pass degraded", "phase", out.Phase, "status", out.Status, "error", out.Err)
	}
}

// complete stores the report, then moves the job to completed. The store
// is written exactly once, with the terminal record.
func (r *jobRun) complete(ctx context.Context, report *core.UnifiedReport) error {
	tracker := r.o.deps.Tracker
	r.apply(progress.MilestonePersisting)

	view, err := tracker.Update(r.id, func(v *core.ProgressView) error {
		v.Result = report
		v.Error = r.errorRecord()
		return nil
	})
	if err != nil {
		return err
	}

	final := view
	final.Status = core.JobStatusCompleted
	final.Stage = core.StageDone
	final.StageName = core.StageDone.String()
	final.ProgressPercent = 100
	final.UpdatedAt = r.o.now()
	if err := r.persist(ctx, final); err != nil {
		r.errs[core.DetailPersistenceError] = err.Error()
		if _, uerr := tracker.Update(r.id, func(v *core.ProgressView) error {
			v.Error = r.errorRecord()
			return nil
		}); uerr != nil {
			r.log.Warn("recording persistence error failed", "error", uerr)
		}
	}

	if _, err := tracker.Apply(r.id, progress.MilestoneCompleted); err != nil {
		return err
	}
	elapsed := r.o.now().Sub(r.start)
	r.o.deps.Metrics.JobFinished(string(core.JobStatusCompleted), elapsed)
	r.log.Info("job completed", "duration", elapsed, "degraded", len(r.errs) > 0)
	return nil
}

// fail moves the job to error and stores the terminal record. A job that
// is already terminal is left alone.
func (r *jobRun) fail(ctx context.Context, cause error) {
	tracker := r.o.deps.Tracker
	code, msg := errorCode(cause), errorMessage(cause)

	_, err := tracker.Update(r.id, func(v *core.ProgressView) error {
		v.Error = r.errorRecord()
		if v.Error == nil {
			v.Error = &core.ErrorRecord{}
		}
		v.Error.Code = code
		v.Error.Message = msg
		return nil
	})
	if err != nil {
		r.log.Warn("cannot fail job", "error", err, "cause", cause)
		return
	}
	view, err := tracker.Apply(r.id, progress.MilestoneError)
	if err != nil {
		r.log.Warn("cannot fail job", "error", err, "cause", cause)
		return
	}
	if perr := r.persist(ctx, view); perr != nil {
		r.log.Error("storing failed job", "error", perr)
	}
	elapsed := r.o.now().Sub(r.start)
	r.o.deps.Metrics.JobFinished(string(core.JobStatusError), elapsed)
	r.log.Error("job failed", "code", code, "error", msg, "duration", elapsed)
}

func (r *jobRun) persist(ctx context.Context, view core.ProgressView) error {
	if r.o.deps.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.o.deps.Store.Put(ctx, view.Record()); err != nil {
		r.log.Error("persisting job failed", "error", err)
		return err
	}
	return nil
}

func (r *jobRun) apply(m progress.Milestone) {
	if _, err := r.o.deps.Tracker.Apply(r.id, m); err != nil {
		r.log.Warn("progress update failed", "milestone", m, "error", err)
	}
}

func (r *jobRun) errorRecord() *core.ErrorRecord {
	if len(r.errs) == 0 {
		return nil
	}
	rec := &core.ErrorRecord{Details: make(map[string]string, len(r.errs))}
	for k, v := range r.errs {
		rec.Details[k] = v
	}
	rec.Message = "completed with degraded inputs"
	return rec
}
