package providers

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

// CallFunc performs one raw provider call.
type CallFunc[T any] func(ctx context.Context, ref string, opts core.CallOptions) (T, error)

// Callbacks receive lifecycle notifications for one invocation. Any field
// may be nil.
type Callbacks struct {
	Started  func(provider core.ProviderName)
	Retrying func(provider core.ProviderName, attempt int, err error, delay time.Duration)
	Finished func(provider core.ProviderName, failure *core.ProviderFailure, attempts int)
}

type adapterConfig struct {
	retry   *service.RetryPolicy
	limiter *service.RateLimiter
	metrics *metrics.Collector
	logger  *logging.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*adapterConfig)

// WithRetry sets the retry envelope.
func WithRetry(p *service.RetryPolicy) AdapterOption {
	return func(c *adapterConfig) { c.retry = p }
}

// WithLimiter throttles calls.
func WithLimiter(l *service.RateLimiter) AdapterOption {
	return func(c *adapterConfig) { c.limiter = l }
}

// WithMetrics records call outcomes.
func WithMetrics(m *metrics.Collector) AdapterOption {
	return func(c *adapterConfig) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) AdapterOption {
	return func(c *adapterConfig) { c.logger = l }
}

// Adapter wraps a raw provider call with rate limiting, classification and
// the retry envelope. Invoke never returns an error: every outcome is a
// ProviderResult.
type Adapter[T any] struct {
	name core.ProviderName
	call CallFunc[T]
	cfg  adapterConfig
}

// NewAdapter creates an adapter for call.
func NewAdapter[T any](name core.ProviderName, call CallFunc[T], opts ...AdapterOption) *Adapter[T] {
	cfg := adapterConfig{
		retry:  service.DefaultRetryPolicy(),
		logger: logging.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Adapter[T]{name: name, call: call, cfg: cfg}
}

// Name returns the provider name.
func (a *Adapter[T]) Name() core.ProviderName {
	return a.name
}

// Invoke calls the provider at most MaxAttempts times.
func (a *Adapter[T]) Invoke(ctx context.Context, ref string, opts core.CallOptions, cb Callbacks) core.ProviderResult[T] {
	start := time.Now()
	logger := a.cfg.logger.WithProvider(string(a.name))
	if cb.Started != nil {
		cb.Started(a.name)
	}

	var (
		payload  T
		attempts int
	)
	call := func(ctx context.Context) error {
		attempts++
		if err := a.cfg.limiter.Acquire(ctx); err != nil {
			return err
		}
		out, err := a.call(ctx, ref, opts)
		if err != nil {
			return Classify(a.name, err)
		}
		payload = out
		return nil
	}
	notify := func(attempt int, err error, delay time.Duration) {
		logger.Warn("provider call failed, retrying", "attempt", attempt, "error", err, "retry_in", delay)
		a.cfg.metrics.ProviderRetry(string(a.name))
		if cb.Retrying != nil {
			cb.Retrying(a.name, attempt, err, delay)
		}
	}

	err := a.cfg.retry.ExecuteWithNotify(ctx, call, notify)

	var result core.ProviderResult[T]
	outcome := "success"
	if err == nil {
		result = core.Success(a.name, payload, attempts)
	} else {
		kind := failureKind(err)
		outcome = string(kind)
		result = core.Failure[T](a.name, kind, failureMessage(err), attempts)
		logger.Error("provider call failed", "kind", kind, "attempts", attempts, "error", err)
	}
	a.cfg.metrics.ProviderCall(string(a.name), outcome, time.Since(start))
	if cb.Finished != nil {
		cb.Finished(a.name, result.Failure, attempts)
	}
	return result
}

func failureKind(err error) core.FailureKind {
	switch {
	case service.IsRetryExhausted(err):
		return core.FailureExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return core.FailureCanceled
	default:
		return core.FailurePermanent
	}
}

func failureMessage(err error) string {
	var exhausted *service.RetryExhaustedError
	if errors.As(err, &exhausted) && exhausted.LastErr != nil {
		err = exhausted.LastErr
	}
	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr.Message != "" {
		return domErr.Message
	}
	return err.Error()
}

// NarrativeAdapter wraps a narrative caller.
func NarrativeAdapter(c core.NarrativeCaller, opts ...AdapterOption) *Adapter[string] {
	return NewAdapter[string](c.Name(), c.Call, opts...)
}

// VisionAdapter wraps a vision caller.
func VisionAdapter(c core.VisionCaller, opts ...AdapterOption) *Adapter[*core.VisionFrames] {
	return NewAdapter[*core.VisionFrames](c.Name(), c.Call, opts...)
}
