package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// RetryPolicy defines retry behavior. MaxAttempts counts invocations, so a
// policy with MaxAttempts 3 calls the function at most three times.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration // jitter is drawn from [0, MaxJitter)
	Multiplier  float64

	randMu sync.Mutex
	rnd    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the provider retry envelope.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   500 * time.Millisecond,
		Multiplier:  2.0,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepContext,
	}
}

// RetryPolicyOption configures a retry policy.
type RetryPolicyOption func(*RetryPolicy)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.MaxAttempts = n
	}
}

// WithBaseDelay sets the initial delay.
func WithBaseDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.BaseDelay = d
	}
}

// WithMaxDelay sets the maximum delay.
func WithMaxDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.MaxDelay = d
	}
}

// WithJitter sets the upper bound of the additive jitter.
func WithJitter(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.MaxJitter = d
	}
}

// WithMultiplier sets the exponential multiplier.
func WithMultiplier(m float64) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.Multiplier = m
	}
}

// WithRandSeed makes jitter reproducible.
func WithRandSeed(seed int64) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.sleep = fn
	}
}

// NewRetryPolicy creates a new retry policy.
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := DefaultRetryPolicy()
	for _, opt := range opts {
		opt(p)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}

// RetryPolicyFromConfig builds a policy from the retry config section.
func RetryPolicyFromConfig(cfg config.RetryConfig, opts ...RetryPolicyOption) *RetryPolicy {
	base := []RetryPolicyOption{
		WithMaxDelay(config.Duration(cfg.MaxDelay, 30*time.Second)),
		WithBaseDelay(config.Duration(cfg.InitialDelay, 2*time.Second)),
		WithJitter(config.Duration(cfg.MaxJitter, 500*time.Millisecond)),
	}
	if cfg.MaxAttempts > 0 {
		base = append(base, WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.Multiplier > 0 {
		base = append(base, WithMultiplier(cfg.Multiplier))
	}
	return NewRetryPolicy(append(base, opts...)...)
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryNotifyFunc is called before each retry. attempt is the 1-based
// number of the attempt that just failed.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Execute runs the function with retry logic.
func (p *RetryPolicy) Execute(ctx context.Context, fn RetryableFunc) error {
	return p.ExecuteWithNotify(ctx, fn, nil)
}

// ExecuteWithNotify runs with retry and notifications. Non-retryable errors
// are returned as-is; running out of attempts returns *RetryExhaustedError.
func (p *RetryPolicy) ExecuteWithNotify(ctx context.Context, fn RetryableFunc, notify RetryNotifyFunc) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.CalculateDelay(attempt - 1)
		if notify != nil {
			notify(attempt, err, delay)
		}

		sleep := p.sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &RetryExhaustedError{
		Attempts: p.MaxAttempts,
		LastErr:  lastErr,
	}
}

// CalculateDelay returns the wait before retry k (0-based):
// BaseDelay*Multiplier^k plus jitter, capped at MaxDelay.
func (p *RetryPolicy) CalculateDelay(k int) time.Duration {
	delay := float64(p.CalculateDelayNoJitter(k))
	if p.MaxJitter > 0 {
		delay += p.float64() * float64(p.MaxJitter)
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// CalculateDelayNoJitter computes the delay without jitter (for testing).
func (p *RetryPolicy) CalculateDelayNoJitter(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(k))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (p *RetryPolicy) float64() float64 {
	p.randMu.Lock()
	defer p.randMu.Unlock()
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p.rnd.Float64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryExhaustedError indicates all retry attempts failed.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var target *RetryExhaustedError
	return errors.As(err, &target)
}
