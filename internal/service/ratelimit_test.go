package service

import (
	"context"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
)

func TestRateLimiter_Burst(t *testing.T) {
	r := NewRateLimiter(RateLimiterConfig{PerMinute: 1, Burst: 2})

	if !r.TryAcquire() || !r.TryAcquire() {
		t.Fatal("expected burst of 2 tokens")
	}
	if r.TryAcquire() {
		t.Error("expected third acquire to fail")
	}
}

func TestRateLimiter_AcquireRespectsContext(t *testing.T) {
	r := NewRateLimiter(RateLimiterConfig{PerMinute: 1, Burst: 1})
	_ = r.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Acquire(ctx); err == nil {
		t.Error("expected Acquire to fail when the next token is a minute away")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	r := NewRateLimiter(RateLimiterConfig{PerMinute: 0})
	for i := 0; i < 100; i++ {
		if !r.TryAcquire() {
			t.Fatalf("acquire %d failed on unlimited limiter", i)
		}
	}
}

func TestRateLimiter_NilIsNoop(t *testing.T) {
	var r *RateLimiter
	if err := r.Acquire(context.Background()); err != nil {
		t.Errorf("nil limiter Acquire() = %v", err)
	}
	if !r.TryAcquire() {
		t.Error("nil limiter should always allow")
	}
}

func TestRateLimiterRegistry_FromConfig(t *testing.T) {
	reg := NewRateLimiterRegistryFromConfig(config.RateLimitsConfig{
		Narrative: config.RateLimitConfig{PerMinute: 10, Burst: 3},
		Vision:    config.RateLimitConfig{PerMinute: 30, Burst: 8},
	})

	if got := reg.Get("vision").Config().Burst; got != 8 {
		t.Errorf("vision burst = %d, want 8", got)
	}
	if reg.Get("narrative") != reg.Get("narrative") {
		t.Error("registry should return the same limiter instance")
	}
	if got := reg.Get("unknown").Config(); got != DefaultRateLimiterConfig() {
		t.Errorf("unknown provider config = %+v, want default", got)
	}

	status := reg.Status()
	if _, ok := status["vision"]; !ok {
		t.Error("expected vision in status")
	}

	reg.SetConfig("vision", RateLimiterConfig{PerMinute: 1, Burst: 1})
	if got := reg.Get("vision").Config().Burst; got != 1 {
		t.Errorf("vision burst after SetConfig = %d, want 1", got)
	}
}
