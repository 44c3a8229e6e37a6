package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	PerMinute int // Sustained calls per minute; <= 0 disables limiting
	Burst     int // Maximum bucket capacity
}

// DefaultRateLimiterConfig returns default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PerMinute: 60,
		Burst:     5,
	}
}

// RateLimiter wraps a token bucket limiter with the config that built it.
type RateLimiter struct {
	limiter *rate.Limiter
	cfg     RateLimiterConfig
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	limit := rate.Inf
	if cfg.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.PerMinute))
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
	}
}

// Acquire blocks until a token is available or context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// TryAcquire attempts to acquire a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	return r.limiter.Tokens()
}

// Config returns the configuration used to build the limiter.
func (r *RateLimiter) Config() RateLimiterConfig {
	return r.cfg
}

// RateLimiterRegistry manages one limiter per provider.
type RateLimiterRegistry struct {
	limiters map[string]*RateLimiter
	configs  map[string]RateLimiterConfig
	mu       sync.Mutex
}

// NewRateLimiterRegistry creates a new registry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		configs:  make(map[string]RateLimiterConfig),
	}
}

// NewRateLimiterRegistryFromConfig seeds the registry from the rate_limits section.
func NewRateLimiterRegistryFromConfig(cfg config.RateLimitsConfig) *RateLimiterRegistry {
	r := NewRateLimiterRegistry()
	r.configs["narrative"] = RateLimiterConfig(cfg.Narrative)
	r.configs["vision"] = RateLimiterConfig(cfg.Vision)
	r.configs["synthesis"] = RateLimiterConfig(cfg.Synthesis)
	return r
}

// Get returns the rate limiter for a provider.
func (r *RateLimiterRegistry) Get(name string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[name]; ok {
		return limiter
	}
	cfg, ok := r.configs[name]
	if !ok {
		cfg = DefaultRateLimiterConfig()
	}
	limiter := NewRateLimiter(cfg)
	r.limiters[name] = limiter
	return limiter
}

// SetConfig replaces the configuration for a provider.
func (r *RateLimiterRegistry) SetConfig(name string, cfg RateLimiterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[name] = cfg
	r.limiters[name] = NewRateLimiter(cfg)
}

// RateLimiterStatus contains status information.
type RateLimiterStatus struct {
	Available float64 `json:"available"`
	PerMinute int     `json:"per_minute"`
	Burst     int     `json:"burst"`
}

// Status returns limiter status for every provider seen so far.
func (r *RateLimiterRegistry) Status() map[string]RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := make(map[string]RateLimiterStatus, len(r.limiters))
	for name, limiter := range r.limiters {
		status[name] = RateLimiterStatus{
			Available: limiter.Available(),
			PerMinute: limiter.cfg.PerMinute,
			Burst:     limiter.cfg.Burst,
		}
	}
	return status
}
