package diagnostics

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Thresholds mark the server degraded. Zero disables a check.
type Thresholds struct {
	MemPercent float64
	// MinFreeGB is the free space the work directory needs for downloads.
	MinFreeGB  float64
	Goroutines int
}

// DefaultThresholds returns conservative limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemPercent: 95,
		MinFreeGB:  1,
		Goroutines: 10000,
	}
}

// Sampler produces host readings. *HostSampler implements it.
type Sampler interface {
	Sample(ctx context.Context) HostSample
}

// Process captures Go runtime state.
type Process struct {
	Goroutines  int           `json:"goroutines"`
	HeapAllocMB float64       `json:"heap_alloc_mb"`
	HeapInUseMB float64       `json:"heap_in_use_mb"`
	NumGC       uint32        `json:"num_gc"`
	Uptime      time.Duration `json:"uptime_ns"`
}

// Report is the body of a health check.
type Report struct {
	Status   string     `json:"status"`
	Time     time.Time  `json:"time"`
	Version  string     `json:"version,omitempty"`
	Process  Process    `json:"process"`
	Host     HostSample `json:"host"`
	Warnings []string   `json:"warnings,omitempty"`
}

// HealthChecker builds health reports.
type HealthChecker struct {
	sampler    Sampler
	thresholds Thresholds
	version    string
	started    time.Time
	now        func() time.Time
}

// NewHealthChecker creates a checker. A nil sampler reports process state
// only.
func NewHealthChecker(sampler Sampler, thresholds Thresholds, version string) *HealthChecker {
	return &HealthChecker{
		sampler:    sampler,
		thresholds: thresholds,
		version:    version,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Check samples the host and the runtime.
func (h *HealthChecker) Check(ctx context.Context) Report {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := h.now()
	r := Report{
		Status:  StatusHealthy,
		Time:    now.UTC(),
		Version: h.version,
		Process: Process{
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
			HeapInUseMB: float64(ms.HeapInuse) / 1024 / 1024,
			NumGC:       ms.NumGC,
			Uptime:      now.Sub(h.started),
		},
	}
	if h.sampler != nil {
		r.Host = h.sampler.Sample(ctx)
	}
	r.Warnings = h.warnings(r)
	if len(r.Warnings) > 0 {
		r.Status = StatusDegraded
	}
	return r
}

func (h *HealthChecker) warnings(r Report) []string {
	var out []string
	t := h.thresholds
	if t.MemPercent > 0 && r.Host.MemPercent >= t.MemPercent {
		out = append(out, fmt.Sprintf("memory usage %.1f%% exceeds %.0f%%", r.Host.MemPercent, t.MemPercent))
	}
	// a zero reading with a known path means the sample failed, not a full disk
	if t.MinFreeGB > 0 && r.Host.WorkDirPercent > 0 && r.Host.WorkDirFreeGB < t.MinFreeGB {
		out = append(out, fmt.Sprintf("work dir %s has %.2f GB free, below %.1f GB", r.Host.WorkDir, r.Host.WorkDirFreeGB, t.MinFreeGB))
	}
	if t.Goroutines > 0 && r.Process.Goroutines >= t.Goroutines {
		out = append(out, fmt.Sprintf("%d goroutines exceeds %d", r.Process.Goroutines, t.Goroutines))
	}
	return out
}
