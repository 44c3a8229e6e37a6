// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service records. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Jobs
	jobsSubmitted   prometheus.Counter
	jobsFinished    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsInFlight    prometheus.Gauge
	stageTransition *prometheus.CounterVec

	// Providers
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerRetries  *prometheus.CounterVec

	// Reconciliation and synthesis
	contradictions   prometheus.Counter
	defaultedMetrics *prometheus.CounterVec
	synthesisOutcome *prometheus.CounterVec

	// Store and cache
	storeOps    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewCollector registers all metrics on a private registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.jobsSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "Total number of submitted analysis jobs",
	})
	c.jobsFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that reached a terminal status",
		},
		[]string{"status"},
	)
	c.jobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "End-to-end job duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)
	c.jobsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Number of jobs currently running",
	})
	c.stageTransition = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_stage_transitions_total",
			Help:      "Total number of stage transitions",
		},
		[]string{"stage"},
	)

	c.providerCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of provider invocations by outcome",
		},
		[]string{"provider", "outcome"},
	)
	c.providerDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider invocation duration including retries",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)
	c.providerRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of provider retry attempts",
		},
		[]string{"provider"},
	)

	c.contradictions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contradictions_total",
		Help:      "Total number of recorded source contradictions",
	})
	c.defaultedMetrics = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaulted_metrics_total",
			Help:      "Total number of metrics substituted with neutral defaults",
		},
		[]string{"source"},
	)
	c.synthesisOutcome = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_outcomes_total",
			Help:      "Synthesis and validation outcomes",
		},
		[]string{"phase", "outcome"},
	)

	c.storeOps = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Result store operations by outcome",
		},
		[]string{"op", "outcome"},
	)
	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Result cache hits",
	})
	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Result cache misses",
	})

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// JobSubmitted records a new job.
func (c *Collector) JobSubmitted() {
	if c == nil {
		return
	}
	c.jobsSubmitted.Inc()
	c.jobsInFlight.Inc()
}

// JobFinished records a terminal status.
func (c *Collector) JobFinished(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobsInFlight.Dec()
	c.jobsFinished.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

// StageReached records a stage transition.
func (c *Collector) StageReached(stage string) {
	if c == nil {
		return
	}
	c.stageTransition.WithLabelValues(stage).Inc()
}

// ProviderCall records a finished provider invocation.
func (c *Collector) ProviderCall(provider, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.providerCalls.WithLabelValues(provider, outcome).Inc()
	c.providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ProviderRetry records one retry attempt.
func (c *Collector) ProviderRetry(provider string) {
	if c == nil {
		return
	}
	c.providerRetries.WithLabelValues(provider).Inc()
}

// Contradictions adds n recorded contradictions.
func (c *Collector) Contradictions(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.contradictions.Add(float64(n))
}

// DefaultedMetrics adds n defaulted metrics for a source.
func (c *Collector) DefaultedMetrics(source string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.defaultedMetrics.WithLabelValues(source).Add(float64(n))
}

// SynthesisOutcome records a synthesis or validation result.
func (c *Collector) SynthesisOutcome(phase, outcome string) {
	if c == nil {
		return
	}
	c.synthesisOutcome.WithLabelValues(phase, outcome).Inc()
}

// StoreOp records a store operation.
func (c *Collector) StoreOp(op string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.storeOps.WithLabelValues(op, outcome).Inc()
}

// CacheHit records a cache hit.
func (c *Collector) CacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

// CacheMiss records a cache miss.
func (c *Collector) CacheMiss() {
	if c != nil {
		c.cacheMisses.Inc()
	}
}
