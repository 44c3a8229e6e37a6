// Package api provides the HTTP REST API for submitting and polling video
// analyses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/events"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/pipeline"
)

// Analyzer starts and polls jobs. *pipeline.Orchestrator implements it.
type Analyzer interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (core.JobID, error)
	Poll(ctx context.Context, id core.JobID) (core.ProgressView, error)
}

// JobTracker exposes in-memory job state. *progress.Tracker implements it.
type JobTracker interface {
	Peek(id core.JobID) (core.ProgressView, bool)
	Active() []core.ProgressView
	Forget(id core.JobID)
}

// Server provides HTTP REST API endpoints for analysis jobs.
type Server struct {
	router         chi.Router
	analyzer       Analyzer
	store          core.ResultStore
	tracker        JobTracker
	eventBus       *events.EventBus
	health         *diagnostics.HealthChecker
	metrics        *metrics.Collector
	logger         *logging.Logger
	corsOrigins    []string
	requestTimeout time.Duration
	heartbeat      time.Duration
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracker enables the active listing and guards deletes of running jobs.
func WithTracker(t JobTracker) ServerOption {
	return func(s *Server) {
		s.tracker = t
	}
}

// WithEventBus enables the SSE endpoints.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithHealthChecker adds host metrics to /health.
func WithHealthChecker(h *diagnostics.HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *metrics.Collector) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigins restricts the allowed origins. Empty allows all.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds non-streaming requests.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a new API server.
func NewServer(analyzer Analyzer, store core.ResultStore, opts ...ServerOption) *Server {
	s := &Server{
		analyzer:       analyzer,
		store:          store,
		logger:         logging.NewNop(),
		requestTimeout: 60 * time.Second,
		heartbeat:      15 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.handleSSE)

		r.Route("/analyses", func(r chi.Router) {
			// streaming runs without the request timeout
			r.Get("/{jobID}/events", s.handleJobSSE)

			timed := r.With(middleware.Timeout(s.requestTimeout))
			timed.Get("/", s.handleListAnalyses)
			timed.Post("/", s.handleSubmitAnalysis)
			timed.Get("/active", s.handleActiveAnalyses)
			timed.Get("/{jobID}", s.handleGetAnalysis)
			timed.Delete("/{jobID}", s.handleDeleteAnalysis)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests and records request metrics under
// the matched route pattern.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			d := time.Since(start)
			s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), d)
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", d,
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status": diagnostics.StatusHealthy,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	// degraded is still reported as 200 so load balancers keep routing
	s.respondJSON(w, http.StatusOK, s.health.Check(r.Context()))
}

// ListenAndServe starts the HTTP server and shuts it down gracefully
// when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
