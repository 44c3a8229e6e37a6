package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/pipeline"
)

const (
	maxSubmitBody   = 1 << 20
	defaultPageSize = 50
	maxPageSize     = 500
)

// SubmitAnalysisRequest is the body of POST /api/v1/analyses. URL is
// accepted as an alias of SourceRef.
type SubmitAnalysisRequest struct {
	SourceRef string `json:"source_ref"`
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
}

// SubmitAnalysisResponse acknowledges an accepted job.
type SubmitAnalysisResponse struct {
	JobID     core.JobID     `json:"job_id"`
	Status    core.JobStatus `json:"status"`
	StatusURL string         `json:"status_url"`
	EventsURL string         `json:"events_url"`
}

// ListAnalysesResponse is one page of stored analyses.
type ListAnalysesResponse struct {
	Analyses []core.JobSummary `json:"analyses"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func (s *Server) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ref := req.SourceRef
	if ref == "" {
		ref = req.URL
	}

	id, err := s.analyzer.Submit(r.Context(), pipeline.SubmitRequest{
		SourceRef: ref,
		Name:      req.Name,
		ID:        req.ID,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	statusURL := "/api/v1/analyses/" + string(id)
	w.Header().Set("Location", statusURL)
	s.respondJSON(w, http.StatusAccepted, SubmitAnalysisResponse{
		JobID:     id,
		Status:    core.JobStatusInitializing,
		StatusURL: statusURL,
		EventsURL: statusURL + "/events",
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	view, err := s.analyzer.Poll(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "result store not configured")
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	total, err := s.store.Count(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if items == nil {
		items = []core.JobSummary{}
	}
	s.respondJSON(w, http.StatusOK, ListAnalysesResponse{
		Analyses: items,
		Total:    total,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

func (s *Server) handleActiveAnalyses(w http.ResponseWriter, _ *http.Request) {
	views := []core.ProgressView{}
	if s.tracker != nil {
		views = append(views, s.tracker.Active()...)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": views,
		"count":    len(views),
	})
}

// handleDeleteAnalysis removes a finished job from the store and from
// memory. Running jobs cannot be deleted.
func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "result store not configured")
		return
	}

	tracked := false
	if s.tracker != nil {
		if view, found := s.tracker.Peek(id); found {
			if !view.Status.IsTerminal() {
				s.respondDomainError(w, core.ErrState(core.CodeJobRunning,
					fmt.Sprintf("job %s is still %s", id, view.Status)))
				return
			}
			tracked = true
		}
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if rec == nil && !tracked {
		s.respondDomainError(w, core.ErrNotFound("job", string(id)))
		return
	}
	if rec != nil {
		if err := s.store.Delete(r.Context(), id); err != nil {
			s.respondDomainError(w, err)
			return
		}
	}
	if s.tracker != nil {
		s.tracker.Forget(id)
	}
	s.logger.Info("analysis deleted", "job_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (core.JobID, bool) {
	id := core.JobID(chi.URLParam(r, "jobID"))
	if err := pipeline.ValidateJobID(id); err != nil {
		s.respondDomainError(w, err)
		return "", false
	}
	return id, true
}

func listOptions(r *http.Request) (core.ListOptions, error) {
	q := r.URL.Query()
	opts := core.ListOptions{Limit: defaultPageSize}

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := core.JobStatus(strings.ToLower(v))
		if !status.Valid() {
			return opts, fmt.Errorf("unknown status %q", v)
		}
		opts.Status = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
