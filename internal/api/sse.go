package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/events"
)

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// handleSSE streams every job event until the client disconnects.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.eventBus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := s.eventBus.Subscribe()
	defer s.eventBus.Unsubscribe(eventCh)

	setSSEHeaders(w)
	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr)
	s.sendSSEEvent(w, flusher, "connected", map[string]string{"status": "connected"})
	s.stream(w, r, flusher, eventCh, false)
}

// handleJobSSE streams the events of one job. The current snapshot is sent
// first, and the stream ends after the terminal event.
func (s *Server) handleJobSSE(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	if s.eventBus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// subscribe before polling so no transition falls between the two
	eventCh := s.eventBus.SubscribeJob(string(id))
	defer s.eventBus.Unsubscribe(eventCh)

	view, err := s.analyzer.Poll(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	setSSEHeaders(w)
	snapshot := events.NewJobProgressEvent(view)
	s.sendSSEEvent(w, flusher, snapshot.EventType(), snapshot)
	if snapshot.IsTerminal() {
		return
	}
	s.stream(w, r, flusher, eventCh, true)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, eventCh <-chan events.Event, stopOnTerminal bool) {
	ctx := r.Context()
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case event, ok := <-eventCh:
			if !ok {
				s.logger.Debug("event bus closed, ending SSE stream")
				return
			}
			s.sendSSEEvent(w, flusher, event.EventType(), event)
			if p, isProgress := event.(events.JobProgressEvent); stopOnTerminal && isProgress && p.IsTerminal() {
				return
			}
		}
	}
}

// sendSSEEvent writes an event to the SSE stream.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	// SSE format: event: type\ndata: json\n\n
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
