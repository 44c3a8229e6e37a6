package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// codeStatus overrides the category mapping for specific codes.
var codeStatus = map[string]int{
	core.CodeInvalidConfig: http.StatusInternalServerError,
}

var categoryStatus = map[core.ErrorCategory]int{
	core.ErrCatValidation:  http.StatusUnprocessableEntity,
	core.ErrCatNotFound:    http.StatusNotFound,
	core.ErrCatState:       http.StatusConflict,
	core.ErrCatAuth:        http.StatusUnauthorized,
	core.ErrCatRateLimit:   http.StatusTooManyRequests,
	core.ErrCatTimeout:     http.StatusGatewayTimeout,
	core.ErrCatProvider:    http.StatusBadGateway,
	core.ErrCatNetwork:     http.StatusBadGateway,
	core.ErrCatSynthesis:   http.StatusBadGateway,
	core.ErrCatPersistence: http.StatusServiceUnavailable,
}

// statusForError maps a domain error onto an HTTP status. The second result
// is false when err carries no *core.DomainError.
func statusForError(err error) (int, *core.DomainError, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, nil, false
	}
	if status, ok := codeStatus[domErr.Code]; ok {
		return status, domErr, true
	}
	if status, ok := categoryStatus[domErr.Category]; ok {
		return status, domErr, true
	}
	return http.StatusInternalServerError, domErr, true
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps err onto a status and includes its code. Server
// side failures are logged; their messages still reach the client.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status, domErr, ok := statusForError(err)
	if !ok {
		s.logger.Error("unexpected handler error", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "code", domErr.Code)
	}
	s.respondJSON(w, status, errorResponse{Error: domErr.Message, Code: domErr.Code})
}
