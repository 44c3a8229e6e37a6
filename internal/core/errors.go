package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation  ErrorCategory = "validation"  // Invalid input
	ErrCatProvider    ErrorCategory = "provider"    // External analysis provider failure
	ErrCatTimeout     ErrorCategory = "timeout"     // Operation timed out
	ErrCatRateLimit   ErrorCategory = "rate_limit"  // API rate limited
	ErrCatAuth        ErrorCategory = "auth"        // Authentication failure
	ErrCatNetwork     ErrorCategory = "network"     // Network connectivity
	ErrCatSynthesis   ErrorCategory = "synthesis"   // Generation output unusable
	ErrCatPersistence ErrorCategory = "persistence" // Store write/read failure
	ErrCatState       ErrorCategory = "state"       // Illegal job transition
	ErrCatNotFound    ErrorCategory = "not_found"   // Resource not found
	ErrCatInternal    ErrorCategory = "internal"    // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTransientProvider creates a retryable provider error (5xx, malformed
// but recoverable responses, dropped connections).
func ErrTransientProvider(provider ProviderName, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProvider,
		Code:      CodeProviderTransient,
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"provider": string(provider)},
	}
}

// ErrPermanentProvider creates a provider error that must not be retried.
func ErrPermanentProvider(provider ProviderName, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProvider,
		Code:      CodeProviderPermanent,
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"provider": string(provider)},
	}
}

// ErrMalformedResponse creates a retryable error for a provider body that
// could not be decoded.
func ErrMalformedResponse(provider ProviderName, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProvider,
		Code:      CodeMalformedResponse,
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"provider": string(provider)},
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrSynthesis creates a synthesis failure. The caller substitutes the
// fallback merge.
func ErrSynthesis(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatSynthesis,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrPersistence creates a persistence error.
func ErrPersistence(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatPersistence,
		Code:      CodePersistenceFailed,
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrInternal creates an error for unexpected failures such as panics.
func ErrInternal(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatInternal,
		Code:      CodeInternal,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeJobNotFound       = "JOB_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeJobTerminal       = "JOB_TERMINAL"
	CodeJobRunning        = "JOB_RUNNING"

	// Provider error codes
	CodeProviderTransient = "PROVIDER_TRANSIENT"
	CodeProviderPermanent = "PROVIDER_PERMANENT"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeRetryExhausted    = "RETRY_EXHAUSTED"

	// Pipeline stage codes
	CodeNormalizationDefaulted = "NORMALIZATION_DEFAULTED"
	CodeSynthesisUnparseable   = "SYNTHESIS_UNPARSEABLE"
	CodeSynthesisFailed        = "SYNTHESIS_FAILED"
	CodeValidationSkipped      = "VALIDATION_SKIPPED"
	CodePersistenceFailed      = "PERSISTENCE_FAILED"
	CodeStrictModeAbort        = "STRICT_MODE_ABORT"
	CodeInternal               = "INTERNAL"

	// Validation error codes
	CodeEmptySource   = "EMPTY_SOURCE"
	CodeInvalidSource = "INVALID_SOURCE"
	CodeInvalidJobID  = "INVALID_JOB_ID"
	CodeInvalidConfig = "INVALID_CONFIG"
)

// MaxJobNameLength bounds the human-readable job name.
const MaxJobNameLength = 256
