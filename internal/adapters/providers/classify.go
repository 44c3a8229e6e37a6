// Package providers holds the clients for the external analysis
// providers and the retry envelope shared by them.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Classify converts a raw client error into a domain error whose
// Retryable flag drives the retry envelope. Rate limits, 5xx, network
// failures, timeouts and malformed bodies are transient; authentication
// failures and other 4xx responses are permanent. Cancellation is
// returned unchanged.
func Classify(provider core.ProviderName, err error) error {
	if err == nil {
		return nil
	}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrTimeout(fmt.Sprintf("%s call timed out", provider)).WithCause(err)
	}

	if code := statusCode(err); code != 0 {
		return classifyStatus(provider, code, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return core.ErrTimeout(fmt.Sprintf("%s call timed out", provider)).WithCause(err)
		}
		return core.ErrNetwork(err.Error()).WithCause(err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return core.ErrNetwork(err.Error()).WithCause(err)
	}

	return core.ErrPermanentProvider(provider, err.Error()).WithCause(err)
}

func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(provider core.ProviderName, code int, err error) error {
	msg := fmt.Sprintf("%s: %v", provider, err)
	switch {
	case code == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg).WithCause(err)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return core.ErrTimeout(msg).WithCause(err)
	case code >= 500:
		return core.ErrTransientProvider(provider, msg).WithCause(err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return core.ErrAuth(msg).WithCause(err)
	case code >= 400:
		return core.ErrPermanentProvider(provider, msg).WithCause(err)
	default:
		return core.ErrMalformedResponse(provider, msg).WithCause(err)
	}
}
