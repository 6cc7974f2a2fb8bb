package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrRateLimited marks a 429 or provider-level rate limit. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout marks a request that exceeded its deadline. Retryable.
	ErrTimeout = errors.New("request timed out")
	// ErrServer marks a 5xx or transient upstream failure. Retryable.
	ErrServer = errors.New("server error")
	// ErrAuth marks rejected or missing credentials. Fatal for the run.
	ErrAuth = errors.New("authentication failed")
	// ErrRequest marks a request the provider refused. Not retryable.
	ErrRequest = errors.New("request rejected")
	// ErrEmptyResponse marks a response with no choices. Retryable.
	ErrEmptyResponse = errors.New("empty response")
)

// APIError is a classified provider failure.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Kind       error // one of the sentinel errors above
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// newStatusError classifies an HTTP status code.
func newStatusError(provider string, status int, message string, header http.Header) *APIError {
	e := &APIError{Provider: provider, StatusCode: status, Message: message, Kind: kindForStatus(status)}
	if header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	return e
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout || status == 524:
		return ErrTimeout
	case status == http.StatusRequestEntityTooLarge || status == http.StatusUnprocessableEntity:
		// Usually transient upstream caching or routing problems.
		return ErrServer
	case status >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

// classifyTransport maps network and context failures onto sentinel kinds.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Provider: provider, Message: err.Error(), Kind: ErrTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Provider: provider, Message: err.Error(), Kind: ErrTimeout}
	}
	return &APIError{Provider: provider, Message: err.Error(), Kind: ErrServer}
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrEmptyResponse)
}

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

// ErrorKind returns a short label for err, used in call records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServer):
		return "server_error"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrRequest):
		return "request_error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unknown"
	}
}

// RetryAfter extracts a server-provided retry hint, or zero.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
