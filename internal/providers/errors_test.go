package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrAuth},
		{403, ErrAuth},
		{429, ErrRateLimited},
		{408, ErrTimeout},
		{504, ErrTimeout},
		{413, ErrServer},
		{422, ErrServer},
		{500, ErrServer},
		{503, ErrServer},
		{400, ErrRequest},
		{404, ErrRequest},
	}
	for _, tt := range tests {
		if got := kindForStatus(tt.status); got != tt.want {
			t.Errorf("kindForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
		kind      string
	}{
		{"rate limit", newStatusError("groq", 429, "slow down", nil), true, false, "rate_limited"},
		{"auth", newStatusError("groq", 401, "bad key", nil), false, true, "auth"},
		{"wrapped timeout", fmt.Errorf("batch 2: %w", &APIError{Kind: ErrTimeout}), true, false, "timeout"},
		{"deadline", classifyTransport("groq", context.DeadlineExceeded), true, false, "timeout"},
		{"network", classifyTransport("groq", errors.New("connection reset")), true, false, "server_error"},
		{"cancelled", classifyTransport("groq", context.Canceled), false, false, "cancelled"},
		{"request", newStatusError("groq", 400, "bad", nil), false, false, "request_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			if got := ErrorKind(tt.err); got != tt.kind {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter('') = %v", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("parseRetryAfter(date) = %v", got)
	}
}
