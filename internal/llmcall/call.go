// Package llmcall records every model attempt made during a run so token
// usage and failures can be reported afterwards.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/vellum/internal/providers"
)

// Call is one recorded model attempt.
type Call struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	LatencyMs int       `json:"latency_ms" yaml:"latency_ms"`

	// Batch context
	Batch   int   `json:"batch" yaml:"batch"`
	Attempt int   `json:"attempt" yaml:"attempt"`
	Pages   []int `json:"pages" yaml:"pages"`

	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`

	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens  int `json:"total_tokens" yaml:"total_tokens"`

	Success   bool   `json:"success" yaml:"success"`
	ErrorType string `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RecordOptions provides context for recording a call.
type RecordOptions struct {
	Batch       int
	Attempt     int
	Pages       []int
	Temperature float64
}

// FromChatResult creates a Call from a ChatResult. A nil result with a
// non-nil err still yields a failed record.
func FromChatResult(result *providers.ChatResult, err error, opts RecordOptions) *Call {
	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Batch:       opts.Batch,
		Attempt:     opts.Attempt,
		Pages:       append([]int(nil), opts.Pages...),
		Temperature: opts.Temperature,
	}

	if result != nil {
		call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		call.Provider = result.Provider
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.TotalTokens = result.TotalTokens
		call.Success = result.Success
		call.ErrorType = result.ErrorType
		call.Error = result.ErrorMessage
	}
	if err != nil {
		call.Success = false
		if call.ErrorType == "" {
			call.ErrorType = providers.ErrorKind(err)
		}
		if call.Error == "" {
			call.Error = err.Error()
		}
	}
	return call
}

// Usage returns the call's token accounting.
func (c *Call) Usage() providers.Usage {
	return providers.Usage{
		PromptTokens:     c.InputTokens,
		CompletionTokens: c.OutputTokens,
		TotalTokens:      c.TotalTokens,
	}
}
