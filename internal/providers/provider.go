// Package providers implements clients for vision-capable chat models.
//
// Clients make exactly one attempt per Chat call. Retry policy lives with the
// caller so it can be tracked per batch; clients only classify failures.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient sends chat requests to a model.
type LLMClient interface {
	// Chat sends a single chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "groq").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string   `json:"role"` // "system", "user", "assistant"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"` // JPEG bytes, sent as data URLs
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_object" or "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// JSONObject requests free-form JSON output.
var JSONObject = &ResponseFormat{Type: "json_object"}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Usage is the token accounting for one or more calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// Add accumulates another usage record.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Usage returns the token counts of the result.
func (r *ChatResult) Usage() Usage {
	if r == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		TotalTokens:      r.TotalTokens,
	}
}

// failed fills the error fields of a result from a classified error.
func (r *ChatResult) failed(err error, start time.Time) *ChatResult {
	r.Success = false
	r.ErrorType = ErrorKind(err)
	r.ErrorMessage = err.Error()
	r.ExecutionTime = time.Since(start)
	return r
}
