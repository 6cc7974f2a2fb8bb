package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	Latency      time.Duration
	ResponseText string
	// Err, when set, is returned from every call.
	Err error
	// Respond, when set, produces the reply for the nth call (1-indexed).
	Respond func(req *ChatRequest, n int) (string, error)

	PromptTokens     int
	CompletionTokens int

	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText:     `{"pages": []}`,
		PromptTokens:     100,
		CompletionTokens: 50,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat returns the scripted reply.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	n := int(c.requestCount.Add(1))

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", n),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return result.failed(ctx.Err(), start), ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return result.failed(err, start), err
	}

	text, err := c.ResponseText, c.Err
	if c.Respond != nil {
		text, err = c.Respond(req, n)
	}
	if err != nil {
		return result.failed(err, start), err
	}

	result.Success = true
	result.Content = text
	result.PromptTokens = c.PromptTokens
	result.CompletionTokens = c.CompletionTokens
	result.TotalTokens = c.PromptTokens + c.CompletionTokens
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

var _ LLMClient = (*MockClient)(nil)
