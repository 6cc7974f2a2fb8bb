package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatCompletionJSON(`[{"page_number":1}]`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Hello"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != `[{"page_number":1}]` {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 150 {
			t.Errorf("TotalTokens = %d, want 150", result.TotalTokens)
		}
	})

	t.Run("vision message with images", func(t *testing.T) {
		var received openRouterRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&received)
			json.NewEncoder(w).Encode(chatCompletionJSON("ok"))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "What is on this page?", Images: [][]byte{[]byte("a"), []byte("b")}}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		parts, ok := received.Messages[0].Content.([]any)
		if !ok {
			t.Fatalf("content = %T, want multipart", received.Messages[0].Content)
		}
		if len(parts) != 3 {
			t.Errorf("parts = %d, want 3 (text + 2 images)", len(parts))
		}
	})

	t.Run("rate limit carries retry-after", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("error = %v, want ErrRateLimited", err)
		}
		if got := RetryAfter(err); got != 7*time.Second {
			t.Errorf("RetryAfter = %v, want 7s", got)
		}
	})

	t.Run("upstream error in body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"overloaded","code":"overloaded"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if !errors.Is(err, ErrServer) {
			t.Errorf("error = %v, want ErrServer", err)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"x","choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if !errors.Is(err, ErrEmptyResponse) || !IsRetryable(err) {
			t.Errorf("error = %v, want retryable ErrEmptyResponse", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(ctx, &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}
