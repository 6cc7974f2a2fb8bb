package providers

import (
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"default is groq", Config{APIKey: "k"}, GroqName, nil},
		{"openai", Config{Type: "openai", APIKey: "k"}, "openai", nil},
		{"openrouter", Config{Type: "OpenRouter", APIKey: "k"}, OpenRouterName, nil},
		{"mock needs no key", Config{Type: "mock"}, MockClientName, nil},
		{"missing key", Config{Type: "groq"}, "", ErrAuth},
		{"unknown", Config{Type: "carrier-pigeon", APIKey: "k"}, "", ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if client.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", client.Name(), tt.wantName)
			}
		})
	}
}

func TestModelName(t *testing.T) {
	c, _ := New(Config{APIKey: "k"})
	if got := ModelName(c); got != GroqDefaultModel {
		t.Errorf("ModelName() = %q, want %q", got, GroqDefaultModel)
	}
	if got := ModelName(NewMockClient()); got != "" {
		t.Errorf("ModelName(mock) = %q, want empty", got)
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.Respond = func(req *ChatRequest, n int) (string, error) {
		if n == 1 {
			return "", &APIError{Provider: "mock", Kind: ErrRateLimited}
		}
		return `{"ok":true}`, nil
	}

	_, err := m.Chat(context.Background(), &ChatRequest{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("first call error = %v, want ErrRateLimited", err)
	}
	res, err := m.Chat(context.Background(), &ChatRequest{})
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if res.Content != `{"ok":true}` || res.TotalTokens != 150 {
		t.Errorf("result = %+v", res)
	}
	if m.RequestCount() != 2 || len(m.Requests()) != 2 {
		t.Errorf("RequestCount = %d, Requests = %d", m.RequestCount(), len(m.Requests()))
	}
}
