package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownProvider is returned for provider types with no client.
var ErrUnknownProvider = errors.New("unknown provider type")

// Config selects and configures a client.
type Config struct {
	Type    string // "groq", "openai", "openrouter", "mock"
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Types lists the supported provider types.
func Types() []string {
	return []string{GroqName, "openai", OpenRouterName, MockClientName}
}

// New builds a client for cfg. A missing API key is reported as ErrAuth so
// that it is treated like any other credential failure.
func New(cfg Config) (LLMClient, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	if typ == "" {
		typ = GroqName
	}
	if typ != MockClientName && cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured for %s", ErrAuth, typ)
	}

	switch typ {
	case GroqName:
		return NewOpenAIClient(OpenAIConfig{
			Name:         GroqName,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         "openai",
			APIKey:       cfg.APIKey,
			BaseURL:      baseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}), nil
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}), nil
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnknownProvider, cfg.Type, strings.Join(Types(), ", "))
	}
}

// ModelName returns the default model of clients that expose one.
func ModelName(c LLMClient) string {
	if m, ok := c.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
