package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	GroqName         = "groq"
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// OpenAIConfig configures a client for any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Name         string // reported provider name (default: "groq")
	APIKey       string
	BaseURL      string // default: Groq
	DefaultModel string
	Timeout      time.Duration
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK. It
// targets Groq by default, which serves the same chat completions API.
type OpenAIClient struct {
	name         string
	defaultModel string
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Name == "" {
		cfg.Name = GroqName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GroqBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = GroqDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// SDK retries are disabled; the extractor owns retry policy.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &OpenAIClient{
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		client:       client,
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.defaultModel
}

// Chat sends a single chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  c.name,
		ModelUsed: model,
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = c.mapError(err)
		return result.failed(err, start), err
	}

	if len(completion.Choices) == 0 {
		err := &APIError{Provider: c.name, Message: fmt.Sprintf("no choices in response (id=%s)", completion.ID), Kind: ErrEmptyResponse}
		return result.failed(err, start), err
	}

	result.Success = true
	result.Content = completion.Choices[0].Message.Content
	if completion.Model != "" {
		result.ModelUsed = completion.Model
	}
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Content)}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageDataURL(img),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

func imageDataURL(img []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return newStatusError(c.name, apiErr.StatusCode, msg, header)
	}
	return classifyTransport(c.name, err)
}

var _ LLMClient = (*OpenAIClient)(nil)
