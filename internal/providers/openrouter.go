package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OpenRouterClient implements LLMClient using the OpenRouter HTTP API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "meta-llama/llama-4-scout"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Model returns the configured default model.
func (c *OpenRouterClient) Model() string {
	return c.defaultModel
}

type openRouterRequest struct {
	Model          string                    `json:"model"`
	Messages       []openRouterMessage       `json:"messages"`
	Temperature    float64                   `json:"temperature"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	ResponseFormat *openRouterResponseFormat `json:"response_format,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []openRouterContent
}

type openRouterContent struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	// Error is set when the request succeeded at HTTP level but failed upstream.
	Error *openRouterError `json:"error,omitempty"`
}

type openRouterError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"` // Can be string or int
}

// Chat sends a single chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
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
		Provider:  OpenRouterName,
		ModelUsed: model,
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		msg := openRouterMessage{Role: m.Role, Content: m.Content}
		if len(m.Images) > 0 {
			content := []openRouterContent{{Type: "text", Text: m.Content}}
			for _, img := range m.Images {
				content = append(content, openRouterContent{
					Type:     "image_url",
					ImageURL: &openRouterImageURL{URL: imageDataURL(img)},
				})
			}
			msg.Content = content
		}
		orReq.Messages = append(orReq.Messages, msg)
	}
	if req.ResponseFormat != nil {
		orReq.ResponseFormat = &openRouterResponseFormat{
			Type:       req.ResponseFormat.Type,
			JSONSchema: req.ResponseFormat.JSONSchema,
		}
	}

	orResp, err := c.doRequest(ctx, "/chat/completions", &orReq)
	if err != nil {
		return result.failed(err, start), err
	}

	content := ""
	switch v := orResp.Choices[0].Message.Content.(type) {
	case nil:
	case string:
		content = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			err = &APIError{Provider: OpenRouterName, Message: fmt.Sprintf("failed to marshal content: %v", err), Kind: ErrRequest}
			return result.failed(err, start), err
		}
		content = string(b)
	}

	result.Success = true
	result.Content = content
	if orResp.Model != "" {
		result.ModelUsed = orResp.Model
	}
	result.PromptTokens = orResp.Usage.PromptTokens
	result.CompletionTokens = orResp.Usage.CompletionTokens
	result.TotalTokens = orResp.Usage.TotalTokens
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// doRequest makes one HTTP request and classifies any failure.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/vellum")
	req.Header.Set("X-Title", "Vellum")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(OpenRouterName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(OpenRouterName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(OpenRouterName, resp.StatusCode, string(respBody), resp.Header)
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, &APIError{Provider: OpenRouterName, Message: fmt.Sprintf("failed to unmarshal response: %v", err), Kind: ErrServer}
	}

	if orResp.Error != nil {
		return nil, &APIError{Provider: OpenRouterName, Message: orResp.Error.Message, Kind: kindForAPICode(orResp.Error.Code)}
	}
	if len(orResp.Choices) == 0 {
		return nil, &APIError{
			Provider: OpenRouterName,
			Message:  fmt.Sprintf("empty choices in response (model=%s, id=%s)", orResp.Model, orResp.ID),
			Kind:     ErrEmptyResponse,
		}
	}
	return &orResp, nil
}

// kindForAPICode classifies errors reported inside a 200 response body.
func kindForAPICode(code any) error {
	switch fmt.Sprintf("%v", code) {
	case "rate_limit_exceeded", "429":
		return ErrRateLimited
	case "overloaded", "500", "502", "503":
		return ErrServer
	case "401", "403", "invalid_api_key":
		return ErrAuth
	default:
		return ErrRequest
	}
}

var _ LLMClient = (*OpenRouterClient)(nil)
