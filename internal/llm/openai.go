package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mufashe-rag/internal/models"
)

// Default configuration values
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4.1-mini"
	DefaultTimeout     = 120 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI chat completions client
type OpenAIConfig struct {
	// APIKey authenticates requests. Without it every call fails with a configuration error.
	APIKey string
	// APIKeyEnv names the variable the key was read from, used in error messages
	APIKeyEnv string
	// BaseURL is the API base URL; OpenAI-compatible gateways work too
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAICompleter calls the OpenAI chat completions endpoint
type OpenAICompleter struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	apiKeyEnv string
	model     string
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAICompleter creates a new OpenAI completer
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAICompleter{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiKeyEnv: cfg.APIKeyEnv,
		model:     cfg.Model,
	}
}

// Complete sends one system+user exchange and returns the assistant reply
func (s *OpenAICompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: %s is not set", models.ErrConfiguration, s.apiKeyEnv)
	}

	model := req.Model
	if model == "" {
		model = s.model
	}

	jsonBody, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %w", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", models.ErrUpstream, err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: decode response (status %d): %w", models.ErrUpstream, resp.StatusCode, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: openai error (status %d): %s", models.ErrUpstream, resp.StatusCode, chatResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: openai error (status %d)", models.ErrUpstream, resp.StatusCode)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", models.ErrUpstream)
	}

	return chatResp.Choices[0].Message.Content, nil
}
