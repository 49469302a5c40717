package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mufashe-rag/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// DefaultOllamaModel is the local chat model used when none is configured
const DefaultOllamaModel = "llama3.2"

// OllamaCompleter handles interactions with the Ollama chat API
type OllamaCompleter struct {
	Client  *api.Client
	Model   string
	Timeout time.Duration
}

// NewOllamaCompleter creates a new Ollama chat client. An empty host falls back to OLLAMA_HOST.
func NewOllamaCompleter(host string, model string, timeout time.Duration) (*OllamaCompleter, error) {
	hostURL := envconfig.Host()
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: invalid ollama host %q", models.ErrConfiguration, host)
		}
		hostURL = parsed
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OllamaCompleter{
		Client:  api.NewClient(hostURL, http.DefaultClient),
		Model:   model,
		Timeout: timeout,
	}, nil
}

// Complete sends one system+user exchange and returns the assistant reply
func (o *OllamaCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = o.Model
	}

	stream := false
	chatReq := api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	var responseBuilder strings.Builder
	err := o.Client.Chat(ctxWithTimeout, &chatReq, func(resp api.ChatResponse) error {
		_, err := responseBuilder.WriteString(resp.Message.Content)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate response: %w", models.ErrUpstream, err)
	}

	return responseBuilder.String(), nil
}
