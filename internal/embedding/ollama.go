package embedding

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"mufashe-rag/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel is a 384-dimension sentence embedding model served by Ollama
	DefaultModel = "all-minilm"
	// DefaultTimeout bounds a single embedding call
	DefaultTimeout = 60 * time.Second
)

// Options configures an OllamaEmbedder
type Options struct {
	// Timeout bounds each call to the embedding endpoint
	Timeout time.Duration
	// Dimensions, when set, is the expected vector length
	Dimensions int
	// RequestsPerSecond throttles calls client-side; zero disables throttling
	RequestsPerSecond float64
	// HTTPClient overrides the default HTTP client
	HTTPClient *http.Client
}

// OllamaEmbedder generates embeddings using Ollama API
type OllamaEmbedder struct {
	Client     *api.Client
	Model      string
	Timeout    time.Duration
	Dimensions int
	limiter    *rate.Limiter
}

// NewOllamaEmbedder creates a new Ollama embedder. An empty host falls back to OLLAMA_HOST.
func NewOllamaEmbedder(host string, model string, opts Options) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: invalid ollama host %q", models.ErrConfiguration, host)
		}
		hostURL = parsed
	}
	if model == "" {
		model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	e := &OllamaEmbedder{
		Client:     api.NewClient(hostURL, httpClient),
		Model:      model,
		Timeout:    opts.Timeout,
		Dimensions: opts.Dimensions,
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e, nil
}

// Embed returns one L2-normalized vector per input text, in input order.
// A single request is made per call; failures are not retried.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", models.ErrUpstream, err)
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embed(ctxWithTimeout, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embeddings: %w", models.ErrUpstream, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrUpstream, len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, vec := range resp.Embeddings {
		if e.Dimensions > 0 && len(vec) != e.Dimensions {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", models.ErrUpstream, i, len(vec), e.Dimensions)
		}
		vectors[i] = Normalize(vec)
	}

	return vectors, nil
}

// Normalize scales vec to unit length. A zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
