package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mufashe-rag/internal/models"
)

func TestOpenAICompleter_Complete(t *testing.T) {
	var got chatCompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  Title: Renting a house  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	out, err := c.Complete(context.Background(), models.CompletionRequest{
		System:      "system prompt",
		User:        "user prompt",
		Model:       "gpt-4.1-mini",
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "  Title: Renting a house  ", out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4.1-mini", got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system prompt", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestOpenAICompleter_MissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{BaseURL: srv.URL, APIKeyEnv: "MUFASHE_OPENAI_KEY"})
	_, err := c.Complete(context.Background(), models.CompletionRequest{User: "question"})

	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.Contains(t, err.Error(), "MUFASHE_OPENAI_KEY is not set")
	assert.False(t, called)
}

func TestOpenAICompleter_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), models.CompletionRequest{User: "question"})

	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAICompleter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), models.CompletionRequest{User: "question"})
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestOpenAICompleter_DefaultModel(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), models.CompletionRequest{User: "question"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
}

func TestOllamaCompleter_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Quick answer: yes"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewOllamaCompleter(srv.URL, "llama3.2", 0)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), models.CompletionRequest{
		System:      "system prompt",
		User:        "user prompt",
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Quick answer: yes", out)

	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, false, got["stream"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOllamaCompleter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found"}`))
	}))
	defer srv.Close()

	c, err := NewOllamaCompleter(srv.URL, "missing", 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), models.CompletionRequest{User: "question"})
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestNewOllamaCompleter_InvalidHost(t *testing.T) {
	_, err := NewOllamaCompleter("localhost", "llama3.2", 0)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
