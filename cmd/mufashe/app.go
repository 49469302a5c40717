package main

import (
	"context"
	"fmt"

	"mufashe-rag/internal/config"
	"mufashe-rag/internal/database"
	"mufashe-rag/internal/embedding"
	"mufashe-rag/internal/llm"
	"mufashe-rag/internal/rag"
)

// openStore connects the configured similarity store
func openStore(ctx context.Context, cfg *config.Config) (rag.VectorStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.NewDB(ctx, cfg.Store.PostgresURL, cfg.Store.Collection, cfg.Store.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	default:
		store, err := database.NewSQLiteStore(cfg.Store.SQLiteDir, cfg.Store.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return store, nil
	}
}

func newEmbedder(cfg *config.Config) (*embedding.OllamaEmbedder, error) {
	embedder, err := embedding.NewOllamaEmbedder(cfg.Embedding.Host, cfg.Embedding.Model, embedding.Options{
		Timeout:           cfg.EmbeddingTimeout(),
		Dimensions:        cfg.Store.Dimensions,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// completionModel resolves the model name for the configured provider
func completionModel(cfg *config.Config) string {
	if cfg.Completion.Provider == "ollama" && cfg.Completion.Model == llm.DefaultOpenAIModel {
		return llm.DefaultOllamaModel
	}
	return cfg.Completion.Model
}

func newCompleter(cfg *config.Config) (rag.Completer, error) {
	if cfg.Completion.Provider == "ollama" {
		completer, err := llm.NewOllamaCompleter(cfg.Completion.OllamaHost, completionModel(cfg), cfg.CompletionTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return completer, nil
	}
	return llm.NewOpenAICompleter(llm.OpenAIConfig{
		APIKey:    cfg.APIKey(),
		APIKeyEnv: cfg.Completion.APIKeyEnv,
		BaseURL:   cfg.Completion.BaseURL,
		Model:     cfg.Completion.Model,
		Timeout:   cfg.CompletionTimeout(),
	}), nil
}

// newService builds the question answering service over an opened store.
// The returned store must be closed by the caller.
func newService(ctx context.Context, cfg *config.Config) (*rag.Service, rag.VectorStore, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	retriever := rag.NewRetriever(embedder, store, rag.RetrieverOptions{
		TopK:           cfg.Retrieval.TopK,
		MinTopK:        cfg.Retrieval.MinTopK,
		MaxTopK:        cfg.Retrieval.MaxTopK,
		MaxSourceChars: cfg.Retrieval.MaxSourceChars,
		Logger:         log,
	})
	assembler := rag.NewAssembler(completer, rag.AssemblerOptions{
		Model:       completionModel(cfg),
		Temperature: cfg.Completion.Temperature,
	})
	return rag.NewService(retriever, assembler, store, cfg.Retrieval.MinQuestionChars, log), store, nil
}
