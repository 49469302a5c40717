// Package rag wires embedding, storage and completion into the ingest and
// question answering pipeline.
package rag

import (
	"context"
	"time"

	"mufashe-rag/internal/models"
)

// Embedder maps texts to fixed-length vectors, one per input and in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is a persistent nearest-neighbour index bound to one collection
type VectorStore interface {
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	// Query returns at most k hits, nearest first
	Query(ctx context.Context, vector []float32, k int, filter models.QueryFilter) ([]models.QueryHit, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Sources(ctx context.Context) ([]string, error)
	Close() error
}

// Initializer is implemented by stores that need their schema created before writes
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Completer sends a system+user prompt to a language model
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Locker guards the collection against concurrent ingest runs
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Extend(ctx context.Context, name string, ttl time.Duration) error
	Release(ctx context.Context, name string) error
}
