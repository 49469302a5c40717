package rag

import (
	"context"
	"errors"
	"sync"

	"mufashe-rag/internal/models"
)

// hashEmbedder builds a deterministic 8-dimension vector from byte frequencies
type hashEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn int // 1-based call number that fails; 0 never fails
	inputs [][]string
}

func (e *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.inputs = append(e.inputs, texts)
	if e.failOn > 0 && e.calls == e.failOn {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		for _, b := range []byte(text) {
			vec[int(b)%8]++
		}
		vec[0] += 0.001
		out[i] = vec
	}
	return out, nil
}

// memoryStore returns canned hits and records writes
type memoryStore struct {
	entries     []models.IndexEntry
	hits        []models.QueryHit
	count       int
	countErr    error
	cleared     int
	lastK       int
	lastFilter  models.QueryFilter
	initialized bool
}

func (s *memoryStore) Initialize(ctx context.Context) error {
	s.initialized = true
	return nil
}

func (s *memoryStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memoryStore) Query(ctx context.Context, vector []float32, k int, filter models.QueryFilter) ([]models.QueryHit, error) {
	s.lastK = k
	s.lastFilter = filter
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.cleared++
	s.entries = nil
	return nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	if s.count > 0 {
		return s.count, nil
	}
	return len(s.entries), nil
}

func (s *memoryStore) Sources(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, e := range s.entries {
		if !seen[e.Metadata.SourceFile] {
			seen[e.Metadata.SourceFile] = true
			out = append(out, e.Metadata.SourceFile)
		}
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

// stubCompleter returns a fixed reply and records the request
type stubCompleter struct {
	reply string
	err   error
	calls int
	last  models.CompletionRequest
}

func (c *stubCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	c.calls++
	c.last = req
	return c.reply, c.err
}

func hit(source string, index int, text string, distance float64) models.QueryHit {
	return models.QueryHit{
		Text:     text,
		Distance: distance,
		Metadata: models.Metadata{SourceFile: source, ChunkIndex: index, DocType: DefaultDocType},
	}
}
