package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mufashe-rag/internal/models"
)

const (
	// DefaultTopK is the number of nearest chunks requested per question
	DefaultTopK = 6
	// DefaultMaxSourceChars caps each citation's text
	DefaultMaxSourceChars = 1400
	// DefaultMinTopK and DefaultMaxTopK bound the per-request top_k
	DefaultMinTopK = 3
	DefaultMaxTopK = 12
)

// RetrieverOptions configures a Retriever
type RetrieverOptions struct {
	TopK           int
	MinTopK        int
	MaxTopK        int
	MaxSourceChars int
	Logger         *slog.Logger
}

// RetrieveOptions narrows a single retrieval
type RetrieveOptions struct {
	// TopK overrides the retriever default when positive
	TopK int
	// SourceFile restricts hits to one source document
	SourceFile string
}

// Retriever turns a question into a deduplicated, truncated list of citations
type Retriever struct {
	embedder Embedder
	store    VectorStore
	opts     RetrieverOptions
	logger   *slog.Logger
}

// NewRetriever creates a retriever. Zero-valued options take their defaults.
func NewRetriever(embedder Embedder, store VectorStore, opts RetrieverOptions) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinTopK <= 0 {
		opts.MinTopK = DefaultMinTopK
	}
	if opts.MaxTopK < opts.MinTopK {
		opts.MaxTopK = max(DefaultMaxTopK, opts.MinTopK)
	}
	if opts.MaxSourceChars <= 0 {
		opts.MaxSourceChars = DefaultMaxSourceChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, opts: opts, logger: logger}
}

// Retrieve embeds the question, fetches the nearest chunks and deduplicates them by
// (source file, chunk index), keeping the first and therefore nearest occurrence.
// An empty or never-created collection yields ErrNotInitialized.
func (r *Retriever) Retrieve(ctx context.Context, question string, q RetrieveOptions) ([]models.RetrievedSource, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrInvalidInput)
	}

	topK := r.TopK(q.TopK)

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect collection: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: collection is empty, run ingest first", models.ErrNotInitialized)
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, upstream("failed to embed question", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", models.ErrUpstream, len(vectors))
	}

	hits, err := r.store.Query(ctx, vectors[0], topK, models.QueryFilter{SourceFile: q.SourceFile})
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}

	sources := Deduplicate(hits, topK, r.opts.MaxSourceChars)
	r.logger.Debug("retrieved sources", "hits", len(hits), "sources", len(sources), "top_k", topK)
	return sources, nil
}

// TopK returns the number of chunks a retrieval asks for: requested when positive,
// otherwise the configured default, clamped to [MinTopK, MaxTopK]
func (r *Retriever) TopK(requested int) int {
	topK := r.opts.TopK
	if requested > 0 {
		topK = requested
	}
	return min(max(topK, r.opts.MinTopK), r.opts.MaxTopK)
}

// Deduplicate keeps the first hit per (source file, chunk index), at most limit of them,
// and truncates each text to maxChars characters.
func Deduplicate(hits []models.QueryHit, limit, maxChars int) []models.RetrievedSource {
	if limit <= 0 {
		return nil
	}
	seen := make(map[models.SourceKey]struct{}, len(hits))
	sources := make([]models.RetrievedSource, 0, min(len(hits), limit))

	for _, hit := range hits {
		if len(sources) >= limit {
			break
		}
		key := models.SourceKey{SourceFile: hit.Metadata.SourceFile, ChunkIndex: hit.Metadata.ChunkIndex}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sources = append(sources, models.RetrievedSource{
			SourceFile: key.SourceFile,
			ChunkIndex: key.ChunkIndex,
			Text:       truncate(hit.Text, maxChars),
		})
	}

	return sources
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
