package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mufashe-rag/internal/database"
	"mufashe-rag/internal/models"
)

func TestRetriever_DeduplicatesFirstSeen(t *testing.T) {
	store := &memoryStore{
		count: 10,
		hits: []models.QueryHit{
			hit("land_law.txt", 3, "nearest", 0.1),
			hit("land_law.txt", 4, "second", 0.2),
			hit("land_law.txt", 3, "duplicate of nearest", 0.25),
			hit("penal_code.txt", 0, "third", 0.3),
			hit("penal_code.txt", 1, "fourth", 0.4),
			hit("family_law.txt", 7, "fifth", 0.5),
		},
	}
	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{})

	sources, err := r.Retrieve(context.Background(), "Can my landlord evict me?", RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, sources, 5)
	assert.Equal(t, DefaultTopK, store.lastK)
	assert.Equal(t, "nearest", sources[0].Text)
	assert.Equal(t, "second", sources[1].Text)
	assert.Equal(t, "third", sources[2].Text)

	keys := map[models.SourceKey]bool{}
	for _, s := range sources {
		assert.False(t, keys[s.Key()], "duplicate key %v", s.Key())
		keys[s.Key()] = true
	}
}

func TestRetriever_TruncatesAfterDedup(t *testing.T) {
	long := strings.Repeat("é", 2000)
	store := &memoryStore{
		count: 2,
		hits: []models.QueryHit{
			hit("land_law.txt", 0, long, 0.1),
			hit("land_law.txt", 1, "short", 0.2),
		},
	}
	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{})

	sources, err := r.Retrieve(context.Background(), "question", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, DefaultMaxSourceChars, utf8.RuneCountInString(sources[0].Text))
	assert.Equal(t, "short", sources[1].Text)
}

func TestRetriever_TopKAndFilter(t *testing.T) {
	store := &memoryStore{
		count: 3,
		hits: []models.QueryHit{
			hit("penal_code.txt", 0, "a", 0.1),
			hit("penal_code.txt", 1, "b", 0.2),
			hit("penal_code.txt", 2, "c", 0.3),
			hit("penal_code.txt", 3, "d", 0.4),
			hit("penal_code.txt", 4, "e", 0.5),
		},
	}
	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{TopK: 6})

	sources, err := r.Retrieve(context.Background(), "question", RetrieveOptions{TopK: 4, SourceFile: "penal_code.txt"})
	require.NoError(t, err)

	assert.Len(t, sources, 4)
	assert.Equal(t, 4, store.lastK)
	assert.Equal(t, "penal_code.txt", store.lastFilter.SourceFile)
}

func TestRetriever_ClampsTopK(t *testing.T) {
	hits := make([]models.QueryHit, 0, 500)
	for i := range 500 {
		hits = append(hits, hit("land_law.txt", i, strings.Repeat("x", 2000), float64(i)))
	}
	store := &memoryStore{count: len(hits), hits: hits}
	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{})

	sources, err := r.Retrieve(context.Background(), "question", RetrieveOptions{TopK: 1000000})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTopK, store.lastK)
	assert.Len(t, sources, DefaultMaxTopK)

	_, err = r.Retrieve(context.Background(), "question", RetrieveOptions{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinTopK, store.lastK)
}

func TestRetriever_TopK(t *testing.T) {
	tests := []struct {
		name      string
		opts      RetrieverOptions
		requested int
		want      int
	}{
		{"default", RetrieverOptions{}, 0, DefaultTopK},
		{"override", RetrieverOptions{}, 9, 9},
		{"below minimum", RetrieverOptions{}, 2, 3},
		{"above maximum", RetrieverOptions{}, 50, 12},
		{"configured default above maximum", RetrieverOptions{TopK: 20}, 0, 12},
		{"custom range", RetrieverOptions{MinTopK: 1, MaxTopK: 4}, 0, 4},
		{"custom minimum", RetrieverOptions{MinTopK: 1, MaxTopK: 4}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(&hashEmbedder{}, &memoryStore{}, tt.opts)
			assert.Equal(t, tt.want, r.TopK(tt.requested))
		})
	}
}

func TestRetriever_ZeroResultsIsSuccess(t *testing.T) {
	store := &memoryStore{count: 4}
	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{})

	sources, err := r.Retrieve(context.Background(), "question", RetrieveOptions{SourceFile: "unknown.txt"})
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestRetriever_EmptyCollection(t *testing.T) {
	embedder := &hashEmbedder{}
	r := NewRetriever(embedder, &memoryStore{}, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), "question", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	assert.Equal(t, 0, embedder.calls)
}

func TestRetriever_NeverIngestedSQLite(t *testing.T) {
	store, err := database.NewSQLiteStore(t.TempDir(), "mufashe_corpus")
	require.NoError(t, err)
	defer store.Close()

	r := NewRetriever(&hashEmbedder{}, store, RetrieverOptions{})
	_, err = r.Retrieve(context.Background(), "What is the penalty for theft?", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestRetriever_EmbeddingFailure(t *testing.T) {
	r := NewRetriever(&hashEmbedder{failOn: 1}, &memoryStore{count: 1}, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), "question", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestRetriever_StoreError(t *testing.T) {
	storeErr := errors.New("disk I/O error")
	r := NewRetriever(&hashEmbedder{}, &memoryStore{countErr: storeErr}, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), "question", RetrieveOptions{})
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, models.ErrUpstream)
}

func TestRetriever_EmptyQuestion(t *testing.T) {
	r := NewRetriever(&hashEmbedder{}, &memoryStore{count: 1}, RetrieverOptions{})

	_, err := r.Retrieve(context.Background(), "   ", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDeduplicate_Limit(t *testing.T) {
	hits := []models.QueryHit{
		hit("a.txt", 0, "one", 0.1),
		hit("a.txt", 1, "two", 0.2),
		hit("a.txt", 2, "three", 0.3),
	}

	sources := Deduplicate(hits, 2, 10)
	require.Len(t, sources, 2)
	assert.Equal(t, "two", sources[1].Text)
}

func TestDeduplicate_NonPositiveLimit(t *testing.T) {
	hits := []models.QueryHit{hit("a.txt", 0, "one", 0.1)}

	assert.Empty(t, Deduplicate(hits, -1, 1400))
	assert.Empty(t, Deduplicate(hits, 0, 1400))
}

func TestDeduplicate_TruncatesKeptHitsOnly(t *testing.T) {
	hits := []models.QueryHit{
		hit("a.txt", 0, "abcdef", 0.1),
		hit("a.txt", 0, "zzzzzz", 0.2),
		hit("a.txt", 1, "ghijkl", 0.3),
	}

	sources := Deduplicate(hits, 5, 3)
	require.Len(t, sources, 2)
	assert.Equal(t, "abc", sources[0].Text)
	assert.Equal(t, "ghi", sources[1].Text)
}
