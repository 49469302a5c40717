package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mufashe-rag/internal/models"
)

func newTestService(store *memoryStore, completer Completer) *Service {
	embedder := &hashEmbedder{}
	return NewService(
		NewRetriever(embedder, store, RetrieverOptions{}),
		NewAssembler(completer, DefaultAssemblerOptions()),
		store,
		0,
		nil,
	)
}

func TestService_ValidateQuestion(t *testing.T) {
	s := newTestService(&memoryStore{}, nil)

	_, err := s.ValidateQuestion("  hi ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	q, err := s.ValidateQuestion("  why? ")
	require.NoError(t, err)
	assert.Equal(t, "why?", q)
}

func TestService_Ask(t *testing.T) {
	store := &memoryStore{
		count: 2,
		hits: []models.QueryHit{
			hit("land_law.txt", 3, "A lease may be terminated with notice.", 0.1),
		},
	}
	completer := &stubCompleter{reply: "Title: Eviction"}
	s := newTestService(store, completer)

	answer, err := s.Ask(context.Background(), " Can my landlord evict me? ", RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Can my landlord evict me?", answer.Question)
	assert.Equal(t, "Title: Eviction", answer.Answer)
	assert.Equal(t, DefaultModel, answer.Model)
	assert.NotEmpty(t, answer.Timestamp)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "land_law.txt", answer.Sources[0].SourceFile)
}

func TestService_Ask_FilterMatchesNothing(t *testing.T) {
	completer := &stubCompleter{reply: "unused"}
	s := newTestService(&memoryStore{count: 5}, completer)

	answer, err := s.Ask(context.Background(), "What is the penalty for theft?", RetrieveOptions{SourceFile: "missing.txt"})
	require.NoError(t, err)
	assert.Equal(t, InsufficientInformation, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, completer.calls)
}

func TestService_Ask_ShortQuestion(t *testing.T) {
	s := newTestService(&memoryStore{count: 1}, &stubCompleter{reply: "x"})

	_, err := s.Ask(context.Background(), "a", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestService_Ask_NotIngested(t *testing.T) {
	s := newTestService(&memoryStore{}, &stubCompleter{reply: "x"})

	_, err := s.Ask(context.Background(), "What is the penalty for theft?", RetrieveOptions{})
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestService_Search(t *testing.T) {
	store := &memoryStore{
		count: 2,
		hits: []models.QueryHit{
			hit("land_law.txt", 0, "one", 0.1),
			hit("land_law.txt", 0, "one again", 0.2),
		},
	}
	s := newTestService(store, nil)

	sources, err := s.Search(context.Background(), "lease notice", RetrieveOptions{})
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestService_Sources(t *testing.T) {
	store := &memoryStore{entries: []models.IndexEntry{
		{Metadata: models.Metadata{SourceFile: "land_law.txt"}},
		{Metadata: models.Metadata{SourceFile: "land_law.txt"}},
		{Metadata: models.Metadata{SourceFile: "penal_code.txt"}},
	}}
	s := newTestService(store, nil)

	sources, err := s.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"land_law.txt", "penal_code.txt"}, sources)
}

func TestLoadCleanDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_law.txt"), []byte("  Article 1\nBody.  "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_law.txt"), []byte("Article 1\xff\nBody."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte(" \n "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.pdf"), []byte("%PDF"), 0o644))

	docs, err := LoadCleanDocuments(dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a_law.txt", docs[0].SourceFile)
	assert.Equal(t, "Article 1\nBody.", docs[0].Text)
	assert.Equal(t, "b_law.txt", docs[1].SourceFile)
	assert.Equal(t, "Article 1\nBody.", docs[1].Text)
}

func TestLoadCleanDocuments_Errors(t *testing.T) {
	_, err := LoadCleanDocuments(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0o644))
	_, err = LoadCleanDocuments(dir, nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}
