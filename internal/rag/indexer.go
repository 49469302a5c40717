package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mufashe-rag/internal/models"
	"mufashe-rag/internal/processor"
)

const (
	// DefaultBatchSize is the number of chunks embedded and written per round trip
	DefaultBatchSize = 64
	// DefaultDocType is recorded on every chunk's metadata
	DefaultDocType = "case_or_law"
	// DefaultLockTTL bounds how long a crashed ingest can block the next one
	DefaultLockTTL = 10 * time.Minute
)

// IndexerOptions configures an ingest run
type IndexerOptions struct {
	Collection string
	BatchSize  int
	DocType    string
	// Append keeps existing entries instead of clearing the collection first
	Append  bool
	Locker  Locker
	LockTTL time.Duration
	Logger  *slog.Logger
}

// Indexer embeds chunks and writes them to the similarity store
type Indexer struct {
	embedder Embedder
	store    VectorStore
	chunker  *processor.Chunker
	opts     IndexerOptions
	logger   *slog.Logger
}

// NewIndexer creates an indexer. Zero-valued options take their defaults.
func NewIndexer(embedder Embedder, store VectorStore, chunker *processor.Chunker, opts IndexerOptions) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DocType == "" {
		opts.DocType = DefaultDocType
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		chunker:  chunker,
		opts:     opts,
		logger:   logger,
	}
}

// Ingest chunks every document, then embeds and stores the chunks in sequential batches.
// An embedding failure aborts the run; batches already written are kept.
func (ix *Indexer) Ingest(ctx context.Context, docs []models.Document) (*models.IngestReport, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to ingest", models.ErrEmptyInput)
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		docChunks := ix.chunker.Chunk(doc.SourceFile, doc.Text)
		ix.logger.Debug("chunked document", "file", doc.SourceFile, "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: documents produced no chunks", models.ErrEmptyInput)
	}

	if ix.opts.Locker != nil {
		release, err := ix.acquireLock(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if init, ok := ix.store.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
	}

	if !ix.opts.Append {
		if err := ix.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear collection: %w", err)
		}
		ix.logger.Info("cleared collection", "collection", ix.opts.Collection)
	}

	report := &models.IngestReport{
		Collection: ix.opts.Collection,
		Documents:  len(docs),
	}

	startTime := time.Now()
	for start := 0; start < len(chunks); start += ix.opts.BatchSize {
		end := min(start+ix.opts.BatchSize, len(chunks))
		batch := chunks[start:end]

		if err := ix.storeBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("batch %d: %w", report.Batches+1, err)
		}

		report.Batches++
		report.Chunks += len(batch)
		ix.logger.Info("stored batch", "stored", report.Chunks, "total", len(chunks))

		if ix.opts.Locker != nil {
			if err := ix.opts.Locker.Extend(ctx, ix.lockName(), ix.opts.LockTTL); err != nil {
				ix.logger.Warn("failed to extend ingest lock", "error", err)
			}
		}
	}

	ix.logger.Info("ingest complete",
		"collection", report.Collection,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"duration", time.Since(startTime).Round(time.Millisecond))

	return report, nil
}

func (ix *Indexer) storeBatch(ctx context.Context, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return upstream("failed to embed chunks", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrUpstream, len(batch), len(vectors))
	}

	entries := make([]models.IndexEntry, len(batch))
	for i, c := range batch {
		entries[i] = models.IndexEntry{
			ID:     c.ID,
			Vector: vectors[i],
			Text:   c.Text,
			Metadata: models.Metadata{
				SourceFile: c.SourceFile,
				ChunkIndex: c.ChunkIndex,
				DocType:    ix.opts.DocType,
			},
		}
	}

	if err := ix.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

func (ix *Indexer) lockName() string {
	return "ingest:" + ix.opts.Collection
}

func (ix *Indexer) acquireLock(ctx context.Context) (func(), error) {
	name := ix.lockName()
	ok, err := ix.opts.Locker.Acquire(ctx, name, ix.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", models.ErrIngestInProgress, ix.opts.Collection)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := ix.opts.Locker.Release(releaseCtx, name); err != nil {
			ix.logger.Warn("failed to release ingest lock", "error", err)
		}
	}, nil
}

// upstream marks err as an upstream failure unless it already is one
func upstream(msg string, err error) error {
	if errors.Is(err, models.ErrUpstream) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrUpstream, msg, err)
}
