package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mufashe-rag/internal/lock"
	"mufashe-rag/internal/processor"
	"mufashe-rag/internal/rag"
)

var (
	ingestDir    string
	ingestAppend bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed and index the cleaned documents",
	Long: `Loads every cleaned .txt document, splits it into overlapping chunks,
embeds the chunks in batches and writes them to the similarity store.
The collection is cleared first unless --append is given.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "cleaned text directory (default paths.clean_dir)")
	ingestCmd.Flags().BoolVar(&ingestAppend, "append", false, "keep existing entries instead of clearing the collection")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir := ingestDir
	if dir == "" {
		dir = cfg.Paths.CleanDir
	}

	startTime := time.Now()
	docs, err := rag.LoadCleanDocuments(dir, log)
	if err != nil {
		return err
	}
	cmd.Printf("Loaded %d documents from %s\n", len(docs), dir)

	chunker, err := processor.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := rag.IndexerOptions{
		Collection: cfg.Store.Collection,
		BatchSize:  cfg.Embedding.BatchSize,
		Append:     ingestAppend,
		Logger:     log,
	}
	if cfg.Redis.URL != "" {
		locker, err := lock.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer locker.Close()
		opts.Locker = locker
		log.Debug("ingest lock enabled", "owner", locker.OwnerID())
	}

	report, err := rag.NewIndexer(embedder, store, chunker, opts).Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Completed ingest in %v:\n", time.Since(startTime).Round(time.Millisecond))
	cmd.Printf("  - Collection: %s\n", report.Collection)
	cmd.Printf("  - Documents: %d\n", report.Documents)
	cmd.Printf("  - Chunks: %d in %d batches\n", report.Chunks, report.Batches)
	return nil
}
