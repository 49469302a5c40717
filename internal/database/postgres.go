package database

import (
	"context"
	"errors"
	"fmt"

	"mufashe-rag/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// undefinedTable is the SQLSTATE raised when the chunk table was never created
const undefinedTable = "42P01"

// DefaultDimensions matches the all-minilm sentence embedding model
const DefaultDimensions = 384

// DB is a PostgreSQL + pgvector similarity store bound to one collection
type DB struct {
	Pool       *pgxpool.Pool
	Collection string
	Dimensions int
}

// NewDB creates a new database connection pool with pgvector types registered
func NewDB(ctx context.Context, connStr, collection string, dimensions int) (*DB, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", models.ErrConfiguration)
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	// The vector type must exist before connections can register it
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to enable vector extension: %w", err)
	}
	conn.Close(ctx)

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, Collection: collection, Dimensions: dimensions}, nil
}

// Initialize sets up the chunk table and indices
func (db *DB) Initialize(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS document_chunks (
            id TEXT PRIMARY KEY,
            collection TEXT NOT NULL,
            source_file TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            doc_type TEXT NOT NULL,
            content TEXT NOT NULL,
            embedding vector(%d) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `, db.Dimensions))
	if err != nil {
		return fmt.Errorf("failed to create document_chunks table: %w", err)
	}

	// Create vector index
	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx ON document_chunks
		USING hnsw (embedding vector_cosine_ops)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS document_chunks_collection_idx ON document_chunks (collection, source_file)
	`)
	if err != nil {
		return fmt.Errorf("failed to create collection index: %w", err)
	}

	return nil
}

// Upsert stores index entries in a single transaction
func (db *DB) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO document_chunks (id, collection, source_file, chunk_index, doc_type, content, embedding)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					source_file = EXCLUDED.source_file,
					chunk_index = EXCLUDED.chunk_index,
					doc_type = EXCLUDED.doc_type,
					content = EXCLUDED.content,
					embedding = EXCLUDED.embedding
			`, e.ID, db.Collection, e.Metadata.SourceFile, e.Metadata.ChunkIndex, e.Metadata.DocType, e.Text, pgvector.NewVector(e.Vector))
		}

		br := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", mapError(err))
	}

	return nil
}

// Query finds the k chunks nearest to vector by cosine distance, nearest first
func (db *DB) Query(ctx context.Context, vector []float32, k int, filter models.QueryFilter) ([]models.QueryHit, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT content, source_file, chunk_index, doc_type, embedding <=> $1 AS distance
		FROM document_chunks
		WHERE collection = $2 AND ($3 = '' OR source_file = $3)
		ORDER BY embedding <=> $1
		LIMIT $4
	`, pgvector.NewVector(vector), db.Collection, filter.SourceFile, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", mapError(err))
	}
	defer rows.Close()

	var hits []models.QueryHit
	for rows.Next() {
		var hit models.QueryHit
		if err := rows.Scan(
			&hit.Text,
			&hit.Metadata.SourceFile,
			&hit.Metadata.ChunkIndex,
			&hit.Metadata.DocType,
			&hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", mapError(err))
	}

	return hits, nil
}

// Clear removes every chunk of the collection. A missing table is not an error.
func (db *DB) Clear(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM document_chunks WHERE collection = $1`, db.Collection)
	if err != nil {
		if errors.Is(mapError(err), models.ErrNotInitialized) {
			return nil
		}
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

// Count returns the number of chunks stored in the collection
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks WHERE collection = $1`, db.Collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", mapError(err))
	}
	return count, nil
}

// Sources retrieves the distinct source files of the collection
func (db *DB) Sources(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT source_file FROM document_chunks WHERE collection = $1 ORDER BY source_file
	`, db.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", mapError(err))
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", mapError(err))
	}

	return sources, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// mapError turns a missing chunk table into ErrNotInitialized
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %w", models.ErrNotInitialized, err)
	}
	return err
}
