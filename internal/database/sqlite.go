package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mufashe-rag/internal/models"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteFile is the database file created inside the index directory
const SQLiteFile = "index.db"

// SQLiteStore is an on-disk similarity store. Vectors are kept as
// little-endian float32 blobs and ranked by brute-force cosine distance.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	Collection string
}

// NewSQLiteStore opens (or creates) the index database inside dir
func NewSQLiteStore(dir, collection string) (*SQLiteStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", models.ErrConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, SQLiteFile)

	// WAL lets readers continue while a single ingest writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath, Collection: collection}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Initialize creates the chunk table and indices
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			source_file TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			doc_type TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating document_chunks table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_document_chunks_collection ON document_chunks (collection, source_file)
	`)
	if err != nil {
		return fmt.Errorf("creating collection index: %w", err)
	}

	return nil
}

// Upsert stores index entries in a single transaction
func (s *SQLiteStore) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, collection, source_file, chunk_index, doc_type, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_file = excluded.source_file,
			chunk_index = excluded.chunk_index,
			doc_type = excluded.doc_type,
			content = excluded.content,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", mapSQLiteError(err))
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, s.Collection, e.Metadata.SourceFile, e.Metadata.ChunkIndex,
			e.Metadata.DocType, e.Text, float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// Query ranks every chunk of the collection by cosine distance to vector and returns the k nearest
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int, filter models.QueryFilter) ([]models.QueryHit, error) {
	if k <= 0 {
		return nil, nil
	}

	query := `SELECT content, source_file, chunk_index, doc_type, embedding FROM document_chunks WHERE collection = ?`
	args := []any{s.Collection}
	if filter.SourceFile != "" {
		query += ` AND source_file = ?`
		args = append(args, filter.SourceFile)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var hits []models.QueryHit
	for rows.Next() {
		var hit models.QueryHit
		var blob []byte
		if err := rows.Scan(&hit.Text, &hit.Metadata.SourceFile, &hit.Metadata.ChunkIndex, &hit.Metadata.DocType, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		hit.Distance = cosineDistance(vector, bytesToFloat32Slice(blob))
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	// Stable so equal distances keep insertion order
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Clear removes every chunk of the collection. A missing table is not an error.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE collection = ?`, s.Collection)
	if err != nil {
		if errors.Is(mapSQLiteError(err), models.ErrNotInitialized) {
			return nil
		}
		return fmt.Errorf("clearing collection: %w", err)
	}
	return nil
}

// Count returns the number of chunks stored in the collection
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE collection = ?`, s.Collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", mapSQLiteError(err))
	}
	return count, nil
}

// Sources returns the distinct source files of the collection
func (s *SQLiteStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT source_file FROM document_chunks WHERE collection = ? ORDER BY source_file
	`, s.Collection)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mapSQLiteError turns a missing chunk table into ErrNotInitialized
func mapSQLiteError(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %w", models.ErrNotInitialized, err)
	}
	return err
}

// cosineDistance returns 1 - cosine similarity; mismatched or zero vectors are maximally distant
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
