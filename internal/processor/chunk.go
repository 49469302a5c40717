package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mufashe-rag/internal/models"
)

const (
	// DefaultChunkSize is the window length in characters
	DefaultChunkSize = 900
	// DefaultChunkOverlap is the number of characters repeated between adjacent windows
	DefaultChunkOverlap = 150
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// Chunker splits cleaned text into overlapping fixed-size windows.
// ChunkSize must exceed Overlap, otherwise the window could never advance.
type Chunker struct {
	ChunkSize int
	Overlap   int
}

// NewChunker creates a chunker, rejecting configurations that cannot make progress
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", models.ErrInvalidInput, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than chunk size (%d)", models.ErrInvalidInput, overlap, chunkSize)
	}
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}, nil
}

// PrepareText applies the light cleanup done before chunking: carriage returns
// become newlines, blank-line runs shrink to one and repeated spaces collapse.
func PrepareText(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Split returns the ordered, non-empty windows of text. Lengths are counted in runes.
func (c *Chunker) Split(text string) []string {
	runes := []rune(PrepareText(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.ChunkSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+c.ChunkSize, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = max(0, end-c.Overlap)
	}
	return chunks
}

// Chunk splits a document's cleaned text and assigns ids and per-file indices in document order
func (c *Chunker) Chunk(sourceFile, text string) []models.Chunk {
	parts := c.Split(text)
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewString(),
			SourceFile: sourceFile,
			ChunkIndex: i,
			Text:       part,
		})
	}
	return chunks
}
