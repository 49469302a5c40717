package processor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mufashe-rag/internal/models"
)

func TestNewChunker(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
		require.NoError(t, err)
		assert.Equal(t, 900, c.ChunkSize)
		assert.Equal(t, 150, c.Overlap)
	})

	t.Run("overlap equal to chunk size", func(t *testing.T) {
		_, err := NewChunker(100, 100)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("overlap larger than chunk size", func(t *testing.T) {
		_, err := NewChunker(100, 150)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("non-positive chunk size", func(t *testing.T) {
		_, err := NewChunker(0, 0)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("negative overlap", func(t *testing.T) {
		_, err := NewChunker(100, -1)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestPrepareText(t *testing.T) {
	got := PrepareText("  a\r\n\r\n\r\nb   c\t\td  ")
	assert.Equal(t, "a\n\nb c d", got)
}

func TestChunker_Split_Empty(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\n  "))
}

func TestChunker_Split_ShortText(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	chunks := c.Split("  Article 1. This law applies to everyone.  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Article 1. This law applies to everyone.", chunks[0])
}

func TestChunker_Split_Windows(t *testing.T) {
	c, err := NewChunker(900, 150)
	require.NoError(t, err)

	text := strings.Repeat("0123456789", 200)
	chunks := c.Split(text)

	// windows [0,900) [750,1650) [1500,2000)
	require.Len(t, chunks, 3)
	assert.Equal(t, text[0:900], chunks[0])
	assert.Equal(t, text[750:1650], chunks[1])
	assert.Equal(t, text[1500:2000], chunks[2])

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-150:], chunks[i][:150], "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestChunker_Split_CountsRunes(t *testing.T) {
	c, err := NewChunker(900, 150)
	require.NoError(t, err)

	text := strings.Repeat("é", 1000)
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 900, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 250, utf8.RuneCountInString(chunks[1]))
}

func TestChunker_Split_Bounds(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("Every person has the right to life. ", 40)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	text := strings.Repeat("The court may order compensation. ", 20)
	chunks := c.Chunk("penal_code.txt", text)

	require.Greater(t, len(chunks), 1)
	seen := make(map[string]bool)
	for i, chunk := range chunks {
		assert.Equal(t, "penal_code.txt", chunk.SourceFile)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.ID)
		assert.False(t, seen[chunk.ID], "duplicate chunk id %s", chunk.ID)
		seen[chunk.ID] = true
	}
}

func TestChunker_Chunk_Empty(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk("empty.txt", ""))
}
