package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Verbose: true, Output: &buf})

	l.Debug("skipping empty file", "file", "empty.txt")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "file=empty.txt")
}

func TestNew_NotVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Info("stored batch", "stored", 64)
	assert.Contains(t, buf.String(), "stored=64")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "JSON", Output: &buf})

	l.Info("ingest complete", "chunks", 8)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ingest complete", record["msg"])
	assert.Equal(t, float64(8), record["chunks"])
}
