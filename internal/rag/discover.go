package rag

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mufashe-rag/internal/models"
	"mufashe-rag/internal/processor"
)

// LoadCleanDocuments reads every cleaned .txt file in dir.
// Unreadable and blank files are skipped; invalid UTF-8 sequences are dropped.
func LoadCleanDocuments(dir string, logger *slog.Logger) ([]models.Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := processor.ListDocuments(dir, ".txt")
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Debug("skipping unreadable file", "file", path, "error", err)
			continue
		}
		text := strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
		if text == "" {
			logger.Debug("skipping empty file", "file", path)
			continue
		}
		docs = append(docs, models.Document{
			SourceFile: filepath.Base(path),
			Text:       text,
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no cleaned .txt files found in %s, run clean first", models.ErrEmptyInput, dir)
	}
	return docs, nil
}
