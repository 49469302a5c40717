// internal/processor/pdf.go
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mufashe-rag/internal/models"

	"github.com/ledongthuc/pdf"
)

// maxLoggedBoilerplate caps how many detected headers/footers are logged per document
const maxLoggedBoilerplate = 8

// PDFProcessor turns raw legal documents into cleaned text files
type PDFProcessor struct {
	normalizer *Normalizer
	logger     *slog.Logger
}

// CleanResult describes one cleaned document
type CleanResult struct {
	SourceFile string
	OutputPath string
	Pages      int
	Headers    []string
	Footers    []string
}

// NewPDFProcessor creates a new PDF processor
func NewPDFProcessor(normalizer *Normalizer, logger *slog.Logger) *PDFProcessor {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultBoilerplateOptions())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFProcessor{
		normalizer: normalizer,
		logger:     logger,
	}
}

// ExtractPages returns the raw text of every page of a PDF file.
// Plain-text files are also accepted, with form feeds marking page breaks.
func (p *PDFProcessor) ExtractPages(filePath string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".txt") {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read text file: %w", err)
		}
		return strings.Split(string(data), "\f"), nil
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return pages, nil
}

// ProcessFile extracts and normalizes a single document
func (p *PDFProcessor) ProcessFile(filePath string) (models.Document, models.HeaderFooterSet, error) {
	pages, err := p.ExtractPages(filePath)
	if err != nil {
		return models.Document{}, models.HeaderFooterSet{}, fmt.Errorf("failed to extract text: %w", err)
	}

	text, boilerplate := p.normalizer.NormalizeWithBoilerplate(pages)

	doc := models.Document{
		SourceFile: filepath.Base(filePath),
		Pages:      pages,
		Text:       text,
	}
	return doc, boilerplate, nil
}

// CleanDirectory cleans every PDF in inDir and writes one <stem>.txt per document into outDir
func (p *PDFProcessor) CleanDirectory(ctx context.Context, inDir, outDir string) ([]CleanResult, error) {
	files, err := ListDocuments(inDir, ".pdf", ".txt")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no PDFs found in %s", models.ErrEmptyInput, inDir)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]CleanResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		doc, boilerplate, err := p.ProcessFile(path)
		if err != nil {
			return results, fmt.Errorf("failed to clean %s: %w", filepath.Base(path), err)
		}

		stem := strings.TrimSuffix(doc.SourceFile, filepath.Ext(doc.SourceFile))
		outPath := filepath.Join(outDir, stem+".txt")
		if err := os.WriteFile(outPath, []byte(doc.Text), 0o644); err != nil {
			return results, fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		result := CleanResult{
			SourceFile: doc.SourceFile,
			OutputPath: outPath,
			Pages:      len(doc.Pages),
			Headers:    sortedLines(boilerplate.Headers),
			Footers:    sortedLines(boilerplate.Footers),
		}
		results = append(results, result)

		p.logger.Info("cleaned document",
			"file", result.SourceFile,
			"pages", result.Pages,
			"output", result.OutputPath,
			"chars", len([]rune(doc.Text)))
		if len(result.Headers) > 0 {
			p.logger.Info("detected headers", "file", result.SourceFile, "lines", firstN(result.Headers, maxLoggedBoilerplate))
		}
		if len(result.Footers) > 0 {
			p.logger.Info("detected footers", "file", result.SourceFile, "lines", firstN(result.Footers, maxLoggedBoilerplate))
		}
	}

	return results, nil
}

// ListDocuments returns the sorted paths of regular files in dir whose extension
// matches one of exts, case-insensitively. A missing directory is a configuration error.
func ListDocuments(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: input directory %s does not exist", models.ErrConfiguration, dir)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		for _, want := range exts {
			if strings.EqualFold(ext, want) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func sortedLines(set map[string]struct{}) []string {
	lines := make([]string, 0, len(set))
	for line := range set {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

func firstN(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}
