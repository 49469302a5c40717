package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"mufashe-rag/internal/models"
)

// DefaultMinQuestionChars rejects questions too short to embed meaningfully
const DefaultMinQuestionChars = 3

// Service answers questions over an ingested collection
type Service struct {
	retriever        *Retriever
	assembler        *Assembler
	store            VectorStore
	minQuestionChars int
	logger           *slog.Logger
}

// NewService creates the question answering service
func NewService(retriever *Retriever, assembler *Assembler, store VectorStore, minQuestionChars int, logger *slog.Logger) *Service {
	if minQuestionChars <= 0 {
		minQuestionChars = DefaultMinQuestionChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever:        retriever,
		assembler:        assembler,
		store:            store,
		minQuestionChars: minQuestionChars,
		logger:           logger,
	}
}

// ValidateQuestion trims the question and enforces the minimum length
func (s *Service) ValidateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) < s.minQuestionChars {
		return "", fmt.Errorf("%w: question is required (min %d chars)", models.ErrInvalidInput, s.minQuestionChars)
	}
	return question, nil
}

// MinQuestionChars is the shortest question accepted
func (s *Service) MinQuestionChars() int {
	return s.minQuestionChars
}

// TopK returns the effective number of chunks retrieved for a requested top_k
func (s *Service) TopK(requested int) int {
	return s.retriever.TopK(requested)
}

// Search returns the deduplicated sources for a question without calling the language model
func (s *Service) Search(ctx context.Context, question string, opts RetrieveOptions) ([]models.RetrievedSource, error) {
	question, err := s.ValidateQuestion(question)
	if err != nil {
		return nil, err
	}
	return s.retriever.Retrieve(ctx, question, opts)
}

// Ask retrieves sources for the question and generates a grounded answer
func (s *Service) Ask(ctx context.Context, question string, opts RetrieveOptions) (*models.Answer, error) {
	question, err := s.ValidateQuestion(question)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	sources, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	answer, err := s.assembler.Answer(ctx, question, sources)
	if err != nil {
		return nil, err
	}

	s.logger.Info("answered question",
		"sources", len(sources),
		"source_file", opts.SourceFile,
		"duration", time.Since(startTime).Round(time.Millisecond))

	return &models.Answer{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Model:     s.assembler.Model(),
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

// Sources lists the source files present in the collection
func (s *Service) Sources(ctx context.Context) ([]string, error) {
	sources, err := s.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}
