package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mufashe-rag/internal/models"
)

const (
	// DefaultModel is the completion model used when none is configured
	DefaultModel = "gpt-4.1-mini"
	// DefaultTemperature keeps answers close to the sources
	DefaultTemperature = 0.2
)

// InsufficientInformation is returned verbatim when no sources support an answer
const InsufficientInformation = "I don't have enough verified information in the provided sources to answer this question. " +
	"This is legal information, not professional legal advice."

const systemPrompt = `You are MUFASHE, a legal information assistant for Rwanda.
Use ONLY the provided sources. Do NOT invent penalty rates or legal rules.
If the sources don't contain the rule, say you don't have enough verified information.
Write in simple student language and be practical.
`

const answerFormat = `Answer format:
Title: (one line)
Quick answer: (2-3 lines)
Steps to follow: (3-6 bullet points)
What penalties may exist: (only if sources clearly support it)
Sources used: list [#] file + chunk
End with: This is legal information, not professional legal advice.
`

// AssemblerOptions configures the completion call
type AssemblerOptions struct {
	Model       string
	Temperature float64
}

// DefaultAssemblerOptions returns the model and temperature used for legal answers
func DefaultAssemblerOptions() AssemblerOptions {
	return AssemblerOptions{Model: DefaultModel, Temperature: DefaultTemperature}
}

// Assembler builds the grounded prompt and validates the model's reply
type Assembler struct {
	completer Completer
	opts      AssemblerOptions
}

// NewAssembler creates an assembler. A nil completer is allowed; Answer then fails with ErrConfiguration.
func NewAssembler(completer Completer, opts AssemblerOptions) *Assembler {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Assembler{completer: completer, opts: opts}
}

// Model returns the configured completion model
func (a *Assembler) Model() string {
	return a.opts.Model
}

// BuildSourcesBlock labels each source as "[i] <file> (chunk <n>)" followed by its text,
// numbered from 1 and separated by blank lines
func BuildSourcesBlock(sources []models.RetrievedSource) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("[%d] %s (chunk %d)\n%s", i+1, s.SourceFile, s.ChunkIndex, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt returns the system and user messages for a question and its sources
func BuildPrompt(question string, sources []models.RetrievedSource) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	fmt.Fprintf(&b, "Sources:\n%s\n\n", BuildSourcesBlock(sources))
	b.WriteString(answerFormat)
	return systemPrompt, b.String()
}

// Answer asks the completion service to answer question using only sources.
// Without sources the fixed insufficient-information reply is returned and no call is made.
func (a *Assembler) Answer(ctx context.Context, question string, sources []models.RetrievedSource) (string, error) {
	if a.completer == nil {
		return "", fmt.Errorf("%w: no completion service configured, set OPENAI_API_KEY or use the ollama provider", models.ErrConfiguration)
	}

	if len(sources) == 0 {
		return InsufficientInformation, nil
	}

	system, user := BuildPrompt(question, sources)
	reply, err := a.completer.Complete(ctx, models.CompletionRequest{
		System:      system,
		User:        user,
		Model:       a.opts.Model,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return "", upstreamUnlessConfig("failed to generate answer", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: completion service returned an empty answer", models.ErrUpstream)
	}
	return reply, nil
}

// upstreamUnlessConfig keeps configuration errors such as a missing key distinct from service failures
func upstreamUnlessConfig(msg string, err error) error {
	if errors.Is(err, models.ErrConfiguration) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return upstream(msg, err)
}
