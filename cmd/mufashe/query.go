package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mufashe-rag/internal/models"
	"mufashe-rag/internal/rag"
	"mufashe-rag/internal/server"
)

// PreviewChars is the length of the single-line match preview
const PreviewChars = 700

var (
	queryAnswer bool
	querySource string
	queryTopK   int
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question...]",
	Short: "Search the index and optionally answer a question",
	Long: `Prints the passages nearest to the question. With --answer the passages
are sent to the language model and a grounded answer is printed with its sources.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVarP(&queryAnswer, "answer", "a", false, "generate an answer from the retrieved sources")
	queryCmd.Flags().StringVarP(&querySource, "source", "s", "", "restrict retrieval to one source file")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default retrieval.top_k)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	service, store, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := rag.RetrieveOptions{TopK: queryTopK, SourceFile: querySource}

	if !queryAnswer {
		sources, err := service.Search(ctx, question, opts)
		if err != nil {
			return fmt.Errorf("failed to process query: %w", err)
		}
		if queryJSON {
			return printJSON(cmd, sources)
		}
		cmd.Print(formatMatches(sources))
		return nil
	}

	startTime := time.Now()
	answer, err := service.Ask(ctx, question, opts)
	if err != nil {
		return fmt.Errorf("failed to process query: %w", err)
	}
	log.Debug("query processed", "duration", time.Since(startTime).Round(time.Millisecond))

	if queryJSON {
		return printJSON(cmd, answer)
	}
	cmd.Println(formatAnswer(answer))
	return nil
}

func formatMatches(sources []models.RetrievedSource) string {
	if len(sources) == 0 {
		return "No matches found.\n"
	}

	var sb strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&sb, "[%d] %s (chunk %d)\n", i+1, src.SourceFile, src.ChunkIndex)
		fmt.Fprintf(&sb, "    %s\n\n", server.Snippet(src.Text, PreviewChars))
	}
	return sb.String()
}

func formatAnswer(answer *models.Answer) string {
	var sb strings.Builder

	sb.WriteString(answer.Answer)
	sb.WriteString("\n\n")

	if len(answer.Sources) > 0 {
		sb.WriteString("Sources:\n")
		for i, src := range answer.Sources {
			fmt.Fprintf(&sb, "  %d. [%s, chunk %d]\n", i+1, src.SourceFile, src.ChunkIndex)
		}
	}

	return sb.String()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
