package main

import (
	"time"

	"github.com/spf13/cobra"

	"mufashe-rag/internal/processor"
)

var (
	cleanIn  string
	cleanOut string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Extract and normalize text from law PDFs",
	Long: `Reads every PDF in the raw directory, strips repeated page headers, footers
and page numbers, and writes one normalized .txt file per PDF to the clean directory.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanIn, "in", "", "raw PDF directory (default paths.raw_dir)")
	cleanCmd.Flags().StringVar(&cleanOut, "out", "", "output directory (default paths.clean_dir)")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, _ []string) error {
	inDir := cleanIn
	if inDir == "" {
		inDir = cfg.Paths.RawDir
	}
	outDir := cleanOut
	if outDir == "" {
		outDir = cfg.Paths.CleanDir
	}

	pdfProcessor := processor.NewPDFProcessor(processor.NewNormalizer(cfg.Normalize), log)

	startTime := time.Now()
	results, err := pdfProcessor.CleanDirectory(cmd.Context(), inDir, outDir)
	if err != nil {
		return err
	}

	for _, r := range results {
		cmd.Printf("  %s -> %s (%d pages, %d headers, %d footers)\n",
			r.SourceFile, r.OutputPath, r.Pages, len(r.Headers), len(r.Footers))
	}
	cmd.Printf("Cleaned %d documents into %s in %v\n",
		len(results), outDir, time.Since(startTime).Round(time.Millisecond))
	return nil
}
