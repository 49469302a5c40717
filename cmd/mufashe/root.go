package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mufashe-rag/internal/config"
	"mufashe-rag/internal/logger"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mufashe",
	Short: "Legal question answering over Rwandan law documents",
	Long: `mufashe cleans law and case PDFs, indexes them into a similarity store
and answers questions grounded in the retrieved passages.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./mufashe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setup loads .env and the config file, then installs the logger
func setup(cmd *cobra.Command, _ []string) error {
	// .env is optional
	_ = godotenv.Load()

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	log = logger.Setup(logger.Options{
		Verbose: verbose,
		Format:  cfg.Log.Format,
		Output:  cmd.ErrOrStderr(),
	})
	log.Debug("configuration loaded",
		"store", cfg.Store.Backend,
		"collection", cfg.Store.Collection,
		"embedding_model", cfg.Embedding.Model,
		"completion_provider", cfg.Completion.Provider)
	return nil
}

func printErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}
