package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mufashe-rag/internal/config"
	"mufashe-rag/internal/models"
)

var (
	configPath  string
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configPath, "path", config.DefaultPath, "where to write the config file")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if !configForce {
		_, err := os.Stat(configPath)
		if err == nil {
			return fmt.Errorf("%w: %s already exists, use --force to overwrite", models.ErrConfiguration, configPath)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: stat %s: %w", models.ErrConfiguration, configPath, err)
		}
	}

	if err := config.Save(configPath, config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	cmd.Printf("Wrote %s\n", configPath)
	return nil
}
