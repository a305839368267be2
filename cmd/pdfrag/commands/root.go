// Package commands holds the pdfrag CLI: the HTTP server plus one-shot
// ingest and ask commands that share the server's wiring.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

var (
	configFile string
	quiet      bool
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfrag",
		Short: "Ask questions about a PDF",
		Long: `pdfrag embeds one PDF into a vector index and answers questions
about it with a chat model.

Configuration comes from the environment, an optional .env file and an
optional YAML file (--config or CONFIG_FILE).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Discard log output")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads configuration and builds the logger shared by a command run.
func setup() (config.Config, *logger.Logger, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return config.Config{}, nil, fmt.Errorf("setting CONFIG_FILE: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	if quiet {
		return cfg, logger.Nop(), nil
	}
	return cfg, logger.New(cfg.LogFilePath, cfg.IsProduction()), nil
}
