// Package handlers defines the CLI surface: the root command, the pipeline
// run command, and maintenance subcommands.
package handlers

import (
	"fmt"
	"os"

	"curateai/internal/config"
	"curateai/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curateai",
		Short: "Curated AI-content digest pipeline",
		Long: `CurateAI - Opinionated AI Content Digest

Collects AI/ML content from RSS feeds, Reddit, web search, and arXiv,
filters it for practical relevance, generates opinionated angles, removes
redundant takes, and delivers a bounded digest to Slack.

Examples:
  # Run the full pipeline
  curateai run

  # Preview without persisting or notifying
  curateai run --dry-run

  # Widen the lookback window to a week
  curateai run --days 7

  # Show recent runs
  curateai runs

  # Verify the Slack webhook
  curateai notify-test`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewRunsCmd())
	rootCmd.AddCommand(NewNotifyTestCmd())

	cobra.OnInitialize(initConfig)

	return rootCmd
}

// initConfig loads .env, the config file, and environment variables.
func initConfig() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		loaded = &config.Config{}
	}
	cfg = loaded

	if cfg.App.Debug {
		logger.SetLevel("debug")
	} else if cfg.App.LogLevel != "" {
		logger.SetLevel(cfg.App.LogLevel)
	}
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
