// Package cli wires the golem commands: the interactive chat session,
// dynamic-tool management, event-log analysis, and config scaffolding.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klubi/golem/internal/config"
)

// configPath is set by the root command's --config flag.
var configPath string

// NewRootCmd creates the top-level golem CLI command with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "golem",
		Short: "A conversational agent that builds its own tools",
		Long: `Golem is a terminal chat agent backed by a streaming completion API.
It plans multi-step work, executes tools, and can synthesize new
tools at runtime that persist across sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: <data-dir>/config.yaml)")

	cmd.AddCommand(
		newChatCmd(),
		newToolsCmd(),
		newLogsCmd(),
		newInitCmd(),
	)

	return cmd
}

// loadConfig loads and validates configuration for commands that talk
// to the API.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the zap logger from config.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	var zc zap.Config
	if cfg.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	// Keep structured logs off the conversation's stdout.
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
