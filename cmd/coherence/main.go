package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nvandessel/coherence/internal/config"
	"github.com/nvandessel/coherence/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coherence",
		Short: "Relational-coherence simulation engine",
		Long: `coherence models a scene of directed, aspect-labelled relations between
entities, scores how mutually coherent the relations are, runs a seeded
expand/contract/diversify dynamics loop over the scene, and picks the best
repair strategy for a conflicting relation.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.coherence/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newScoreCmd(),
		newSimulateCmd(),
		newResolveCmd(),
		newGraphCmd(),
		newScenariosCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadSettings resolves the effective configuration: the --config file or
// ~/.coherence/config.yaml, environment overrides, then --log-level.
func loadSettings(cmd *cobra.Command) (*config.CoherenceConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.CoherenceConfig
	var err error
	if path != "" {
		cfg, err = config.LoadOverride(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger for a command.
func newLogger(cmd *cobra.Command, cfg *config.CoherenceConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newDecisionLogger opens the decision log when the level asks for one.
// The result is nil at info level; all its methods are nil-safe.
func newDecisionLogger(cfg *config.CoherenceConfig) *logging.DecisionLogger {
	dir, err := cfg.LogDir()
	if err != nil {
		return nil
	}
	return logging.NewDecisionLogger(dir, cfg.Logging.Level)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
