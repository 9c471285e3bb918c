package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/nvandessel/coherence/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage coherence configuration",
		Long: `View and modify coherence configuration settings.

Configuration is stored in ~/.coherence/config.yaml, or in the file named
by --config.

Examples:
  coherence config list                        # Show all settings
  coherence config get scoring.weight          # Get a specific setting
  coherence config set dynamics.steps 30       # Set a setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			out := cmd.OutOrStdout()
			path, _ := configPath(cmd)
			fmt.Fprintf(out, "Configuration (%s):\n\n", path)
			fmt.Fprintln(out, "Scoring:")
			fmt.Fprintf(out, "  scoring.weight:                %g\n", cfg.Scoring.Weight)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Dynamics:")
			fmt.Fprintf(out, "  dynamics.steps:                %d\n", cfg.Dynamics.Steps)
			fmt.Fprintf(out, "  dynamics.seed:                 %d\n", cfg.Dynamics.Seed)
			fmt.Fprintf(out, "  dynamics.low_threshold:        %g\n", cfg.Dynamics.LowThreshold)
			fmt.Fprintf(out, "  dynamics.high_threshold:       %g\n", cfg.Dynamics.HighThreshold)
			fmt.Fprintf(out, "  dynamics.min_scene_size:       %d\n", cfg.Dynamics.MinSceneSize)
			fmt.Fprintf(out, "  dynamics.diversify_proposals:  %d\n", cfg.Dynamics.DiversifyProposals)
			fmt.Fprintf(out, "  dynamics.entity_prefix:        %s\n", cfg.Dynamics.EntityPrefix)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Resolution:")
			fmt.Fprintf(out, "  resolution.bonus_factor:       %g\n", cfg.Resolution.BonusFactor)
			fmt.Fprintf(out, "  resolution.retention_threshold: %g\n", cfg.Resolution.RetentionThreshold)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  logging.level:                 %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintf(out, "  logging.dir:                   %s\n", valueOrDefault(cfg.Logging.Dir, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store:")
			fmt.Fprintf(out, "  store.path:                    %s\n", valueOrDefault(cfg.Store.Path, "(default)"))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			// Environment overrides are not persisted, so start from the file alone.
			cfg, err := config.LoadFromFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				cfg, err = config.Default(), nil
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// configPath returns the --config path, or ~/.coherence/config.yaml.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.FilePath()
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.CoherenceConfig, key string) (any, bool) {
	switch key {
	case "scoring.weight":
		return cfg.Scoring.Weight, true
	case "dynamics.steps":
		return cfg.Dynamics.Steps, true
	case "dynamics.seed":
		return cfg.Dynamics.Seed, true
	case "dynamics.low_threshold":
		return cfg.Dynamics.LowThreshold, true
	case "dynamics.high_threshold":
		return cfg.Dynamics.HighThreshold, true
	case "dynamics.min_scene_size":
		return cfg.Dynamics.MinSceneSize, true
	case "dynamics.diversify_proposals":
		return cfg.Dynamics.DiversifyProposals, true
	case "dynamics.entity_prefix":
		return cfg.Dynamics.EntityPrefix, true
	case "resolution.bonus_factor":
		return cfg.Resolution.BonusFactor, true
	case "resolution.retention_threshold":
		return cfg.Resolution.RetentionThreshold, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.dir":
		return cfg.Logging.Dir, true
	case "store.path":
		return cfg.Store.Path, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.CoherenceConfig, key, value string) error {
	switch key {
	case "scoring.weight":
		return setFloat(&cfg.Scoring.Weight, key, value)
	case "dynamics.steps":
		return setInt(&cfg.Dynamics.Steps, key, value)
	case "dynamics.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s (must be a non-negative integer)", key, value)
		}
		cfg.Dynamics.Seed = n
	case "dynamics.low_threshold":
		return setFloat(&cfg.Dynamics.LowThreshold, key, value)
	case "dynamics.high_threshold":
		return setFloat(&cfg.Dynamics.HighThreshold, key, value)
	case "dynamics.min_scene_size":
		return setInt(&cfg.Dynamics.MinSceneSize, key, value)
	case "dynamics.diversify_proposals":
		return setInt(&cfg.Dynamics.DiversifyProposals, key, value)
	case "dynamics.entity_prefix":
		cfg.Dynamics.EntityPrefix = value
	case "resolution.bonus_factor":
		return setFloat(&cfg.Resolution.BonusFactor, key, value)
	case "resolution.retention_threshold":
		return setFloat(&cfg.Resolution.RetentionThreshold, key, value)
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.dir":
		cfg.Logging.Dir = value
	case "store.path":
		cfg.Store.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %s (must be a number)", key, value)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	*dst = n
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
