package main

import (
	"fmt"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/config"
	"github.com/nvandessel/coherence/internal/report"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <scenario>",
		Short: "Score the seed scene of a scenario",
		Long: `Print the relation coherence of every distinction in a scenario's seed
scene and the scene coherence (their mean).

The scenario is a built-in name (see 'coherence scenarios') or a path to a
scenario YAML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			applyWeightFlag(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			sc, err := scenario.Resolve(args[0])
			if err != nil {
				return err
			}

			scores, mean := coherence.NewScorer(cfg.ScorerConfig()).Breakdown(sc.Scene)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"scenario":     sc.Name,
					"weight":       cfg.Scoring.Weight,
					"coherence":    mean,
					"distinctions": len(sc.Scene),
					"scores":       scores,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scenario: %s (w=%g)\n\n", sc.Name, cfg.Scoring.Weight)
			return report.Breakdown(cmd.OutOrStdout(), scores, mean)
		},
	}

	addWeightFlag(cmd)
	return cmd
}

// addWeightFlag registers --weight on cmd.
func addWeightFlag(cmd *cobra.Command) {
	cmd.Flags().Float64("weight", 0, "Coherence weight w (default from config, 0.3)")
}

// applyWeightFlag copies an explicitly set --weight into cfg.
func applyWeightFlag(cmd *cobra.Command, cfg *config.CoherenceConfig) {
	if cmd.Flags().Changed("weight") {
		cfg.Scoring.Weight, _ = cmd.Flags().GetFloat64("weight")
	}
}
