package main

import (
	"fmt"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/config"
	"github.com/nvandessel/coherence/internal/report"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/nvandessel/coherence/internal/simulation"
	"github.com/nvandessel/coherence/internal/store"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario>",
		Short: "Run the coherence dynamics loop on a scenario",
		Long: `Run the seeded dynamics loop from a scenario's seed scene. Each step
observes the scene coherence, then expands (below the low threshold),
contracts (above the high threshold on even steps), or diversifies.

Identical seeds reproduce identical runs. With --record the run is stored in
the run store for 'coherence runs'.

Examples:
  coherence simulate growth
  coherence simulate growth --steps 30 --seed 7
  coherence simulate ./my-scene.yaml --record`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			record, _ := cmd.Flags().GetBool("record")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			applyWeightFlag(cmd, cfg)
			if cmd.Flags().Changed("steps") {
				cfg.Dynamics.Steps, _ = cmd.Flags().GetInt("steps")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Dynamics.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sc, err := scenario.Resolve(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := newLogger(cmd, cfg)
			decisions := newDecisionLogger(cfg)
			defer decisions.Close()

			simCfg := cfg.SimulationConfig()
			scorer := coherence.NewScorer(cfg.ScorerConfig())
			initial := sc.State()

			var sinks []simulation.HistorySink
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Scenario: %s   seed %d   steps %d   w=%g\n\n",
					sc.Name, cfg.Dynamics.Seed, simCfg.Steps, cfg.Scoring.Weight)
				sinks = append(sinks, report.NewHistoryWriter(cmd.OutOrStdout()))
			}

			var run *store.Run
			if record {
				runs, err := openRunStore(cfg)
				if err != nil {
					return err
				}
				defer runs.Close()

				run, err = runs.BeginRun(ctx, store.RunInfo{
					Kind:     store.KindSimulate,
					Scenario: sc.Name,
					Seed:     cfg.Dynamics.Seed,
					Config:   cfg,
					Scene:    initial.Scene,
				})
				if err != nil {
					return fmt.Errorf("recording run: %w", err)
				}
				sinks = append(sinks, run)
			}

			loop := simulation.NewLoop(simCfg, scorer, simulation.NewRand(cfg.Dynamics.Seed)).
				WithLogger(logger).
				WithDecisionLogger(decisions)
			result, err := loop.Run(ctx, initial, sinks...)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			finalCoherence := scorer.SceneCoherence(result.Final.Scene)
			if run != nil {
				if err := run.Finish(ctx, result.Final.Scene, finalCoherence); err != nil {
					return fmt.Errorf("recording run: %w", err)
				}
			}

			if jsonOut {
				out := map[string]any{
					"scenario":        sc.Name,
					"seed":            cfg.Dynamics.Seed,
					"steps":           simCfg.Steps,
					"history":         result.History,
					"final_scene":     result.Final.Scene,
					"final_coherence": finalCoherence,
					"final_entities":  result.Final.Entities.Slice(),
				}
				if run != nil {
					out["run_id"] = run.ID
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			if err := report.Summary(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if showScene, _ := cmd.Flags().GetBool("show-scene"); showScene {
				if err := report.Scene(cmd.OutOrStdout(), result.Final.Scene); err != nil {
					return err
				}
			}
			if run != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded run %s\n", run.ID)
			}
			return nil
		},
	}

	cmd.Flags().Int("steps", 0, "Number of steps (default from config, 15)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config, 1)")
	cmd.Flags().Bool("record", false, "Persist the run to the run store")
	cmd.Flags().Bool("show-scene", false, "Print the final scene's distinctions")
	addWeightFlag(cmd)
	return cmd
}

// openRunStore opens the configured SQLite run store.
func openRunStore(cfg *config.CoherenceConfig) (*store.RunStore, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runs, nil
}
