package main

import (
	"fmt"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/report"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/nvandessel/coherence/internal/store"
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <scenario>",
		Short: "Pick the best repair strategy for a scenario's conflict",
		Long: `Evaluate one candidate repair per aspect of the scenario's vocabulary
(minus the conflict aspect). Each candidate keeps the distinctions of the
seed scene whose relation coherence reaches the retention threshold, adds the
aspect family's primary and auxiliary distinctions, and is scored by its
coherence gain weighted by a structural bonus. The highest score wins; ties
go to the aspect listed first.

Examples:
  coherence resolve dilemma
  coherence resolve dilemma --json
  coherence resolve ./conflict.yaml --record`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			record, _ := cmd.Flags().GetBool("record")

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
			problem, err := sc.Problem()
			if err != nil {
				return err
			}

			decisions := newDecisionLogger(cfg)
			defer decisions.Close()

			selector := resolution.NewSelector(cfg.ResolutionConfig(), coherence.NewScorer(cfg.ScorerConfig())).
				WithLogger(newLogger(cmd, cfg)).
				WithDecisionLogger(decisions)
			result, err := selector.Select(problem)
			if err != nil {
				return err
			}

			var sinks []resolution.TableSink
			if !jsonOut {
				sinks = append(sinks, report.NewCandidateWriter(cmd.OutOrStdout()))
			}

			var runID string
			if record {
				runs, err := openRunStore(cfg)
				if err != nil {
					return err
				}
				defer runs.Close()

				run, err := runs.BeginRun(cmd.Context(), store.RunInfo{
					Kind:     store.KindResolve,
					Scenario: sc.Name,
					Config:   cfg,
					Scene:    problem.Scene,
				})
				if err != nil {
					return fmt.Errorf("recording run: %w", err)
				}
				runID = run.ID
				sinks = append(sinks, run)
			}

			for _, sink := range sinks {
				if err := sink.RecordResolution(cmd.Context(), result); err != nil {
					return err
				}
			}

			if jsonOut {
				out := map[string]any{
					"scenario":   sc.Name,
					"conflict":   result.Conflict,
					"baseline":   result.Baseline,
					"retained":   result.Retained,
					"candidates": result.Candidates,
					"preferred":  result.Best(),
				}
				if runID != "" {
					out["run_id"] = runID
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			if runID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nRecorded run %s\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("record", false, "Persist the candidate table to the run store")
	addWeightFlag(cmd)
	return cmd
}
