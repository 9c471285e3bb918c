package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
	"github.com/nvandessel/coherence/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <scenario>",
		Short: "Render a scenario's scene as a graph",
		Long: `Output a scene in DOT (Graphviz) or JSON format. Edges are coloured by
aspect: the conflict aspect red, reward blue, priority green, value orange,
anything else purple.

By default the seed scene is drawn. --steps draws the scene a dynamics run
ends with instead, and --resolved draws the preferred repair of the
scenario's conflict.

Examples:
  coherence graph dilemma | dot -Tpng > dilemma.png
  coherence graph growth --steps 20 --seed 4 --format json
  coherence graph dilemma --resolved -o repaired.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			conflict, _ := cmd.Flags().GetString("conflict")
			title, _ := cmd.Flags().GetString("title")
			output, _ := cmd.Flags().GetString("output")
			resolved, _ := cmd.Flags().GetBool("resolved")
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut && !cmd.Flags().Changed("format") {
				formatFlag = string(visualization.FormatJSON)
			}

			format, err := visualization.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

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

			scorer := coherence.NewScorer(cfg.ScorerConfig())
			drawn := sc.Scene
			switch {
			case resolved && cmd.Flags().Changed("steps"):
				return fmt.Errorf("--resolved and --steps are mutually exclusive")
			case resolved:
				problem, err := sc.Problem()
				if err != nil {
					return err
				}
				result, err := resolution.NewSelector(cfg.ResolutionConfig(), scorer).Select(problem)
				if err != nil {
					return err
				}
				drawn = result.Best().Scene
			case cmd.Flags().Changed("steps"):
				loop := simulation.NewLoop(cfg.SimulationConfig(), scorer, simulation.NewRand(cfg.Dynamics.Seed))
				result, err := loop.Run(cmd.Context(), sc.State())
				if err != nil {
					return fmt.Errorf("simulation failed: %w", err)
				}
				drawn = result.Final.Scene
			}

			opts := visualization.Options{
				Title:    title,
				Conflict: scene.Aspect(conflict),
				Weight:   cfg.Scoring.Weight,
			}
			if opts.Title == "" {
				opts.Title = sc.Name
			}
			if opts.Conflict == "" && sc.Conflict != nil {
				opts.Conflict = sc.Conflict.Aspect
			}

			var buf bytes.Buffer
			switch format {
			case visualization.FormatDOT:
				buf.WriteString(visualization.RenderDOT(drawn, opts))
			case visualization.FormatJSON:
				if err := writeJSON(&buf, visualization.RenderJSON(drawn, opts)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("write graph: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Graph written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().String("conflict", "", "Aspect drawn in red (default: the scenario's conflict aspect)")
	cmd.Flags().String("title", "", "Graph title (default: the scenario name)")
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().Int("steps", 0, "Run the dynamics loop this many steps and draw the final scene")
	cmd.Flags().Uint64("seed", 0, "Random seed for --steps (default from config)")
	cmd.Flags().Bool("resolved", false, "Draw the preferred repair of the scenario's conflict")
	addWeightFlag(cmd)
	return cmd
}
