package main

import (
	"fmt"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Long: `List the built-in scenarios with their seed size and coherence.

Use 'coherence scenarios show <name>' to print a scenario as YAML; the output
is a valid starting point for a custom scenario file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			scorer := coherence.NewScorer(cfg.ScorerConfig())

			type entry struct {
				Name         string  `json:"name"`
				Description  string  `json:"description,omitempty"`
				Entities     int     `json:"entities"`
				Distinctions int     `json:"distinctions"`
				Coherence    float64 `json:"coherence"`
				Conflict     string  `json:"conflict,omitempty"`
			}

			var entries []entry
			for _, name := range scenario.Names() {
				sc, err := scenario.Builtin(name)
				if err != nil {
					return err
				}
				e := entry{
					Name:         sc.Name,
					Description:  sc.Description,
					Entities:     len(sc.Entities),
					Distinctions: len(sc.Scene),
					Coherence:    scorer.SceneCoherence(sc.Scene),
				}
				if sc.Conflict != nil {
					e.Conflict = sc.Conflict.String()
				}
				entries = append(entries, e)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %8s %12s %10s  %s\n", "Name", "Entities", "Distinctions", "Coherence", "Conflict")
			fmt.Fprintln(out, "--------------------------------------------------------------------")
			for _, e := range entries {
				conflict := e.Conflict
				if conflict == "" {
					conflict = "-"
				}
				fmt.Fprintf(out, "%-10s %8d %12d %10.3f  %s\n", e.Name, e.Entities, e.Distinctions, e.Coherence, conflict)
			}
			return nil
		},
	}

	cmd.AddCommand(newScenariosShowCmd())
	return cmd
}

func newScenariosShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name|path>",
		Short: "Print a scenario as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			sc, err := scenario.Resolve(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), sc.File())
			}

			data, err := yaml.Marshal(sc.File())
			if err != nil {
				return fmt.Errorf("encoding scenario: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
