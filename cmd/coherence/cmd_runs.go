package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/report"
	"github.com/nvandessel/coherence/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
		Long: `List, show, and delete runs recorded with 'simulate --record' or
'resolve --record'. Run IDs may be abbreviated to any unique prefix.`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			runs, err := openRunStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			summaries, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				if summaries == nil {
					summaries = []store.RunSummary{}
				}
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No recorded runs. Use --record with simulate or resolve.")
				return nil
			}
			fmt.Fprintf(out, "%-8s  %-8s  %-12s %6s %10s  %s\n", "ID", "Kind", "Scenario", "Seed", "Coherence", "Created")
			fmt.Fprintln(out, "--------------------------------------------------------------------------")
			for _, r := range summaries {
				fmt.Fprintf(out, "%-8s  %-8s  %-12s %6s %10s  %s\n",
					shortID(r.ID), r.Kind, truncate(r.Scenario, 12), seedColumn(r), coherenceColumn(r.FinalCoherence),
					r.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			runs, err := openRunStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			detail, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), detail)
			}
			return printRun(cmd.OutOrStdout(), detail)
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			runs, err := openRunStore(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			detail, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := runs.DeleteRun(cmd.Context(), detail.ID); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "id": detail.ID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", detail.ID)
			return nil
		},
	}
}

// printRun writes a run's header followed by its history or candidate table.
func printRun(w io.Writer, d *store.RunDetail) error {
	fmt.Fprintf(w, "Run:       %s\n", d.ID)
	fmt.Fprintf(w, "Kind:      %s\n", d.Kind)
	fmt.Fprintf(w, "Scenario:  %s\n", d.Scenario)
	if d.Kind == store.KindSimulate {
		fmt.Fprintf(w, "Seed:      %d\n", d.Seed)
	}
	fmt.Fprintf(w, "Created:   %s\n", d.CreatedAt.Local().Format(time.DateTime))
	if d.FinishedAt == nil {
		fmt.Fprintln(w, "Status:    unfinished")
	}
	fmt.Fprintf(w, "Seed scene: %d distinctions\n", len(d.SeedScene))
	if d.FinalCoherence != nil {
		fmt.Fprintf(w, "Final:      %d distinctions, coherence %.*f\n",
			len(d.FinalScene), constants.CoherenceDisplayPrecision, *d.FinalCoherence)
	}
	fmt.Fprintln(w)

	switch d.Kind {
	case store.KindSimulate:
		h := report.NewHistoryWriter(w)
		for _, rec := range d.History {
			if err := h.RecordStep(context.Background(), rec); err != nil {
				return err
			}
		}
	case store.KindResolve:
		printCandidateRows(w, d.Candidates)
	}
	return nil
}

func printCandidateRows(w io.Writer, rows []store.CandidateRow) {
	p := constants.CoherenceDisplayPrecision
	fmt.Fprintf(w, "  %-18s %-9s %-26s %9s %9s %5s %9s\n", "Aspect", "Family", "Derived", "C(S*)", "Delta", "Aux", "Score")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------")
	for _, r := range rows {
		marker := " "
		if r.Selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %-9s %-26s %9.*f %9.*f %5d %9.*f\n",
			marker, truncate(string(r.Aspect), 18), r.Family, truncate(string(r.DerivedAspect), 26),
			p, r.Coherence, p, r.Delta, len(r.Auxiliary), p, r.Score)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func seedColumn(r store.RunSummary) string {
	if r.Kind != store.KindSimulate {
		return "-"
	}
	return fmt.Sprintf("%d", r.Seed)
}

func coherenceColumn(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", constants.CoherenceDisplayPrecision, *c)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
