// Package report formats run histories, coherence breakdowns, and candidate
// tables as plain-text tables.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
)

const (
	historyRuleWidth   = 72
	candidateRuleWidth = 96
)

// HistoryWriter prints one table row per step as records arrive. It
// implements simulation.HistorySink.
type HistoryWriter struct {
	w         io.Writer
	precision int
	header    bool
}

// NewHistoryWriter creates a streaming history table on w.
func NewHistoryWriter(w io.Writer) *HistoryWriter {
	return &HistoryWriter{w: w, precision: constants.CoherenceDisplayPrecision}
}

// RecordStep writes the header on the first call, then the row for rec.
func (h *HistoryWriter) RecordStep(_ context.Context, rec simulation.Record) error {
	if !h.header {
		if _, err := fmt.Fprintf(h.w, "%5s %5s %10s  %-10s %s\n", "Step", "Size", "Coherence", "Action", "Change"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(h.w, rule(historyRuleWidth)); err != nil {
			return err
		}
		h.header = true
	}
	_, err := fmt.Fprintf(h.w, "%5d %5d %10.*f  %-10s %s\n",
		rec.Step, rec.Size, h.precision, rec.Coherence, rec.Action, change(rec))
	return err
}

// History writes the full history table of a completed run followed by a
// one-line summary of the final scene.
func History(w io.Writer, result simulation.Result) error {
	h := NewHistoryWriter(w)
	for _, rec := range result.History {
		if err := h.RecordStep(context.Background(), rec); err != nil {
			return err
		}
	}
	return Summary(w, result)
}

// Summary writes the one-line final scene summary of a run.
func Summary(w io.Writer, result simulation.Result) error {
	counts := result.ActionCounts()
	_, err := fmt.Fprintf(w, "\nFinal scene: %d distinctions, %d entities (expand %d, contract %d, diversify %d)\n",
		len(result.Final.Scene), result.Final.Entities.Len(),
		counts[simulation.ActionExpand], counts[simulation.ActionContract], counts[simulation.ActionDiversify])
	return err
}

// Breakdown writes the per-distinction coherence of a scene and its mean.
func Breakdown(w io.Writer, scores []coherence.Score, mean float64) error {
	fmt.Fprintf(w, "%4s  %-40s %10s\n", "#", "Distinction", "Coherence")
	fmt.Fprintln(w, rule(56))
	for _, s := range scores {
		fmt.Fprintf(w, "%4d  %-40s %10.*f\n", s.Index, truncate(s.Distinction.String(), 40), constants.CoherenceDisplayPrecision, s.Coherence)
	}
	_, err := fmt.Fprintf(w, "\nScene coherence: %.*f (%d distinctions)\n", constants.CoherenceDisplayPrecision, mean, len(scores))
	return err
}

// CandidateWriter prints the candidate table of a resolution. It implements
// resolution.TableSink.
type CandidateWriter struct {
	w io.Writer
}

// NewCandidateWriter creates a candidate table writer on w.
func NewCandidateWriter(w io.Writer) *CandidateWriter {
	return &CandidateWriter{w: w}
}

// RecordResolution writes the table and the selected repair.
func (c *CandidateWriter) RecordResolution(_ context.Context, result resolution.Result) error {
	return Candidates(c.w, result)
}

// Candidates writes one row per candidate aspect, marking the selected one,
// then the selected repair's distinctions.
func Candidates(w io.Writer, result resolution.Result) error {
	p := constants.CoherenceDisplayPrecision
	fmt.Fprintf(w, "Conflict: %s   baseline coherence %.*f   retained %d\n\n", result.Conflict, p, result.Baseline, len(result.Retained))
	fmt.Fprintf(w, "  %-18s %-9s %-26s %9s %9s %9s %5s %9s\n",
		"Aspect", "Family", "Derived", "C(S0)", "C(S*)", "Delta", "Aux", "Score")
	fmt.Fprintln(w, rule(candidateRuleWidth))
	for i, cand := range result.Candidates {
		marker := " "
		if i == result.Selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %-9s %-26s %9.*f %9.*f %9.*f %5d %9.*f\n",
			marker,
			truncate(string(cand.Aspect), 18),
			cand.Family,
			truncate(string(cand.DerivedAspect), 26),
			p, cand.BaselineCoherence,
			p, cand.Coherence,
			p, cand.Delta,
			len(cand.Auxiliary),
			p, cand.Score,
		)
	}
	if len(result.Candidates) == 0 {
		return nil
	}

	best := result.Best()
	fmt.Fprintf(w, "\nPreferred: %s (score %.*f)\n", best.DerivedAspect, p, best.Score)
	fmt.Fprintf(w, "  primary:   %s\n", best.Primary)
	for _, d := range best.Auxiliary {
		fmt.Fprintf(w, "  auxiliary: %s\n", d)
	}
	_, err := fmt.Fprintf(w, "  scene:     %d distinctions\n", len(best.Scene))
	return err
}

// Scene writes one distinction per line.
func Scene(w io.Writer, sc scene.Scene) error {
	for _, d := range sc {
		if _, err := fmt.Fprintf(w, "  %s\n", d); err != nil {
			return err
		}
	}
	return nil
}

func change(rec simulation.Record) string {
	var parts []string
	if rec.NewEntity != "" {
		parts = append(parts, "+entity "+string(rec.NewEntity))
	}
	for _, d := range rec.Added {
		parts = append(parts, "+"+d.String())
	}
	for _, d := range rec.Removed {
		parts = append(parts, "-"+d.String())
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func rule(n int) string {
	return strings.Repeat("-", n)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
