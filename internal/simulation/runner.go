package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/differentiation"
	"github.com/nvandessel/coherence/internal/logging"
	"github.com/nvandessel/coherence/internal/scene"
)

// Loop is the three-regime feedback controller over a scene.
type Loop struct {
	config    Config
	scorer    *coherence.Scorer
	proposer  *differentiation.Proposer
	rng       *rand.Rand
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewLoop creates a dynamics loop. rng is the single source of randomness
// for pair choice, aspect choice, and removal index.
func NewLoop(config Config, scorer *coherence.Scorer, rng *rand.Rand) *Loop {
	return &Loop{
		config:   config,
		scorer:   scorer,
		proposer: differentiation.NewProposer(rng),
		rng:      rng,
		logger:   logging.Discard(),
	}
}

// WithLogger sets the operational logger.
func (l *Loop) WithLogger(logger *slog.Logger) *Loop {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithDecisionLogger sets the JSONL decision trace. A nil logger disables it.
func (l *Loop) WithDecisionLogger(dl *logging.DecisionLogger) *Loop {
	l.decisions = dl
	return l
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.config
}

// Classify picks the regime for a step from its coherence and index.
func Classify(c float64, step int, config Config) Action {
	switch {
	case c < config.LowThreshold:
		return ActionExpand
	case c > config.HighThreshold && step%2 == 0:
		return ActionContract
	default:
		return ActionDiversify
	}
}

// Step scores the state's scene, applies one regime, and returns the next
// state together with the step's record. The given state is not modified.
func (l *Loop) Step(st State) (State, Record) {
	next := st.Clone()
	c := l.scorer.SceneCoherence(next.Scene)
	rec := Record{
		Step:      st.Step,
		Size:      len(next.Scene),
		Coherence: c,
		Action:    Classify(c, st.Step, l.config),
	}

	switch rec.Action {
	case ActionExpand:
		if d, ok := l.proposer.Propose(next.Scene, next.Entities.Slice(), next.Aspects); ok {
			next.Scene = append(next.Scene, d)
			rec.Added = append(rec.Added, d)
		}

	case ActionContract:
		if len(next.Scene) > l.config.MinSceneSize {
			i := l.rng.IntN(len(next.Scene))
			rec.Removed = append(rec.Removed, next.Scene[i])
			next.Scene = next.Scene.RemoveAt(i)
		}

	case ActionDiversify:
		entity := scene.Entity(l.config.EntityPrefix + strconv.Itoa(st.Step))
		if next.Entities.Add(entity) {
			rec.NewEntity = entity
		}
		// Each proposal sees the previous one's addition.
		for range l.config.DiversifyProposals {
			if d, ok := l.proposer.Propose(next.Scene, next.Entities.Slice(), next.Aspects); ok {
				next.Scene = append(next.Scene, d)
				rec.Added = append(rec.Added, d)
			}
		}
	}

	next.Step = st.Step + 1
	l.trace(rec)
	return next, rec
}

// Run performs Config.Steps steps from st, streaming each record to the
// sinks as it is produced. It stops at the first sink error.
func (l *Loop) Run(ctx context.Context, st State, sinks ...HistorySink) (Result, error) {
	history := make([]Record, 0, max(l.config.Steps, 0))
	current := st
	for range l.config.Steps {
		var rec Record
		current, rec = l.Step(current)
		history = append(history, rec)

		for _, sink := range sinks {
			if err := sink.RecordStep(ctx, rec); err != nil {
				return Result{History: history, Final: current}, fmt.Errorf("history sink at step %d: %w", rec.Step, err)
			}
		}
	}

	l.logger.Info("dynamics run complete",
		"steps", len(history),
		"final_size", len(current.Scene),
		"entities", current.Entities.Len(),
	)
	return Result{History: history, Final: current}, nil
}

func (l *Loop) trace(rec Record) {
	l.logger.Debug("dynamics step",
		"step", rec.Step,
		"size", rec.Size,
		"coherence", rec.Coherence,
		"action", rec.Action,
		"added", len(rec.Added),
		"removed", len(rec.Removed),
	)

	if l.decisions == nil {
		return
	}
	added := make([]string, len(rec.Added))
	for i, d := range rec.Added {
		added[i] = d.String()
	}
	removed := make([]string, len(rec.Removed))
	for i, d := range rec.Removed {
		removed[i] = d.String()
	}
	l.decisions.Log("dynamics_step", map[string]any{
		"step":       rec.Step,
		"size":       rec.Size,
		"coherence":  rec.Coherence,
		"action":     string(rec.Action),
		"added":      added,
		"removed":    removed,
		"new_entity": string(rec.NewEntity),
		"low":        l.config.LowThreshold,
		"high":       l.config.HighThreshold,
	})
}
