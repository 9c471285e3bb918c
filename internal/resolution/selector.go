// Package resolution repairs a conflicting distinction. For every candidate
// aspect it applies the aspect family's fixed repair rule to the original
// scene, scores the resulting candidate scene, and ranks candidates by
// coherence gain scaled by a bonus for the structure the repair adds.
package resolution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/logging"
	"github.com/nvandessel/coherence/internal/scene"
)

// Config holds the tunable parameters of the selector.
type Config struct {
	// BonusFactor scales the structural bonus. Default: 0.1.
	BonusFactor float64

	// RetentionThreshold is the minimum relation coherence (against the
	// original scene) a distinction needs to be kept. Default: 0.3.
	RetentionThreshold float64
}

// DefaultConfig returns the default selector configuration.
func DefaultConfig() Config {
	return Config{
		BonusFactor:        constants.DefaultBonusFactor,
		RetentionThreshold: constants.DefaultRetentionThreshold,
	}
}

// Problem is one conflict to resolve.
type Problem struct {
	Scene    scene.Scene
	Conflict scene.Distinction
	// Aspects is the candidate vocabulary, in evaluation order. It should not
	// contain the conflict aspect; see CandidateAspects.
	Aspects  []scene.Aspect
	Families map[scene.Aspect]Family
	Anchors  Anchors
}

// CandidateAspects returns the vocabulary without the conflict aspect,
// preserving order.
func CandidateAspects(vocabulary []scene.Aspect, conflict scene.Aspect) []scene.Aspect {
	out := make([]scene.Aspect, 0, len(vocabulary))
	for _, a := range vocabulary {
		if a != conflict {
			out = append(out, a)
		}
	}
	return out
}

// Candidate is one evaluated repair.
type Candidate struct {
	Aspect            scene.Aspect        `json:"aspect"`
	Family            Family              `json:"family"`
	DerivedAspect     scene.Aspect        `json:"derived_aspect"`
	Primary           scene.Distinction   `json:"primary"`
	Auxiliary         []scene.Distinction `json:"auxiliary"`
	Scene             scene.Scene         `json:"scene"`
	Coherence         float64             `json:"coherence"`
	BaselineCoherence float64             `json:"baseline_coherence"`
	Delta             float64             `json:"delta"`
	Multiplier        float64             `json:"multiplier"`
	Score             float64             `json:"score"`
}

// Result is the full candidate table plus the selected row.
type Result struct {
	Conflict   scene.Distinction `json:"conflict"`
	Baseline   float64           `json:"baseline"`
	Retained   scene.Scene       `json:"retained"`
	Candidates []Candidate       `json:"candidates"`
	Selected   int               `json:"selected"`
}

// Best returns the selected candidate.
func (r Result) Best() Candidate {
	return r.Candidates[r.Selected]
}

// TableSink receives the candidate table of a resolution.
type TableSink interface {
	RecordResolution(ctx context.Context, result Result) error
}

// Selector evaluates repair candidates. It is stateless apart from its
// configuration and never mutates the problem it is given.
type Selector struct {
	config    Config
	scorer    *coherence.Scorer
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewSelector creates a selector scoring with scorer.
func NewSelector(config Config, scorer *coherence.Scorer) *Selector {
	return &Selector{config: config, scorer: scorer, logger: logging.Discard()}
}

// WithLogger sets the operational logger.
func (s *Selector) WithLogger(logger *slog.Logger) *Selector {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithDecisionLogger sets the JSONL decision trace. A nil logger disables it.
func (s *Selector) WithDecisionLogger(dl *logging.DecisionLogger) *Selector {
	s.decisions = dl
	return s
}

// Retain returns the members of sc whose relation coherence against sc is at
// least the retention threshold, in scene order.
func (s *Selector) Retain(sc scene.Scene) scene.Scene {
	out := make(scene.Scene, 0, len(sc))
	for _, d := range sc {
		if s.scorer.RelationCoherence(d, sc) >= s.config.RetentionThreshold {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the problem without evaluating anything: the conflict must
// be in the scene, the vocabulary non-empty, and every candidate aspect must
// belong to a known family.
func (s *Selector) Validate(p Problem) error {
	if !p.Scene.Contains(p.Conflict) {
		return fmt.Errorf("%w: %s", ErrConflictNotInScene, p.Conflict)
	}
	if len(p.Aspects) == 0 {
		return ErrNoCandidates
	}
	for _, a := range p.Aspects {
		f, ok := p.Families[a]
		if !ok || !f.Valid() {
			return fmt.Errorf("%w: aspect %q", ErrUnknownAspectFamily, a)
		}
	}
	return nil
}

// Candidate builds and scores the repair for one candidate aspect. Callers
// that evaluate many aspects should use Select, which validates first.
func (s *Selector) Candidate(p Problem, aspect scene.Aspect) (Candidate, error) {
	f, ok := p.Families[aspect]
	if !ok || !f.Valid() {
		return Candidate{}, fmt.Errorf("%w: aspect %q", ErrUnknownAspectFamily, aspect)
	}

	derived := f.DerivedAspect(aspect)
	primary, aux, err := Recipe(f, p.Conflict.Source, p.Conflict.Target, p.Anchors, derived)
	if err != nil {
		return Candidate{}, fmt.Errorf("aspect %q: %w", aspect, err)
	}

	retained := s.Retain(p.Scene)
	candidateScene := make(scene.Scene, 0, len(retained)+1+len(aux))
	candidateScene = append(candidateScene, retained...)
	candidateScene = append(candidateScene, primary)
	candidateScene = append(candidateScene, aux...)

	baseline := s.scorer.SceneCoherence(p.Scene)
	c := s.scorer.SceneCoherence(candidateScene)
	delta := c - baseline
	multiplier := 1 + s.config.BonusFactor*float64(len(aux))

	return Candidate{
		Aspect:            aspect,
		Family:            f,
		DerivedAspect:     derived,
		Primary:           primary,
		Auxiliary:         aux,
		Scene:             candidateScene,
		Coherence:         c,
		BaselineCoherence: baseline,
		Delta:             delta,
		Multiplier:        multiplier,
		Score:             delta * multiplier,
	}, nil
}

// Evaluate validates the problem and then evaluates every candidate aspect
// independently against the original scene, in vocabulary order.
func (s *Selector) Evaluate(p Problem) ([]Candidate, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(p.Aspects))
	for _, a := range p.Aspects {
		c, err := s.Candidate(p, a)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)

		s.logger.Debug("resolution candidate",
			"aspect", c.Aspect,
			"derived", c.DerivedAspect,
			"coherence", c.Coherence,
			"delta", c.Delta,
			"score", c.Score,
		)
		s.decisions.Log("resolution_candidate", map[string]any{
			"aspect":     string(c.Aspect),
			"family":     string(c.Family),
			"derived":    string(c.DerivedAspect),
			"primary":    c.Primary.String(),
			"auxiliary":  len(c.Auxiliary),
			"coherence":  c.Coherence,
			"delta":      c.Delta,
			"multiplier": c.Multiplier,
			"score":      c.Score,
		})
	}
	return candidates, nil
}

// Select evaluates the problem and selects the candidate with the highest
// score. Ties go to the earliest aspect in the vocabulary.
func (s *Selector) Select(p Problem) (Result, error) {
	candidates, err := s.Evaluate(p)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Conflict:   p.Conflict,
		Baseline:   s.scorer.SceneCoherence(p.Scene),
		Retained:   s.Retain(p.Scene),
		Candidates: candidates,
	}
	for i, c := range candidates {
		if c.Score > candidates[result.Selected].Score {
			result.Selected = i
		}
	}

	best := result.Best()
	s.logger.Info("conflict resolved",
		"conflict", p.Conflict.String(),
		"aspect", best.Aspect,
		"derived", best.DerivedAspect,
		"score", best.Score,
	)
	s.decisions.Log("resolution_selected", map[string]any{
		"conflict": p.Conflict.String(),
		"aspect":   string(best.Aspect),
		"derived":  string(best.DerivedAspect),
		"score":    best.Score,
		"baseline": result.Baseline,
	})
	return result, nil
}
