// Package coherence implements the scoring engine: how mutually coherent
// the distinctions of a scene are. A distinction earns the configured weight
// once for every other distinction that shares an endpoint with it but
// carries a different aspect. Scene coherence is the mean over all members.
package coherence

import (
	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/scene"
)

// Config holds the tunable parameters of the scorer.
type Config struct {
	// Weight is the contribution (w) of one connected, differently-aspected
	// neighbor. Default: 0.3.
	Weight float64
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{Weight: constants.DefaultCoherenceWeight}
}

// Scorer computes relation and scene coherence.
// The scorer is stateless; it never mutates the scenes it is given.
type Scorer struct {
	config Config
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Weight returns the configured per-neighbor weight.
func (s *Scorer) Weight() float64 {
	return s.config.Weight
}

// RelationCoherence scores d against the scene. Members identical to d
// (triple equality) are skipped, so duplicated triples never count each other.
// d itself need not be a member of the scene.
func (s *Scorer) RelationCoherence(d scene.Distinction, sc scene.Scene) float64 {
	return RelationCoherence(d, sc, s.config.Weight)
}

// SceneCoherence returns the mean relation coherence over the scene,
// or 0 for an empty scene.
func (s *Scorer) SceneCoherence(sc scene.Scene) float64 {
	return SceneCoherence(sc, s.config.Weight)
}

// Score is the coherence of a single member of a scene.
type Score struct {
	Index       int               `json:"index"`
	Distinction scene.Distinction `json:"distinction"`
	Coherence   float64           `json:"coherence"`
}

// Breakdown returns the per-distinction scores of the scene in scene order
// together with their mean.
func (s *Scorer) Breakdown(sc scene.Scene) ([]Score, float64) {
	scores := make([]Score, len(sc))
	total := 0.0
	for i, d := range sc {
		c := RelationCoherence(d, sc, s.config.Weight)
		scores[i] = Score{Index: i, Distinction: d, Coherence: c}
		total += c
	}
	if len(sc) == 0 {
		return scores, 0
	}
	return scores, total / float64(len(sc))
}

// RelationCoherence is the functional form of Scorer.RelationCoherence.
func RelationCoherence(d scene.Distinction, sc scene.Scene, weight float64) float64 {
	score := 0.0
	for _, other := range sc {
		if other == d {
			continue
		}
		if d.ConnectedTo(other) && d.Aspect != other.Aspect {
			score += weight
		}
	}
	return score
}

// SceneCoherence is the functional form of Scorer.SceneCoherence.
func SceneCoherence(sc scene.Scene, weight float64) float64 {
	if len(sc) == 0 {
		return 0
	}
	total := 0.0
	for _, d := range sc {
		total += RelationCoherence(d, sc, weight)
	}
	return total / float64(len(sc))
}
