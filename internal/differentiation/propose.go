// Package differentiation proposes new distinctions for a scene: a relation
// between two entities that the scene does not relate yet, labeled with an
// aspect drawn from the vocabulary.
package differentiation

import (
	"math/rand/v2"

	"github.com/nvandessel/coherence/internal/scene"
)

// Pair is an ordered pair of distinct entities.
type Pair struct {
	Source scene.Entity
	Target scene.Entity
}

// Proposer draws new distinctions. All random choices go through the
// injected source so a seeded source reproduces a run exactly.
type Proposer struct {
	rng *rand.Rand
}

// NewProposer creates a proposer drawing from rng.
func NewProposer(rng *rand.Rand) *Proposer {
	return &Proposer{rng: rng}
}

// Propose returns a new distinction between an open pair of entities,
// labeled with an aspect chosen uniformly from aspects. The pair is chosen
// uniformly among all open ordered pairs. It returns false when every pair
// is saturated or the vocabulary is empty; callers treat that as a no-op.
func (p *Proposer) Propose(sc scene.Scene, entities []scene.Entity, aspects []scene.Aspect) (scene.Distinction, bool) {
	if len(aspects) == 0 {
		return scene.Distinction{}, false
	}
	open := OpenPairs(sc, entities, aspects)
	if len(open) == 0 {
		return scene.Distinction{}, false
	}
	pair := open[p.rng.IntN(len(open))]
	aspect := aspects[p.rng.IntN(len(aspects))]
	return scene.Distinction{Source: pair.Source, Target: pair.Target, Aspect: aspect}, true
}

// OpenPairs lists every ordered pair (x, y), x != y, such that the scene holds
// no distinction between x and y in either direction whose aspect belongs to
// the vocabulary. Saturation only asks for one such aspect, not all of them.
// Pairs are listed in entity order.
func OpenPairs(sc scene.Scene, entities []scene.Entity, aspects []scene.Aspect) []Pair {
	vocabulary := make(map[scene.Aspect]bool, len(aspects))
	for _, a := range aspects {
		vocabulary[a] = true
	}

	saturated := make(map[Pair]bool)
	for _, d := range sc {
		if !vocabulary[d.Aspect] {
			continue
		}
		saturated[Pair{d.Source, d.Target}] = true
		saturated[Pair{d.Target, d.Source}] = true
	}

	var open []Pair
	for _, x := range entities {
		for _, y := range entities {
			if x == y {
				continue
			}
			pair := Pair{Source: x, Target: y}
			if !saturated[pair] {
				open = append(open, pair)
			}
		}
	}
	return open
}

// Saturated reports whether every pair of entities is already related.
func Saturated(sc scene.Scene, entities []scene.Entity, aspects []scene.Aspect) bool {
	return len(OpenPairs(sc, entities, aspects)) == 0
}
