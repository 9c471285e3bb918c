package simulation

import (
	"github.com/nvandessel/coherence/internal/scene"
)

// Coherences returns the per-step coherence series of a run.
func (r Result) Coherences() []float64 {
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Coherence
	}
	return out
}

// Sizes returns the per-step scene size series of a run.
func (r Result) Sizes() []int {
	out := make([]int, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Size
	}
	return out
}

// ActionCounts tallies how often each regime fired.
func (r Result) ActionCounts() map[Action]int {
	counts := make(map[Action]int, 3)
	for _, rec := range r.History {
		counts[rec.Action]++
	}
	return counts
}

// SeedEntities returns the union of the explicit entities and every entity
// the seed scene references, explicit ones first.
func SeedEntities(seed scene.Scene, explicit []scene.Entity) []scene.Entity {
	set := scene.NewEntitySet(explicit...)
	for _, e := range seed.Entities() {
		set.Add(e)
	}
	return set.Slice()
}
