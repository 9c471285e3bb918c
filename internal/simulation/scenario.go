package simulation

import (
	"context"
	"math/rand/v2"

	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/scene"
)

// Action names the regime a step fell into.
type Action string

const (
	ActionExpand    Action = "expand"    // coherence below the low threshold
	ActionContract  Action = "contract"  // coherence above the high threshold on an even step
	ActionDiversify Action = "diversify" // everything else
)

// Valid returns true if the action is a recognized value.
func (a Action) Valid() bool {
	switch a {
	case ActionExpand, ActionContract, ActionDiversify:
		return true
	}
	return false
}

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Config holds the thresholds and bounds of the dynamics loop.
type Config struct {
	// Steps is the number of discrete steps in a run (T). Default: 15.
	Steps int

	// LowThreshold is the coherence below which the scene expands. Default: 0.4.
	LowThreshold float64

	// HighThreshold is the coherence above which the scene contracts on
	// even steps. Default: 1.0.
	HighThreshold float64

	// MinSceneSize is the size at or below which contraction is a no-op. Default: 3.
	MinSceneSize int

	// DiversifyProposals is the number of proposals made after a new entity
	// is added. Default: 2.
	DiversifyProposals int

	// EntityPrefix labels entities introduced by diversification. Default: "X".
	EntityPrefix string
}

// DefaultConfig returns the default dynamics configuration.
func DefaultConfig() Config {
	return Config{
		Steps:              constants.DefaultSteps,
		LowThreshold:       constants.DefaultLowThreshold,
		HighThreshold:      constants.DefaultHighThreshold,
		MinSceneSize:       constants.DefaultMinSceneSize,
		DiversifyProposals: constants.DefaultDiversifyProposals,
		EntityPrefix:       constants.DefaultEntityPrefix,
	}
}

// State is the complete simulation state threaded through each step.
// Loop.Step never mutates the state it is given.
type State struct {
	Step     int
	Scene    scene.Scene
	Entities *scene.EntitySet
	Aspects  []scene.Aspect
}

// NewState builds the initial state from a seed scene and seed vocabularies.
// The seed slices are copied.
func NewState(seed scene.Scene, entities []scene.Entity, aspects []scene.Aspect) State {
	vocabulary := make([]scene.Aspect, len(aspects))
	copy(vocabulary, aspects)
	return State{
		Scene:    seed.Clone(),
		Entities: scene.NewEntitySet(entities...),
		Aspects:  vocabulary,
	}
}

// Clone returns an independent copy of the state. The aspect vocabulary is
// fixed for the lifetime of a run and is shared.
func (s State) Clone() State {
	return State{
		Step:     s.Step,
		Scene:    s.Scene.Clone(),
		Entities: s.Entities.Clone(),
		Aspects:  s.Aspects,
	}
}

// Record is the history entry of one step: the observation taken before the
// step mutated the scene, plus what the step did.
type Record struct {
	Step      int                 `json:"step"`
	Size      int                 `json:"size"`
	Coherence float64             `json:"coherence"`
	Action    Action              `json:"action"`
	Added     []scene.Distinction `json:"added,omitempty"`
	Removed   []scene.Distinction `json:"removed,omitempty"`
	NewEntity scene.Entity        `json:"new_entity,omitempty"`
}

// Result captures a complete run.
type Result struct {
	History []Record `json:"history"`
	Final   State    `json:"-"`
}

// HistorySink receives one record per step, in step order.
type HistorySink interface {
	RecordStep(ctx context.Context, rec Record) error
}

// HistorySinkFunc adapts a function to HistorySink.
type HistorySinkFunc func(ctx context.Context, rec Record) error

// RecordStep calls f(ctx, rec).
func (f HistorySinkFunc) RecordStep(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// NewRand returns the seeded random source used for every random choice of
// a run.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
