package mcp

import (
	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scenario"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
)

// CoherenceScoreInput defines the input for the coherence_score tool.
type CoherenceScoreInput struct {
	Scenario string         `json:"scenario,omitempty" jsonschema:"Built-in scenario name (growth, dilemma) or path to a scenario YAML file"`
	Scene    *scenario.File `json:"scene,omitempty" jsonschema:"Inline scenario: entities, aspects, distinctions and an optional conflict"`
	Weight   float64        `json:"weight,omitempty" jsonschema:"Contribution of each connected distinction with a different aspect (default 0.3)"`
}

// CoherenceScoreOutput defines the output for the coherence_score tool.
type CoherenceScoreOutput struct {
	Scenario     string            `json:"scenario"`
	Coherence    float64           `json:"coherence"`
	Distinctions int               `json:"distinctions"`
	Entities     int               `json:"entities"`
	Scores       []coherence.Score `json:"scores"`
}

// CoherenceSimulateInput defines the input for the coherence_simulate tool.
type CoherenceSimulateInput struct {
	Scenario string         `json:"scenario,omitempty" jsonschema:"Built-in scenario name (growth, dilemma) or path to a scenario YAML file"`
	Scene    *scenario.File `json:"scene,omitempty" jsonschema:"Inline scenario: entities, aspects, distinctions and an optional conflict"`
	Steps    int            `json:"steps,omitempty" jsonschema:"Number of dynamics steps (default 15, max 10000)"`
	Seed     *uint64        `json:"seed,omitempty" jsonschema:"Random seed; identical seeds reproduce identical runs"`
	Weight   float64        `json:"weight,omitempty" jsonschema:"Contribution of each connected distinction with a different aspect (default 0.3)"`
	Record   bool           `json:"record,omitempty" jsonschema:"Persist the run to the SQLite run store"`
}

// CoherenceSimulateOutput defines the output for the coherence_simulate tool.
type CoherenceSimulateOutput struct {
	Scenario       string              `json:"scenario"`
	Seed           uint64              `json:"seed"`
	Steps          int                 `json:"steps"`
	History        []simulation.Record `json:"history"`
	FinalScene     scene.Scene         `json:"final_scene"`
	FinalCoherence float64             `json:"final_coherence"`
	FinalEntities  int                 `json:"final_entities"`
	Actions        map[string]int      `json:"actions"`
	RunID          string              `json:"run_id,omitempty"`
}

// CoherenceResolveInput defines the input for the coherence_resolve tool.
type CoherenceResolveInput struct {
	Scenario string         `json:"scenario,omitempty" jsonschema:"Scenario declaring a conflict: built-in name (dilemma) or path to a scenario YAML file"`
	Scene    *scenario.File `json:"scene,omitempty" jsonschema:"Inline scenario with a conflict, families and anchors"`
	Weight   float64        `json:"weight,omitempty" jsonschema:"Contribution of each connected distinction with a different aspect (default 0.3)"`
	Record   bool           `json:"record,omitempty" jsonschema:"Persist the candidate table to the SQLite run store"`
}

// CoherenceResolveOutput defines the output for the coherence_resolve tool.
type CoherenceResolveOutput struct {
	Scenario   string                 `json:"scenario"`
	Conflict   scene.Distinction      `json:"conflict"`
	Baseline   float64                `json:"baseline"`
	Retained   int                    `json:"retained"`
	Candidates []resolution.Candidate `json:"candidates"`
	Preferred  *resolution.Candidate  `json:"preferred,omitempty"`
	RunID      string                 `json:"run_id,omitempty"`
}

// CoherenceGraphInput defines the input for the coherence_graph tool.
type CoherenceGraphInput struct {
	Scenario string         `json:"scenario,omitempty" jsonschema:"Built-in scenario name (growth, dilemma) or path to a scenario YAML file"`
	Scene    *scenario.File `json:"scene,omitempty" jsonschema:"Inline scenario: entities, aspects, distinctions and an optional conflict"`
	Format   string         `json:"format,omitempty" jsonschema:"Output format: 'json' (default) or 'dot'"`
	Conflict string         `json:"conflict,omitempty" jsonschema:"Aspect to highlight in red (defaults to the scenario's conflict aspect)"`
	Title    string         `json:"title,omitempty" jsonschema:"Graph title (defaults to the scenario name)"`
	Weight   float64        `json:"weight,omitempty" jsonschema:"Annotate edges with relation coherence at this weight (default 0.3)"`
}

// CoherenceGraphOutput defines the output for the coherence_graph tool.
type CoherenceGraphOutput struct {
	Format    string  `json:"format"`
	Graph     any     `json:"graph"`
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	Coherence float64 `json:"coherence"`
}
