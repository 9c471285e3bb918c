// Package visualization renders scenes in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/scene"
)

// Format specifies the output format for scene rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (valid: dot, json)", s)
}

// aspectColors maps aspect families to DOT colors, checked in order against
// the aspect label.
var aspectColors = []struct {
	substr string
	color  string
}{
	{"reward", "blue"},
	{"priority", "green"},
	{"value", "orange"},
}

const (
	conflictColor = "red"
	defaultColor  = "purple"
)

// Options control rendering.
type Options struct {
	// Title labels the graph.
	Title string

	// Conflict is the aspect drawn in red. Empty disables the highlight.
	Conflict scene.Aspect

	// Weight, when positive, annotates each edge with its relation coherence.
	Weight float64
}

// EdgeColor classifies an aspect for display: the conflict aspect is red,
// then reward, priority and value labels map to blue, green and orange.
// Everything else is purple.
func EdgeColor(aspect, conflict scene.Aspect) string {
	if conflict != "" && aspect == conflict {
		return conflictColor
	}
	for _, c := range aspectColors {
		if strings.Contains(string(aspect), c.substr) {
			return c.color
		}
	}
	return defaultColor
}

// RenderDOT produces a Graphviz DOT representation of the scene.
// Each distinction is one edge; parallel edges with different aspects are kept.
func RenderDOT(sc scene.Scene, opts Options) string {
	var b strings.Builder
	b.WriteString("digraph scene {\n")
	if opts.Title != "" {
		b.WriteString(fmt.Sprintf("  label=%q;\n", opts.Title))
		b.WriteString("  labelloc=t;\n")
	}
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=ellipse, style=filled, fillcolor=lightgray, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	// Render nodes
	for _, e := range sc.Entities() {
		b.WriteString(fmt.Sprintf("  %q;\n", string(e)))
	}
	b.WriteString("\n")

	// Render edges
	for _, d := range sc {
		color := EdgeColor(d.Aspect, opts.Conflict)
		if opts.Weight > 0 {
			rc := coherence.RelationCoherence(d, sc, opts.Weight)
			b.WriteString(fmt.Sprintf("  %q -> %q [label=%q, color=%s, fontcolor=%s, tooltip=\"coherence=%.2f\"];\n",
				string(d.Source), string(d.Target), string(d.Aspect), color, color, rc))
			continue
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [label=%q, color=%s, fontcolor=%s];\n",
			string(d.Source), string(d.Target), string(d.Aspect), color, color))
	}

	b.WriteString("}\n")
	return b.String()
}

// Node is one entity in the JSON graph.
type Node struct {
	ID     string `json:"id"`
	Degree int    `json:"degree"`
}

// Edge is one distinction in the JSON graph.
type Edge struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Aspect    string   `json:"aspect"`
	Color     string   `json:"color"`
	Coherence *float64 `json:"coherence,omitempty"`
}

// Graph is the JSON graph representation with nodes and edges arrays.
type Graph struct {
	Title     string  `json:"title,omitempty"`
	Nodes     []Node  `json:"nodes"`
	Edges     []Edge  `json:"edges"`
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	Coherence float64 `json:"coherence"`
}

// RenderJSON produces a JSON-serializable graph of the scene. Scene
// coherence is filled in when opts.Weight is positive.
func RenderJSON(sc scene.Scene, opts Options) Graph {
	degree := make(map[scene.Entity]int)
	for _, d := range sc {
		degree[d.Source]++
		if d.Target != d.Source {
			degree[d.Target]++
		}
	}

	entities := sc.Entities()
	g := Graph{
		Title: opts.Title,
		Nodes: make([]Node, 0, len(entities)),
		Edges: make([]Edge, 0, len(sc)),
	}
	for _, e := range entities {
		g.Nodes = append(g.Nodes, Node{ID: string(e), Degree: degree[e]})
	}
	for _, d := range sc {
		edge := Edge{
			Source: string(d.Source),
			Target: string(d.Target),
			Aspect: string(d.Aspect),
			Color:  EdgeColor(d.Aspect, opts.Conflict),
		}
		if opts.Weight > 0 {
			rc := coherence.RelationCoherence(d, sc, opts.Weight)
			edge.Coherence = &rc
		}
		g.Edges = append(g.Edges, edge)
	}
	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)
	if opts.Weight > 0 {
		g.Coherence = coherence.SceneCoherence(sc, opts.Weight)
	}
	return g
}
