// Package scene defines the relation primitives of the coherence model:
// entities, aspects, distinctions, and the scenes that collect them.
package scene

import (
	"fmt"
	"strings"
)

// Entity is an opaque node identifier.
type Entity string

// Aspect labels the relational dimension of a distinction
// (e.g., "alpha_causal", "alpha_context").
type Aspect string

// Distinction is a directed, aspect-labeled relation between two entities.
// (A, B, a) and (B, A, a) are distinct relations.
type Distinction struct {
	Source Entity `json:"source" yaml:"source"`
	Target Entity `json:"target" yaml:"target"`
	Aspect Aspect `json:"aspect" yaml:"aspect"`
}

// D is shorthand for building a Distinction from plain strings.
func D(source, target, aspect string) Distinction {
	return Distinction{Source: Entity(source), Target: Entity(target), Aspect: Aspect(aspect)}
}

// String renders the distinction as "(source, target, aspect)".
func (d Distinction) String() string {
	return fmt.Sprintf("(%s, %s, %s)", d.Source, d.Target, d.Aspect)
}

// Touches reports whether e is one of the distinction's endpoints.
func (d Distinction) Touches(e Entity) bool {
	return d.Source == e || d.Target == e
}

// ConnectedTo reports whether d and other share at least one endpoint,
// on either side.
func (d Distinction) ConnectedTo(other Distinction) bool {
	return other.Touches(d.Source) || other.Touches(d.Target)
}

// Joins reports whether d relates x and y in either direction.
func (d Distinction) Joins(x, y Entity) bool {
	return (d.Source == x && d.Target == y) || (d.Source == y && d.Target == x)
}

// Scene is an ordered sequence of distinctions. Order matters for
// removal-by-index and display only; scoring is order-independent.
// Identical triples may appear more than once.
type Scene []Distinction

// Clone returns an independent copy of the scene.
func (s Scene) Clone() Scene {
	if s == nil {
		return nil
	}
	out := make(Scene, len(s))
	copy(out, s)
	return out
}

// Contains reports whether an identical triple is present.
func (s Scene) Contains(d Distinction) bool {
	for _, existing := range s {
		if existing == d {
			return true
		}
	}
	return false
}

// RemoveAt returns a copy of the scene without the distinction at index i.
// The receiver is not modified.
func (s Scene) RemoveAt(i int) Scene {
	out := make(Scene, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// Entities returns every entity referenced by the scene, in order of
// first appearance.
func (s Scene) Entities() []Entity {
	seen := make(map[Entity]bool)
	var out []Entity
	for _, d := range s {
		for _, e := range []Entity{d.Source, d.Target} {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Aspects returns every aspect used by the scene, in order of first appearance.
func (s Scene) Aspects() []Aspect {
	seen := make(map[Aspect]bool)
	var out []Aspect
	for _, d := range s {
		if !seen[d.Aspect] {
			seen[d.Aspect] = true
			out = append(out, d.Aspect)
		}
	}
	return out
}

// String renders the scene as a bracketed list of triples.
func (s Scene) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
