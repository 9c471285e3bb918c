// Package scenario loads seed configurations: the initial scene, the entity
// and aspect vocabularies, and optionally a conflict to resolve together
// with the aspect families and anchor entities the repair rules need.
//
// Scenarios are YAML files. Two are built in: "growth" and "dilemma".
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scene"
	"github.com/nvandessel/coherence/internal/simulation"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	// ErrUnknownScenario is returned when a name matches no built-in
	// scenario and no file on disk.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrNoConflict is returned when a resolution is requested from a
	// scenario that declares no conflict.
	ErrNoConflict = errors.New("scenario declares no conflict")
)

// DistinctionSpec is the file form of a distinction.
type DistinctionSpec struct {
	Source string `yaml:"source" json:"source" validate:"required"`
	Target string `yaml:"target" json:"target" validate:"required"`
	Aspect string `yaml:"aspect" json:"aspect" validate:"required"`
}

// Distinction converts the file form to a scene distinction.
func (d DistinctionSpec) Distinction() scene.Distinction {
	return scene.D(d.Source, d.Target, d.Aspect)
}

// File is the YAML layout of a scenario.
type File struct {
	Name         string             `yaml:"name" json:"name" validate:"required"`
	Description  string             `yaml:"description,omitempty" json:"description,omitempty"`
	Entities     []string           `yaml:"entities" json:"entities" validate:"required,min=1,dive,required"`
	Aspects      []string           `yaml:"aspects" json:"aspects" validate:"dive,required"`
	Distinctions []DistinctionSpec  `yaml:"distinctions" json:"distinctions" validate:"dive"`
	Conflict     *DistinctionSpec   `yaml:"conflict,omitempty" json:"conflict,omitempty" validate:"omitempty"`
	Families     map[string]string  `yaml:"families,omitempty" json:"families,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=reward priority value time"`
	Anchors      resolution.Anchors `yaml:"anchors,omitempty" json:"anchors,omitempty"`
}

// Scenario is a validated seed configuration.
type Scenario struct {
	Name        string
	Description string
	Scene       scene.Scene
	Entities    []scene.Entity
	Aspects     []scene.Aspect
	Conflict    *scene.Distinction
	Families    map[scene.Aspect]resolution.Family
	Anchors     resolution.Anchors
}

var validate = validator.New()

// Parse decodes and validates a scenario from YAML.
func Parse(data []byte) (*Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return FromFile(f)
}

// FromFile validates a decoded scenario file and converts it.
func FromFile(f File) (*Scenario, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validating scenario %q: %w", f.Name, err)
	}

	declared := scene.NewEntitySet()
	for _, e := range f.Entities {
		declared.Add(scene.Entity(e))
	}
	vocabulary := make(map[string]bool, len(f.Aspects))
	for _, a := range f.Aspects {
		vocabulary[a] = true
	}

	sc := make(scene.Scene, 0, len(f.Distinctions))
	for i, ds := range f.Distinctions {
		d := ds.Distinction()
		for _, e := range []scene.Entity{d.Source, d.Target} {
			if !declared.Has(e) {
				return nil, fmt.Errorf("scenario %q: distinction %d %s: undeclared entity %q", f.Name, i, d, e)
			}
		}
		sc = append(sc, d)
	}

	s := &Scenario{
		Name:        f.Name,
		Description: strings.TrimSpace(f.Description),
		Scene:       sc,
		Entities:    declared.Slice(),
		Aspects:     make([]scene.Aspect, 0, len(f.Aspects)),
		Anchors:     f.Anchors,
	}
	for _, a := range f.Aspects {
		s.Aspects = append(s.Aspects, scene.Aspect(a))
	}

	if f.Conflict != nil {
		c := f.Conflict.Distinction()
		if !sc.Contains(c) {
			return nil, fmt.Errorf("scenario %q: conflict %s: %w", f.Name, c, resolution.ErrConflictNotInScene)
		}
		s.Conflict = &c
	}

	if len(f.Families) > 0 {
		s.Families = make(map[scene.Aspect]resolution.Family, len(f.Families))
		for a, name := range f.Families {
			if !vocabulary[a] {
				return nil, fmt.Errorf("scenario %q: family for undeclared aspect %q", f.Name, a)
			}
			fam, err := resolution.ParseFamily(name)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", f.Name, err)
			}
			s.Families[scene.Aspect(a)] = fam
		}
	}

	for _, anchor := range []scene.Entity{f.Anchors.RewardSource, f.Anchors.RewardTarget, f.Anchors.Priority, f.Anchors.Value} {
		if anchor != "" && !declared.Has(anchor) {
			return nil, fmt.Errorf("scenario %q: undeclared anchor entity %q", f.Name, anchor)
		}
	}

	return s, nil
}

// Load reads and validates a scenario file.
func Load(filePath string) (*Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", filePath, err)
	}
	return Parse(data)
}

// Builtin returns the named built-in scenario.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return Parse(data)
}

// Names lists the built-in scenarios, sorted.
func Names() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns the built-in scenario with the given name, or loads the
// argument as a file path when no built-in matches.
func Resolve(nameOrPath string) (*Scenario, error) {
	if s, err := Builtin(nameOrPath); err == nil {
		return s, nil
	}
	if _, err := os.Stat(nameOrPath); err != nil {
		return nil, fmt.Errorf("%w: %q (built-ins: %s)", ErrUnknownScenario, nameOrPath, strings.Join(Names(), ", "))
	}
	return Load(nameOrPath)
}

// State returns the initial dynamics state: the seed scene, the declared
// entities plus any the scene references, and the aspect vocabulary.
func (s *Scenario) State() simulation.State {
	return simulation.NewState(s.Scene, simulation.SeedEntities(s.Scene, s.Entities), s.Aspects)
}

// Problem returns the conflict resolution problem the scenario declares.
// The candidate vocabulary is the aspect vocabulary minus the conflict
// aspect. Families not declared explicitly are inferred from aspect labels.
func (s *Scenario) Problem() (resolution.Problem, error) {
	if s.Conflict == nil {
		return resolution.Problem{}, fmt.Errorf("scenario %q: %w", s.Name, ErrNoConflict)
	}
	families := s.Families
	if families == nil {
		families = resolution.InferFamilies(s.Aspects)
	}
	return resolution.Problem{
		Scene:    s.Scene.Clone(),
		Conflict: *s.Conflict,
		Aspects:  resolution.CandidateAspects(s.Aspects, s.Conflict.Aspect),
		Families: families,
		Anchors:  s.Anchors,
	}, nil
}

// File converts the scenario back to its file form.
func (s *Scenario) File() File {
	f := File{
		Name:         s.Name,
		Description:  s.Description,
		Entities:     make([]string, 0, len(s.Entities)),
		Aspects:      make([]string, 0, len(s.Aspects)),
		Distinctions: make([]DistinctionSpec, 0, len(s.Scene)),
		Anchors:      s.Anchors,
	}
	for _, e := range s.Entities {
		f.Entities = append(f.Entities, string(e))
	}
	for _, a := range s.Aspects {
		f.Aspects = append(f.Aspects, string(a))
	}
	for _, d := range s.Scene {
		f.Distinctions = append(f.Distinctions, DistinctionSpec{Source: string(d.Source), Target: string(d.Target), Aspect: string(d.Aspect)})
	}
	if s.Conflict != nil {
		f.Conflict = &DistinctionSpec{Source: string(s.Conflict.Source), Target: string(s.Conflict.Target), Aspect: string(s.Conflict.Aspect)}
	}
	if len(s.Families) > 0 {
		f.Families = make(map[string]string, len(s.Families))
		for a, fam := range s.Families {
			f.Families[string(a)] = string(fam)
		}
	}
	return f
}
