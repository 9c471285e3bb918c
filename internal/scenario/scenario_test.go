package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/scene"
)

func TestNames(t *testing.T) {
	got := Names()
	want := []string{"dilemma", "growth"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuiltin_Growth(t *testing.T) {
	s, err := Builtin("growth")
	if err != nil {
		t.Fatalf("Builtin(growth) error = %v", err)
	}
	if len(s.Scene) != 3 {
		t.Errorf("growth scene has %d distinctions, want 3", len(s.Scene))
	}
	if s.Conflict != nil {
		t.Errorf("growth declares conflict %s", s.Conflict)
	}

	got := coherence.SceneCoherence(s.Scene, 0.3)
	if got < 0.2-1e-9 || got > 0.2+1e-9 {
		t.Errorf("growth coherence = %f, want 0.2", got)
	}

	st := s.State()
	if st.Entities.Len() != 4 {
		t.Errorf("growth state has %d entities, want 4", st.Entities.Len())
	}
	if len(st.Aspects) != 2 {
		t.Errorf("growth state has %d aspects, want 2", len(st.Aspects))
	}

	if _, err := s.Problem(); !errors.Is(err, ErrNoConflict) {
		t.Errorf("Problem() error = %v, want ErrNoConflict", err)
	}
}

func TestBuiltin_Dilemma(t *testing.T) {
	s, err := Builtin("dilemma")
	if err != nil {
		t.Fatalf("Builtin(dilemma) error = %v", err)
	}
	if len(s.Scene) != 7 {
		t.Errorf("dilemma scene has %d distinctions, want 7", len(s.Scene))
	}
	if len(s.Aspects) != 5 {
		t.Errorf("dilemma has %d aspects, want 5", len(s.Aspects))
	}

	p, err := s.Problem()
	if err != nil {
		t.Fatalf("Problem() error = %v", err)
	}
	if p.Conflict != scene.D("g1", "g2", "alpha_utility") {
		t.Errorf("conflict = %s", p.Conflict)
	}
	if len(p.Aspects) != 4 {
		t.Fatalf("candidate aspects = %v, want 4", p.Aspects)
	}
	for _, a := range p.Aspects {
		if a == "alpha_utility" {
			t.Error("candidate vocabulary contains the conflict aspect")
		}
	}

	sel := resolution.NewSelector(resolution.DefaultConfig(), coherence.NewScorer(coherence.DefaultConfig()))
	result, err := sel.Select(p)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	wantSuffix := map[scene.Aspect]string{
		"alpha_reward":   "_balanced",
		"alpha_priority": "_focus",
		"alpha_value":    "_optimized",
		"alpha_time":     "_efficient",
	}
	for _, c := range result.Candidates {
		if !strings.HasSuffix(string(c.DerivedAspect), wantSuffix[c.Aspect]) {
			t.Errorf("%s derived %s, want suffix %s", c.Aspect, c.DerivedAspect, wantSuffix[c.Aspect])
		}
	}
	if result.Best().Aspect != "alpha_reward" {
		t.Errorf("selected %s, want alpha_reward", result.Best().Aspect)
	}
}

func TestBuiltin_Unknown(t *testing.T) {
	if _, err := Builtin("nope"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Builtin(nope) error = %v, want ErrUnknownScenario", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "entities: [a, b]\naspects: [x]\ndistinctions:\n  - {source: a, target: b, aspect: x}\n",
			want: "Name",
		},
		{
			name: "no entities",
			yaml: "name: t\naspects: [x]\n",
			want: "Entities",
		},
		{
			name: "empty aspect",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\ndistinctions:\n  - {source: a, target: b, aspect: \"\"}\n",
			want: "Aspect",
		},
		{
			name: "undeclared entity",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\ndistinctions:\n  - {source: a, target: c, aspect: x}\n",
			want: "undeclared entity",
		},
		{
			name: "conflict not in scene",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\ndistinctions:\n  - {source: a, target: b, aspect: x}\nconflict: {source: b, target: a, aspect: x}\n",
			want: "not in scene",
		},
		{
			name: "bad family",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\nfamilies:\n  x: cost\n",
			want: "Families",
		},
		{
			name: "family for undeclared aspect",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\nfamilies:\n  y: time\n",
			want: "undeclared aspect",
		},
		{
			name: "undeclared anchor",
			yaml: "name: t\nentities: [a, b]\naspects: [x]\nanchors:\n  priority: z\n",
			want: "undeclared anchor",
		},
		{
			name: "malformed yaml",
			yaml: "name: [",
			want: "parsing scenario",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestProblem_InfersFamilies(t *testing.T) {
	data := `
name: inferred
entities: [x, y]
aspects: [tension, beta_time]
distinctions:
  - {source: x, target: y, aspect: tension}
conflict: {source: x, target: y, aspect: tension}
`
	s, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, err := s.Problem()
	if err != nil {
		t.Fatalf("Problem() error = %v", err)
	}
	if p.Families["beta_time"] != resolution.FamilyTime {
		t.Errorf("inferred family = %q, want time", p.Families["beta_time"])
	}
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tiny.yaml")
	data := "name: tiny\nentities: [a, b, c]\naspects: [x, y]\ndistinctions:\n  - {source: a, target: b, aspect: x}\n"
	if err := os.WriteFile(file, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Resolve(file)
	if err != nil {
		t.Fatalf("Resolve(file) error = %v", err)
	}
	if s.Name != "tiny" {
		t.Errorf("Name = %q, want tiny", s.Name)
	}
	if got := s.State().Entities.Len(); got != 3 {
		t.Errorf("entities = %d, want 3", got)
	}

	if s, err := Resolve("growth"); err != nil || s.Name != "growth" {
		t.Errorf("Resolve(growth) = %v, %v", s, err)
	}

	if _, err := Resolve(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Resolve(missing) error = %v, want ErrUnknownScenario", err)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	s, err := Builtin("dilemma")
	if err != nil {
		t.Fatalf("Builtin(dilemma) error = %v", err)
	}
	again, err := FromFile(s.File())
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if len(again.Scene) != len(s.Scene) || *again.Conflict != *s.Conflict || again.Anchors != s.Anchors {
		t.Errorf("round trip changed the scenario: %+v", again)
	}
}
