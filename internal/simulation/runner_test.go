package simulation

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/scene"
)

func newLoop(weight float64, seed uint64) *Loop {
	return NewLoop(DefaultConfig(), coherence.NewScorer(coherence.Config{Weight: weight}), NewRand(seed))
}

func growthState() State {
	seed := scene.Scene{
		scene.D("A", "B", "alpha_causal"),
		scene.D("B", "C", "alpha_causal"),
		scene.D("Agent", "A", "alpha_context"),
	}
	return NewState(seed, []scene.Entity{"A", "B", "C", "Agent"}, []scene.Aspect{"alpha_causal", "alpha_context"})
}

// starState builds a hub with n spokes, each on its own aspect, so every
// spoke is connected to every other with a different aspect.
func starState(n int) State {
	names := []string{"a", "b", "c", "d", "e", "f"}
	aspects := []string{"p", "q", "r", "s", "t", "u"}
	var sc scene.Scene
	entities := []scene.Entity{"hub"}
	var vocabulary []scene.Aspect
	for i := 0; i < n; i++ {
		sc = append(sc, scene.D("hub", names[i], aspects[i]))
		entities = append(entities, scene.Entity(names[i]))
		vocabulary = append(vocabulary, scene.Aspect(aspects[i]))
	}
	return NewState(sc, entities, vocabulary)
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		c    float64
		step int
		want Action
	}{
		{"low coherence expands", 0.2, 0, ActionExpand},
		{"low coherence expands on odd step", 0.39, 3, ActionExpand},
		{"low threshold is diversify", 0.4, 2, ActionDiversify},
		{"middle band diversifies", 0.7, 4, ActionDiversify},
		{"high threshold is diversify", 1.0, 0, ActionDiversify},
		{"high coherence contracts on even step", 1.2, 4, ActionContract},
		{"high coherence diversifies on odd step", 1.2, 5, ActionDiversify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.c, tt.step, cfg); got != tt.want {
				t.Errorf("Classify(%f, %d) = %s, want %s", tt.c, tt.step, got, tt.want)
			}
		})
	}
}

func TestStep_LowCoherenceExpands(t *testing.T) {
	loop := newLoop(0.3, 1)
	st := growthState()

	next, rec := loop.Step(st)

	if math.Abs(rec.Coherence-0.2) > 1e-9 {
		t.Fatalf("coherence = %f, want 0.2", rec.Coherence)
	}
	if rec.Action != ActionExpand {
		t.Fatalf("action = %s, want expand", rec.Action)
	}
	if len(rec.Added) != 1 || len(rec.Removed) != 0 {
		t.Fatalf("added %d removed %d, want 1 and 0", len(rec.Added), len(rec.Removed))
	}
	if len(next.Scene) != 4 {
		t.Errorf("next scene size = %d, want 4", len(next.Scene))
	}
	if next.Step != 1 {
		t.Errorf("next step = %d, want 1", next.Step)
	}
	if rec.NewEntity != "" {
		t.Errorf("expand added entity %q", rec.NewEntity)
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	loop := newLoop(0.3, 1)
	st := starState(3)
	before := st.Scene.Clone()

	loop.Step(st)

	if !reflect.DeepEqual(st.Scene, before) {
		t.Errorf("input scene mutated: %s", st.Scene)
	}
	if st.Entities.Has("X0") {
		t.Error("input entity set mutated")
	}
	if st.Step != 0 {
		t.Errorf("input step mutated: %d", st.Step)
	}
}

func TestStep_ContractOnEvenStep(t *testing.T) {
	loop := newLoop(0.3, 9)
	st := starState(5) // each spoke scores 4 * 0.3 = 1.2

	next, rec := loop.Step(st)

	if rec.Action != ActionContract {
		t.Fatalf("action = %s (coherence %f), want contract", rec.Action, rec.Coherence)
	}
	if len(rec.Removed) != 1 {
		t.Fatalf("removed %d, want 1", len(rec.Removed))
	}
	if len(next.Scene) != 4 {
		t.Errorf("size = %d, want 4", len(next.Scene))
	}
	if next.Scene.Contains(rec.Removed[0]) {
		t.Errorf("removed distinction %s still present", rec.Removed[0])
	}
}

func TestStep_HighCoherenceOnOddStepDiversifies(t *testing.T) {
	loop := newLoop(0.3, 9)
	st := starState(5)
	st.Step = 1

	next, rec := loop.Step(st)

	if rec.Action != ActionDiversify {
		t.Fatalf("action = %s, want diversify", rec.Action)
	}
	if rec.NewEntity != "X1" {
		t.Errorf("new entity = %q, want X1", rec.NewEntity)
	}
	if !next.Entities.Has("X1") {
		t.Error("X1 missing from next entity set")
	}
}

func TestStep_ContractAtMinimumSizeIsNoop(t *testing.T) {
	loop := newLoop(1.0, 3)
	st := starState(3) // each spoke scores 2 * 1.0 = 2.0

	next, rec := loop.Step(st)

	if rec.Action != ActionContract {
		t.Fatalf("action = %s, want contract", rec.Action)
	}
	if len(rec.Removed) != 0 {
		t.Errorf("removed %d at minimum size", len(rec.Removed))
	}
	if len(next.Scene) != 3 {
		t.Errorf("size = %d, want 3", len(next.Scene))
	}
}

func TestStep_ContractJustAboveMinimum(t *testing.T) {
	loop := newLoop(1.0, 3)
	st := starState(4)

	next, rec := loop.Step(st)

	if rec.Action != ActionContract || len(rec.Removed) != 1 {
		t.Fatalf("action %s removed %d, want contract removing 1", rec.Action, len(rec.Removed))
	}
	if len(next.Scene) != 3 {
		t.Errorf("size = %d, want 3", len(next.Scene))
	}
}

func TestStep_Diversify(t *testing.T) {
	loop := newLoop(0.3, 5)
	st := starState(3) // each spoke scores 2 * 0.3 = 0.6

	next, rec := loop.Step(st)

	if rec.Action != ActionDiversify {
		t.Fatalf("action = %s (coherence %f), want diversify", rec.Action, rec.Coherence)
	}
	if rec.NewEntity != "X0" {
		t.Errorf("new entity = %q, want X0", rec.NewEntity)
	}
	if len(rec.Added) != 2 {
		t.Fatalf("added %d, want 2", len(rec.Added))
	}
	if rec.Added[0].Joins(rec.Added[1].Source, rec.Added[1].Target) {
		t.Errorf("second proposal %s reuses pair of first %s", rec.Added[1], rec.Added[0])
	}
	if len(next.Scene) != 5 {
		t.Errorf("size = %d, want 5", len(next.Scene))
	}
	if next.Entities.Len() != 5 {
		t.Errorf("entities = %d, want 5", next.Entities.Len())
	}
}

func TestStep_DiversifyExistingEntityIsNotNew(t *testing.T) {
	loop := newLoop(0.3, 5)
	st := starState(3)
	st.Entities.Add("X0")

	_, rec := loop.Step(st)

	if rec.NewEntity != "" {
		t.Errorf("new entity = %q, want none for an existing label", rec.NewEntity)
	}
}

func TestStep_ExhaustedExpandIsNoop(t *testing.T) {
	loop := newLoop(0.3, 1)
	st := NewState(scene.Scene{scene.D("A", "B", "x")}, []scene.Entity{"A", "B"}, []scene.Aspect{"x"})

	next, rec := loop.Step(st)

	if rec.Action != ActionExpand {
		t.Fatalf("action = %s, want expand", rec.Action)
	}
	if len(rec.Added) != 0 || len(next.Scene) != 1 {
		t.Errorf("expected no-op, added %d, size %d", len(rec.Added), len(next.Scene))
	}
}

func TestRun_GrowthScenario(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		loop := newLoop(0.3, seed)
		st := growthState()

		result, err := loop.Run(context.Background(), st)
		if err != nil {
			t.Fatalf("seed %d: Run: %v", seed, err)
		}

		AssertStepsContiguous(t, result, 0, 15)
		AssertRegimes(t, result, loop.Config())
		AssertSizeAccounting(t, result)
		AssertContractionBounded(t, result, loop.Config().MinSceneSize)
		AssertNoRepeatedPairs(t, result, st)

		if result.History[0].Action != ActionExpand {
			t.Errorf("seed %d: first action = %s, want expand", seed, result.History[0].Action)
		}
		if result.Final.Step != 15 {
			t.Errorf("seed %d: final step = %d, want 15", seed, result.Final.Step)
		}
		for _, c := range result.Coherences() {
			if c < 0 {
				t.Errorf("seed %d: negative coherence %f", seed, c)
			}
		}
	}
}

func TestRun_SameSeedSameRun(t *testing.T) {
	a, err := newLoop(0.3, 42).Run(context.Background(), growthState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := newLoop(0.3, 42).Run(context.Background(), growthState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(a.History, b.History) {
		t.Error("histories differ for the same seed")
	}
	if !reflect.DeepEqual(a.Final.Scene, b.Final.Scene) {
		t.Error("final scenes differ for the same seed")
	}
	if !reflect.DeepEqual(a.Final.Entities.Slice(), b.Final.Entities.Slice()) {
		t.Error("final entity sets differ for the same seed")
	}
}

func TestRun_StreamsToSinks(t *testing.T) {
	var steps []int
	sink := HistorySinkFunc(func(ctx context.Context, rec Record) error {
		steps = append(steps, rec.Step)
		return nil
	})

	result, err := newLoop(0.3, 7).Run(context.Background(), growthState(), sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) != len(result.History) {
		t.Fatalf("sink saw %d records, history has %d", len(steps), len(result.History))
	}
	for i, s := range steps {
		if s != i {
			t.Errorf("sink record %d has step %d", i, s)
		}
	}
}

func TestRun_SinkErrorStopsRun(t *testing.T) {
	errFull := errors.New("sink full")
	sink := HistorySinkFunc(func(ctx context.Context, rec Record) error {
		if rec.Step == 2 {
			return errFull
		}
		return nil
	})

	result, err := newLoop(0.3, 7).Run(context.Background(), growthState(), sink)
	if !errors.Is(err, errFull) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(result.History) != 3 {
		t.Errorf("history length = %d, want 3", len(result.History))
	}
}

func TestRun_ZeroSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steps = 0
	loop := NewLoop(cfg, coherence.NewScorer(coherence.DefaultConfig()), NewRand(1))

	result, err := loop.Run(context.Background(), growthState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.History) != 0 {
		t.Errorf("history length = %d, want 0", len(result.History))
	}
	if len(result.Final.Scene) != 3 {
		t.Errorf("final size = %d, want 3", len(result.Final.Scene))
	}
}

func TestResult_Series(t *testing.T) {
	result, err := newLoop(0.3, 11).Run(context.Background(), growthState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sizes := result.Sizes()
	if sizes[0] != 3 {
		t.Errorf("initial size = %d, want 3", sizes[0])
	}
	total := 0
	for _, n := range result.ActionCounts() {
		total += n
	}
	if total != len(result.History) {
		t.Errorf("action counts sum to %d, want %d", total, len(result.History))
	}
}

func TestSeedEntities(t *testing.T) {
	sc := scene.Scene{scene.D("A", "B", "x"), scene.D("C", "A", "y")}
	got := SeedEntities(sc, []scene.Entity{"Agent", "A"})
	want := []scene.Entity{"Agent", "A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SeedEntities = %v, want %v", got, want)
	}
}

func TestAction_Valid(t *testing.T) {
	for _, a := range []Action{ActionExpand, ActionContract, ActionDiversify} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if Action("grow").Valid() {
		t.Error("unknown action should be invalid")
	}
}
