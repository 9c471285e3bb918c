package simulation

import (
	"testing"
)

// AssertStepsContiguous asserts that the history holds exactly want records
// numbered from first upward without gaps.
func AssertStepsContiguous(t *testing.T, result Result, first, want int) {
	t.Helper()
	if len(result.History) != want {
		t.Fatalf("AssertStepsContiguous: %d records, want %d", len(result.History), want)
	}
	for i, rec := range result.History {
		if rec.Step != first+i {
			t.Errorf("AssertStepsContiguous: record %d has step %d, want %d", i, rec.Step, first+i)
		}
	}
}

// AssertRegimes asserts that every recorded action matches the regime its
// coherence and step index call for.
func AssertRegimes(t *testing.T, result Result, config Config) {
	t.Helper()
	for _, rec := range result.History {
		want := Classify(rec.Coherence, rec.Step, config)
		if rec.Action != want {
			t.Errorf("AssertRegimes: step %d coherence %.4f: action %s, want %s", rec.Step, rec.Coherence, rec.Action, want)
		}
	}
}

// AssertSizeAccounting asserts that each record's size equals the previous
// size plus what the previous step added minus what it removed, and that the
// final scene continues the series.
func AssertSizeAccounting(t *testing.T, result Result) {
	t.Helper()
	for i := 1; i < len(result.History); i++ {
		prev := result.History[i-1]
		want := prev.Size + len(prev.Added) - len(prev.Removed)
		if result.History[i].Size != want {
			t.Errorf("AssertSizeAccounting: step %d size %d, want %d", result.History[i].Step, result.History[i].Size, want)
		}
	}
	if n := len(result.History); n > 0 {
		last := result.History[n-1]
		want := last.Size + len(last.Added) - len(last.Removed)
		if got := len(result.Final.Scene); got != want {
			t.Errorf("AssertSizeAccounting: final scene size %d, want %d", got, want)
		}
	}
}

// AssertContractionBounded asserts that no contraction removed more than one
// distinction and none shrank a scene at or below minSize.
func AssertContractionBounded(t *testing.T, result Result, minSize int) {
	t.Helper()
	for _, rec := range result.History {
		if rec.Action != ActionContract {
			if len(rec.Removed) > 0 {
				t.Errorf("AssertContractionBounded: step %d removed distinctions during %s", rec.Step, rec.Action)
			}
			continue
		}
		switch {
		case rec.Size <= minSize && len(rec.Removed) != 0:
			t.Errorf("AssertContractionBounded: step %d removed from a scene of size %d", rec.Step, rec.Size)
		case rec.Size > minSize && len(rec.Removed) != 1:
			t.Errorf("AssertContractionBounded: step %d removed %d distinctions, want 1", rec.Step, len(rec.Removed))
		}
	}
}

// AssertNoRepeatedPairs asserts that no step added a distinction between a
// pair of entities already related in the vocabulary before that step.
// It replays the history against the given seed scene.
func AssertNoRepeatedPairs(t *testing.T, result Result, seed State) {
	t.Helper()
	vocabulary := make(map[string]bool, len(seed.Aspects))
	for _, a := range seed.Aspects {
		vocabulary[string(a)] = true
	}
	current := seed.Scene.Clone()
	for _, rec := range result.History {
		for _, added := range rec.Added {
			for _, existing := range current {
				if vocabulary[string(existing.Aspect)] && existing.Joins(added.Source, added.Target) {
					t.Errorf("AssertNoRepeatedPairs: step %d added %s over existing %s", rec.Step, added, existing)
				}
			}
			current = append(current, added)
		}
		for _, removed := range rec.Removed {
			for i, d := range current {
				if d == removed {
					current = current.RemoveAt(i)
					break
				}
			}
		}
	}
}
