package resolution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/coherence/internal/scene"
)

// Family is one of the four aspect families the repair rules know.
type Family string

const (
	FamilyReward   Family = "reward"
	FamilyPriority Family = "priority"
	FamilyValue    Family = "value"
	FamilyTime     Family = "time"
)

// Families lists every known family in table order.
var Families = []Family{FamilyReward, FamilyPriority, FamilyValue, FamilyTime}

var (
	// ErrUnknownAspectFamily is returned when a candidate aspect has no
	// repair rule. It is a configuration error and is raised before any
	// candidate is evaluated.
	ErrUnknownAspectFamily = errors.New("unrecognized aspect family")

	// ErrConflictNotInScene is returned when the conflict distinction is not
	// a member of the scene.
	ErrConflictNotInScene = errors.New("conflict distinction not in scene")

	// ErrNoCandidates is returned when the candidate vocabulary is empty.
	ErrNoCandidates = errors.New("no candidate aspects")

	// ErrMissingAnchor is returned when a repair rule needs an anchor entity
	// that was not configured.
	ErrMissingAnchor = errors.New("missing anchor entity")
)

// ParseFamily maps a family name (case-insensitive) to a Family.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAspectFamily, s)
	}
	return f, nil
}

// Valid returns true if the family is a recognized value.
func (f Family) Valid() bool {
	switch f {
	case FamilyReward, FamilyPriority, FamilyValue, FamilyTime:
		return true
	}
	return false
}

// Suffix is the label appended to a candidate aspect to derive the new aspect.
func (f Family) Suffix() string {
	switch f {
	case FamilyReward:
		return "balanced"
	case FamilyPriority:
		return "focus"
	case FamilyValue:
		return "optimized"
	case FamilyTime:
		return "efficient"
	}
	return ""
}

// DerivedAspect returns "<aspect>_<suffix>", e.g. "alpha_reward_balanced".
func (f Family) DerivedAspect(aspect scene.Aspect) scene.Aspect {
	return scene.Aspect(string(aspect) + "_" + f.Suffix())
}

// InferFamilies classifies aspects whose label is a family name or ends in
// "_<family>" (e.g. "alpha_reward"). Aspects that match nothing are left out,
// so they surface as ErrUnknownAspectFamily at evaluation time.
func InferFamilies(aspects []scene.Aspect) map[scene.Aspect]Family {
	out := make(map[scene.Aspect]Family)
	for _, a := range aspects {
		label := strings.ToLower(string(a))
		for _, f := range Families {
			if label == string(f) || strings.HasSuffix(label, "_"+string(f)) {
				out[a] = f
				break
			}
		}
	}
	return out
}

// Anchors are the fixed background entities the repair rules graft onto.
type Anchors struct {
	// RewardSource is linked from the conflict source by the reward rule (b1).
	RewardSource scene.Entity `json:"reward_source" yaml:"reward_source"`
	// RewardTarget is linked from the conflict target by the reward rule (b2).
	RewardTarget scene.Entity `json:"reward_target" yaml:"reward_target"`
	// Priority is the shared focus of the priority rule (b3).
	Priority scene.Entity `json:"priority" yaml:"priority"`
	// Value is the shared focus of the value rule (b4).
	Value scene.Entity `json:"value" yaml:"value"`
}

// Recipe builds the primary and auxiliary distinctions of a family's repair
// for the conflict (x, y, _) under the derived aspect.
func Recipe(f Family, x, y scene.Entity, anchors Anchors, derived scene.Aspect) (scene.Distinction, []scene.Distinction, error) {
	switch f {
	case FamilyReward:
		if anchors.RewardSource == "" || anchors.RewardTarget == "" {
			return scene.Distinction{}, nil, fmt.Errorf("%w: reward rule needs reward_source and reward_target", ErrMissingAnchor)
		}
		return scene.Distinction{Source: x, Target: y, Aspect: derived}, []scene.Distinction{
			{Source: x, Target: anchors.RewardSource, Aspect: derived},
			{Source: y, Target: anchors.RewardTarget, Aspect: derived},
		}, nil

	case FamilyPriority:
		if anchors.Priority == "" {
			return scene.Distinction{}, nil, fmt.Errorf("%w: priority rule needs priority", ErrMissingAnchor)
		}
		return scene.Distinction{Source: x, Target: anchors.Priority, Aspect: derived}, []scene.Distinction{
			{Source: y, Target: anchors.Priority, Aspect: derived},
		}, nil

	case FamilyValue:
		if anchors.Value == "" {
			return scene.Distinction{}, nil, fmt.Errorf("%w: value rule needs value", ErrMissingAnchor)
		}
		return scene.Distinction{Source: y, Target: anchors.Value, Aspect: derived}, []scene.Distinction{
			{Source: x, Target: anchors.Value, Aspect: derived},
		}, nil

	case FamilyTime:
		return scene.Distinction{Source: x, Target: y, Aspect: derived}, nil, nil
	}
	return scene.Distinction{}, nil, fmt.Errorf("%w: %q", ErrUnknownAspectFamily, f)
}
