// Package constants provides named constants used throughout the coherence codebase.
// Every value here is a default: callers can override each one through
// config.CoherenceConfig or CLI flags.
package constants

// Scoring constants
const (
	// DefaultCoherenceWeight is the contribution (w) one connected,
	// differently-aspected distinction adds to another's coherence.
	DefaultCoherenceWeight = 0.3
)

// Dynamics thresholds split scene coherence into three regimes.
const (
	// DefaultLowThreshold is the coherence below which the scene expands.
	DefaultLowThreshold = 0.4

	// DefaultHighThreshold is the coherence above which the scene contracts
	// (on even steps only).
	DefaultHighThreshold = 1.0

	// DefaultSteps is the number of discrete steps in a dynamics run (T).
	DefaultSteps = 15

	// DefaultSeed seeds the dynamics random source when none is given.
	DefaultSeed = 1

	// MaxSteps bounds the step count accepted from configuration.
	MaxSteps = 10000

	// DefaultMinSceneSize is the size at or below which contraction is a no-op.
	DefaultMinSceneSize = 3

	// DefaultDiversifyProposals is how many distinctions the diversify
	// regime attempts after adding a new entity.
	DefaultDiversifyProposals = 2

	// DefaultEntityPrefix labels entities introduced by diversification;
	// the step index is appended ("X7").
	DefaultEntityPrefix = "X"
)

// Conflict resolution constants
const (
	// DefaultBonusFactor scales the structural bonus: score = ΔC * (1 + factor*len(aux)).
	DefaultBonusFactor = 0.1

	// DefaultRetentionThreshold is the minimum per-distinction coherence a
	// distinction of the original scene needs to survive into a candidate scene.
	DefaultRetentionThreshold = 0.3
)

// Display constants
const (
	// CoherenceDisplayPrecision is the number of decimals used when
	// coherence values are printed in history tables.
	CoherenceDisplayPrecision = 3
)

// Filesystem constants
const (
	// ConfigDirName is the directory under the user's home holding
	// config.yaml, the run store, and the decision log.
	ConfigDirName = ".coherence"

	// StoreFileName is the SQLite run store file inside ConfigDirName.
	StoreFileName = "runs.db"
)
