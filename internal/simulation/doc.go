// Package simulation drives the scene dynamics loop: a fixed number of
// discrete steps, each of which scores the scene and then grows, prunes, or
// diversifies it depending on where coherence falls against two thresholds.
//
// The regimes are:
//   - expand (coherence < low): propose one new distinction
//   - contract (coherence > high on an even step): remove one random
//     distinction, unless the scene is already at the minimum size
//   - diversify (otherwise): add a new entity labeled from the step index,
//     then propose two distinctions against the enlarged entity set
//
// The even-step gate on contraction damps oscillation and is part of the
// model. All random choices go through the *rand.Rand given to NewLoop, so a
// fixed seed reproduces a run exactly.
//
// Usage:
//
//	loop := simulation.NewLoop(simulation.DefaultConfig(), scorer, simulation.NewRand(42))
//	result, err := loop.Run(ctx, simulation.NewState(seed, entities, aspects))
//	simulation.AssertRegimes(t, result, simulation.DefaultConfig())
package simulation
