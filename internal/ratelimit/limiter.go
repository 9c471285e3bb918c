// Package ratelimit provides per-tool token bucket rate limiting for MCP tools.
//
// Requests are charged by the work they ask for: a simulation of many steps
// spends more tokens than a single scoring call.
package ratelimit

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with a refill rate and a burst capacity.
// It is safe for concurrent use.
type Limiter struct {
	bucket  *rate.Limiter
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a limiter that refills at r tokens per second and
// holds at most burst tokens. It starts full.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		bucket:  rate.NewLimiter(rate.Limit(r), burst),
		nowFunc: time.Now,
	}
}

// Allow spends one token.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN spends n tokens if they are available. A request costing more than
// the burst is clamped to the burst so it can eventually succeed.
func (l *Limiter) AllowN(n int) bool {
	if n < 1 {
		n = 1
	}
	return l.bucket.AllowN(l.nowFunc(), min(n, l.bucket.Burst()))
}

// Tokens reports the tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.bucket.TokensAt(l.nowFunc())
}

// Rate returns the refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	return float64(l.bucket.Limit())
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.bucket.Burst()
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default limiters for the coherence tools.
// Scoring and rendering are cheap; simulation is charged per step block.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"coherence_score":    NewLimiter(1.0, 10),       // 60/minute, burst 10
		"coherence_graph":    NewLimiter(30.0/60.0, 5),  // 30/minute, burst 5
		"coherence_resolve":  NewLimiter(30.0/60.0, 5),  // 30/minute, burst 5
		"coherence_simulate": NewLimiter(60.0/60.0, 20), // 60 step blocks/minute, burst 20
	}
}

// StepBlock is the number of simulation steps charged as one token.
const StepBlock = 15

// SimulationCost returns the token cost of a simulation of the given length.
func SimulationCost(steps int) int {
	if steps <= StepBlock {
		return 1
	}
	return (steps + StepBlock - 1) / StepBlock
}

// CheckLimit charges cost tokens to the named tool's limiter.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string, cost int) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.AllowN(cost) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
