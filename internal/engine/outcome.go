package engine

import (
	"math/rand/v2"
	"sync"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// OutcomeFunc returns the run status (pass or fail) for step n of caseID.
type OutcomeFunc func(caseID string, n int) string

// BiasedOutcome passes each step with probability p using src.
func BiasedOutcome(p float64, src rand.Source) OutcomeFunc {
	var mu sync.Mutex
	r := rand.New(src)
	return func(string, int) string {
		mu.Lock()
		defer mu.Unlock()
		if r.Float64() < p {
			return types.RunStatusPass
		}
		return types.RunStatusFail
	}
}

// SeededOutcome is BiasedOutcome over a PCG source seeded with seed.
func SeededOutcome(p float64, seed uint64) OutcomeFunc {
	return BiasedOutcome(p, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// FixedOutcomes replays statuses in order and wraps around. An empty list
// passes every step.
func FixedOutcomes(statuses ...string) OutcomeFunc {
	var mu sync.Mutex
	i := 0
	return func(string, int) string {
		mu.Lock()
		defer mu.Unlock()
		if len(statuses) == 0 {
			return types.RunStatusPass
		}
		s := statuses[i%len(statuses)]
		i++
		return s
	}
}
