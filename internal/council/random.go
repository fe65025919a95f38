package council

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Random draws the final model uniformly from the cast votes, so a model
// voted twice is twice as likely to win.
type Random struct {
	base
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random council. A zero seed uses a random seed; any
// other value makes draws reproducible.
func NewRandom(selectors []Selector, seed uint64, timeout time.Duration, logger *zap.Logger) (*Random, error) {
	b, err := newBase(string(StrategyRandom), selectors, timeout, logger)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Random{base: b, rng: rand.New(rand.NewPCG(seed, seed))}, nil
}

func (r *Random) pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// Decide draws one of the votes.
func (r *Random) Decide(ctx context.Context, prompt string) (*Decision, error) {
	votes, failed := r.collect(r.fanOut(ctx, prompt))
	if len(votes) == 0 {
		return nil, noDecision(r.name)
	}

	seen := newTally()
	for _, v := range votes {
		seen.set(v.Model, 1)
	}

	d := newDecision(r.name, prompt, len(r.selectors), failed)
	d.FinalModel = votes[r.pick(len(votes))].Model
	d.Votes = votes
	d.WeightedResults = seen.results()
	return d, nil
}
