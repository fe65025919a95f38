package council

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Majority asks all selectors concurrently and picks the most voted model.
// Ties go to the model that was voted first in selector order.
type Majority struct {
	base
}

// NewMajority creates a parallel majority council.
func NewMajority(selectors []Selector, timeout time.Duration, logger *zap.Logger) (*Majority, error) {
	b, err := newBase(string(StrategyMajority), selectors, timeout, logger)
	if err != nil {
		return nil, err
	}
	return &Majority{base: b}, nil
}

// Decide runs the vote.
func (m *Majority) Decide(ctx context.Context, prompt string) (*Decision, error) {
	votes, failed := m.collect(m.fanOut(ctx, prompt))
	if len(votes) == 0 {
		return nil, noDecision(m.name)
	}

	counts := newTally()
	for _, v := range votes {
		counts.add(v.Model, 1)
	}
	winner, _ := counts.argmax()

	d := newDecision(m.name, prompt, len(m.selectors), failed)
	d.FinalModel = winner
	d.Votes = votes
	d.WeightedResults = counts.results()
	return d, nil
}
