package council

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Unanimous accepts a model only when every configured selector voted for it.
// A failed selector therefore breaks unanimity and the default model is used.
type Unanimous struct {
	base
	defaultModel string
}

// NewUnanimous creates a unanimity council.
func NewUnanimous(selectors []Selector, defaultModel string, timeout time.Duration, logger *zap.Logger) (*Unanimous, error) {
	if defaultModel == "" {
		return nil, ErrMissingDefaultModel
	}
	b, err := newBase(string(StrategyUnanimous), selectors, timeout, logger)
	if err != nil {
		return nil, err
	}
	return &Unanimous{base: b, defaultModel: defaultModel}, nil
}

// Decide runs the unanimity check.
func (u *Unanimous) Decide(ctx context.Context, prompt string) (*Decision, error) {
	votes, failed := u.collect(u.fanOut(ctx, prompt))
	if len(votes) == 0 {
		return nil, noDecision(u.name)
	}

	counts := newTally()
	for _, v := range votes {
		counts.add(v.Model, 1)
	}

	d := newDecision(u.name, prompt, len(u.selectors), failed)
	d.Votes = votes
	d.WeightedResults = counts.results()
	for _, m := range counts.order {
		if int(counts.scores[m]) == len(u.selectors) {
			d.FinalModel = m
			return d, nil
		}
	}
	u.logger.Debug("no unanimous model, using default model", zap.String("model", u.defaultModel))
	d.FinalModel = u.defaultModel
	return d, nil
}
