package council

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Weighted sums per-selector weights for each voted model. Selectors missing
// from the weight table count with DefaultWeight.
type Weighted struct {
	base
	weights map[string]float64
}

// NewWeighted creates a weighted majority council. The weight table is copied.
// Negative, NaN and infinite weights are rejected.
func NewWeighted(selectors []Selector, weights map[string]float64, timeout time.Duration, logger *zap.Logger) (*Weighted, error) {
	b, err := newBase(string(StrategyWeighted), selectors, timeout, logger)
	if err != nil {
		return nil, err
	}
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		if !ValidWeight(v) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidWeight, k, v)
		}
		w[k] = v
	}
	return &Weighted{base: b, weights: w}, nil
}

func (w *Weighted) weightFor(selector string) float64 {
	if v, ok := w.weights[selector]; ok {
		return v
	}
	return DefaultWeight
}

// Decide runs the weighted vote.
func (w *Weighted) Decide(ctx context.Context, prompt string) (*Decision, error) {
	raw, failed := w.collect(w.fanOut(ctx, prompt))
	if len(raw) == 0 {
		return nil, noDecision(w.name)
	}

	votes := make([]Vote, 0, len(raw))
	sums := newTally()
	for _, v := range raw {
		stamped := v.WithWeight(w.weightFor(v.SelectorName))
		votes = append(votes, stamped)
		sums.add(stamped.Model, stamped.Weight)
	}
	winner, _ := sums.argmax()

	d := newDecision(w.name, prompt, len(w.selectors), failed)
	d.FinalModel = winner
	d.Votes = votes
	d.WeightedResults = sums.results()
	return d, nil
}

// ValidWeight reports whether w can be summed into a weighted tally.
func ValidWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}
