package council

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultCascadeThreshold is the confidence a vote must exceed to end a cascade.
const DefaultCascadeThreshold = 0.7

// Cascade asks selectors one at a time in configured order and accepts the
// first vote whose confidence exceeds the threshold. Selectors after the
// accepted one are never invoked.
type Cascade struct {
	base
	defaultModel string
	threshold    float64
}

// NewCascade creates a cascade council. A zero threshold means
// DefaultCascadeThreshold; any other value outside (0, 1] is rejected.
func NewCascade(selectors []Selector, defaultModel string, threshold float64, timeout time.Duration, logger *zap.Logger) (*Cascade, error) {
	if defaultModel == "" {
		return nil, ErrMissingDefaultModel
	}
	b, err := newBase(string(StrategyCascade), selectors, timeout, logger)
	if err != nil {
		return nil, err
	}
	if threshold == 0 {
		threshold = DefaultCascadeThreshold
	}
	if !ValidThreshold(threshold) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return &Cascade{base: b, defaultModel: defaultModel, threshold: threshold}, nil
}

// Decide runs the cascade.
func (c *Cascade) Decide(ctx context.Context, prompt string) (*Decision, error) {
	scores := newTally()
	votes := make([]Vote, 0, len(c.selectors))
	failed := 0
	final := ""

	for _, s := range c.selectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := c.invoke(ctx, s, prompt)
		if !o.ok() {
			failed++
			c.logger.Warn("selector failed", zap.String("selector", o.selector), zap.Error(o.err))
			continue
		}
		votes = append(votes, o.vote)
		scores.set(o.vote.Model, o.vote.Confidence)
		if o.vote.Confidence > c.threshold {
			final = o.vote.Model
			break
		}
	}

	if len(votes) == 0 {
		return nil, noDecision(c.name)
	}

	d := newDecision(c.name, prompt, len(c.selectors), failed)
	d.Votes = votes
	d.WeightedResults = scores.results()
	if final == "" {
		c.logger.Debug("no confident vote, using default model", zap.String("model", c.defaultModel))
		final = c.defaultModel
	}
	d.FinalModel = final
	return d, nil
}

// ValidThreshold reports whether t is usable as a cascade threshold.
func ValidThreshold(t float64) bool {
	return t > 0 && t <= 1
}
