package council

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSelectorTimeout bounds a single selector invocation.
const DefaultSelectorTimeout = 30 * time.Second

// outcome is the tagged result of one selector invocation.
type outcome struct {
	selector string
	vote     Vote
	err      error
}

func (o outcome) ok() bool { return o.err == nil }

// base carries what every council needs: an ordered selector list, a timeout
// and a logger.
type base struct {
	name      string
	selectors []Selector
	timeout   time.Duration
	logger    *zap.Logger
}

func newBase(name string, selectors []Selector, timeout time.Duration, logger *zap.Logger) (base, error) {
	if len(selectors) == 0 {
		return base{}, ErrNoSelectors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultSelectorTimeout
	}
	sel := make([]Selector, len(selectors))
	copy(sel, selectors)
	return base{
		name:      name,
		selectors: sel,
		timeout:   timeout,
		logger:    logger.With(zap.String("council", name)),
	}, nil
}

// Name returns the council strategy name.
func (b *base) Name() string { return b.name }

// invoke runs one selector with a timeout, turning panics and errors into a
// failed outcome.
func (b *base) invoke(ctx context.Context, s Selector, prompt string) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{selector: s.Name(), err: NewSelectorError(s.Name(), fmt.Errorf("panic: %v", r))}
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	vote, err := s.SelectModel(cctx, prompt)
	if err != nil {
		var serr *SelectorError
		if !errors.As(err, &serr) {
			err = NewSelectorError(s.Name(), err)
		}
		return outcome{selector: s.Name(), err: err}
	}
	if vote.Model == "" {
		return outcome{selector: s.Name(), err: NewSelectorError(s.Name(), errors.New("empty model in vote"))}
	}
	if vote.SelectorName == "" {
		vote.SelectorName = s.Name()
	}
	b.logger.Debug("selector voted",
		zap.String("selector", s.Name()),
		zap.String("model", vote.Model),
		zap.Float64("confidence", vote.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcome{selector: s.Name(), vote: vote}
}

// fanOut invokes every selector concurrently and waits for all of them.
// Outcomes are returned in selector order regardless of completion order.
func (b *base) fanOut(ctx context.Context, prompt string) []outcome {
	outs := make([]outcome, len(b.selectors))
	var eg errgroup.Group
	for i, s := range b.selectors {
		eg.Go(func() error {
			outs[i] = b.invoke(ctx, s, prompt)
			return nil
		})
	}
	_ = eg.Wait()
	return outs
}

// collect splits outcomes into votes and a failure count, logging failures.
func (b *base) collect(outs []outcome) ([]Vote, int) {
	votes := make([]Vote, 0, len(outs))
	failed := 0
	for _, o := range outs {
		if !o.ok() {
			failed++
			b.logger.Warn("selector failed", zap.String("selector", o.selector), zap.Error(o.err))
			continue
		}
		votes = append(votes, o.vote)
	}
	return votes, failed
}
