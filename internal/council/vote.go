package council

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultWeight is the weight of a vote that no council has re-weighted.
	DefaultWeight = 1.0
	// DefaultConfidence is assumed for selectors that do not report one.
	DefaultConfidence = 1.0
)

// Metadata keys written on every decision.
const (
	MetaPromptLength        = "prompt_length"
	MetaCouncil             = "council"
	MetaSelectorsConfigured = "selectors_configured"
	MetaSelectorsFailed     = "selectors_failed"
)

var (
	// ErrNoValidVotes is returned when every selector of a council failed.
	ErrNoValidVotes = errors.New("no valid votes")
	// ErrUnknownStrategy is returned by New for an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown council strategy")
	// ErrNoSelectors is returned when a council is built without selectors.
	ErrNoSelectors = errors.New("council requires at least one selector")
	// ErrMissingDefaultModel is returned when a council that can fall back has no default model.
	ErrMissingDefaultModel = errors.New("council requires a default model")
	// ErrInvalidWeight is returned for a negative or non-finite selector weight.
	ErrInvalidWeight = errors.New("selector weight must be a finite, non-negative number")
	// ErrInvalidThreshold is returned for a cascade threshold outside (0, 1].
	ErrInvalidThreshold = errors.New("cascade threshold must be in (0, 1]")
)

// Vote is a single selector's proposal.
type Vote struct {
	SelectorName string  `json:"selector_name"`
	Model        string  `json:"model"`
	Weight       float64 `json:"weight"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale,omitempty"`
}

// NewVote creates a vote with default weight and confidence.
func NewVote(selector, model, rationale string) Vote {
	return Vote{
		SelectorName: selector,
		Model:        model,
		Weight:       DefaultWeight,
		Confidence:   DefaultConfidence,
		Rationale:    rationale,
	}
}

// WithWeight returns a copy of the vote carrying weight w.
func (v Vote) WithWeight(w float64) Vote {
	v.Weight = w
	return v
}

// WithConfidence returns a copy of the vote carrying confidence c.
func (v Vote) WithConfidence(c float64) Vote {
	v.Confidence = c
	return v
}

// Decision is the outcome of one council run.
type Decision struct {
	FinalModel      string             `json:"final_model"`
	Votes           []Vote             `json:"votes"`
	WeightedResults map[string]float64 `json:"weighted_results"`
	Metadata        map[string]string  `json:"metadata"`
}

// Selector proposes a model for a prompt.
type Selector interface {
	Name() string
	SelectModel(ctx context.Context, prompt string) (Vote, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc struct {
	SelectorName string
	Fn           func(ctx context.Context, prompt string) (Vote, error)
}

// Name returns the selector name.
func (f SelectorFunc) Name() string { return f.SelectorName }

// SelectModel calls the wrapped function.
func (f SelectorFunc) SelectModel(ctx context.Context, prompt string) (Vote, error) {
	return f.Fn(ctx, prompt)
}

// Council aggregates selector votes into a decision.
type Council interface {
	Name() string
	Decide(ctx context.Context, prompt string) (*Decision, error)
}

// SelectorError reports that a selector could not produce a vote.
type SelectorError struct {
	Selector string
	Err      error
}

// NewSelectorError wraps err as a failure of the named selector.
func NewSelectorError(selector string, err error) *SelectorError {
	return &SelectorError{Selector: selector, Err: err}
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector %s: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

// CouncilError reports that a council reached no decision.
type CouncilError struct {
	Council string
	Err     error
}

func (e *CouncilError) Error() string {
	return fmt.Sprintf("council %s: %v", e.Council, e.Err)
}

func (e *CouncilError) Unwrap() error { return e.Err }

func noDecision(council string) error {
	return &CouncilError{Council: council, Err: ErrNoValidVotes}
}

// PromptLength counts whitespace separated words.
func PromptLength(prompt string) int {
	return len(strings.Fields(prompt))
}

func newDecision(council, prompt string, configured, failed int) *Decision {
	return &Decision{
		Votes:           []Vote{},
		WeightedResults: map[string]float64{},
		Metadata: map[string]string{
			MetaPromptLength:        strconv.Itoa(PromptLength(prompt)),
			MetaCouncil:             council,
			MetaSelectorsConfigured: strconv.Itoa(configured),
			MetaSelectorsFailed:     strconv.Itoa(failed),
		},
	}
}

// tally accumulates scores per model and remembers first-seen order so that
// ties resolve to the model that appeared first.
type tally struct {
	order  []string
	scores map[string]float64
}

func newTally() *tally {
	return &tally{scores: map[string]float64{}}
}

func (t *tally) add(model string, score float64) {
	if _, ok := t.scores[model]; !ok {
		t.order = append(t.order, model)
	}
	t.scores[model] += score
}

func (t *tally) set(model string, score float64) {
	if _, ok := t.scores[model]; !ok {
		t.order = append(t.order, model)
	}
	t.scores[model] = score
}

func (t *tally) argmax() (string, float64) {
	var (
		best  string
		score float64
	)
	for i, m := range t.order {
		if i == 0 || t.scores[m] > score {
			best, score = m, t.scores[m]
		}
	}
	return best, score
}

func (t *tally) results() map[string]float64 {
	out := make(map[string]float64, len(t.scores))
	for k, v := range t.scores {
		out[k] = v
	}
	return out
}
