package selectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
)

// HeuristicsName is the selector name used in votes and weight tables.
const HeuristicsName = "heuristics"

var (
	codeKeywords = []string{"code", "python", "function", "class"}
	mathKeywords = []string{"solve", "integral", "equation", "math"}
)

// Heuristics routes on keywords first, then on estimated token count and
// reading grade.
type Heuristics struct {
	table *config.RoutingTable
}

// NewHeuristics creates a heuristics selector.
func NewHeuristics(table *config.RoutingTable) *Heuristics {
	return &Heuristics{table: table}
}

// Name implements council.Selector.
func (h *Heuristics) Name() string { return HeuristicsName }

// SelectModel implements council.Selector.
func (h *Heuristics) SelectModel(ctx context.Context, prompt string) (council.Vote, error) {
	if err := ctx.Err(); err != nil {
		return council.Vote{}, council.NewSelectorError(h.Name(), err)
	}

	lower := strings.ToLower(prompt)
	if containsAny(lower, codeKeywords) {
		return h.vote(config.TierCoding, 0.9, "Keyword match: code-related"), nil
	}
	if containsAny(lower, mathKeywords) {
		return h.vote(config.TierMath, 0.9, "Keyword match: math-related"), nil
	}

	tokens := EstimateTokens(prompt)
	grade := FleschKincaidGrade(prompt)
	switch {
	case tokens < 15 && grade < 6:
		return h.vote(config.TierSimple, 0.6, fmt.Sprintf("Short/simple prompt (%d tokens, grade %.1f)", tokens, grade)), nil
	case tokens < 80:
		return h.vote(config.TierGeneral, 0.5, fmt.Sprintf("Medium complexity (%d tokens)", tokens)), nil
	default:
		return h.vote(config.TierComplex, 0.6, fmt.Sprintf("Long/complex prompt (%d tokens)", tokens)), nil
	}
}

func (h *Heuristics) vote(tier string, confidence float64, rationale string) council.Vote {
	return council.NewVote(h.Name(), h.table.ModelForTier(tier), rationale).WithConfidence(confidence)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
