package selectors

import (
	"context"
	"fmt"

	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
)

// LengthName is the selector name used in votes and weight tables.
const LengthName = "length"

// PromptLength routes purely on word count using the routing table's
// ordered thresholds. Prompts longer than every threshold go to the complex tier.
type PromptLength struct {
	table *config.RoutingTable
}

// NewPromptLength creates a prompt length selector.
func NewPromptLength(table *config.RoutingTable) *PromptLength {
	return &PromptLength{table: table}
}

// Name implements council.Selector.
func (p *PromptLength) Name() string { return LengthName }

// SelectModel implements council.Selector.
func (p *PromptLength) SelectModel(ctx context.Context, prompt string) (council.Vote, error) {
	if err := ctx.Err(); err != nil {
		return council.Vote{}, council.NewSelectorError(p.Name(), err)
	}

	length := council.PromptLength(prompt)
	for _, th := range p.table.LengthThresholds {
		if length <= th.MaxWords {
			rationale := fmt.Sprintf("Prompt length %d <= %d", length, th.MaxWords)
			return council.NewVote(p.Name(), p.table.ModelForTier(th.Tier), rationale).WithConfidence(0.5), nil
		}
	}
	rationale := fmt.Sprintf("Prompt length %d exceeds thresholds", length)
	return council.NewVote(p.Name(), p.table.ModelForTier(config.TierComplex), rationale).WithConfidence(0.5), nil
}
