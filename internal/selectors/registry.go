package selectors

import (
	"fmt"

	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
)

// Build instantiates the named selectors in order.
func Build(names []string, cfg *config.Config, table *config.RoutingTable) ([]council.Selector, error) {
	out := make([]council.Selector, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("selector %q configured twice", name)
		}
		seen[name] = true

		switch name {
		case HeuristicsName:
			out = append(out, NewHeuristics(table))
		case LengthName:
			out = append(out, NewPromptLength(table))
		case ClassifierName:
			out = append(out, NewZeroShotClassifier(cfg.Classifier.URL, cfg.Classifier.APIKey, cfg.Classifier.Timeout, table))
		case SLMName:
			out = append(out, NewSLM(cfg.SLM.BaseURL, cfg.SLM.Model, cfg.SLM.Timeout, table))
		default:
			return nil, fmt.Errorf("unknown selector %q", name)
		}
	}
	return out, nil
}
