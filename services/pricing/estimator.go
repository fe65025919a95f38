// Package pricing estimates the USD cost of a completed call from the
// per-token prices published by each provider.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/upb/llm-council-router/services/providers"
)

// Currency of every estimate.
const Currency = "USD"

// costPlaces is the precision estimates are rounded to.
const costPlaces = 6

// ErrUnknownModel is returned when no price is known for a model.
var ErrUnknownModel = errors.New("no pricing for model")

// ModelInfoSource resolves model pricing. *providers.Registry satisfies it.
type ModelInfoSource interface {
	GetModelInfo(model string) (*providers.ModelInfo, error)
}

// Estimator computes call costs.
type Estimator struct {
	source ModelInfoSource
}

// NewEstimator creates an estimator backed by source.
func NewEstimator(source ModelInfoSource) *Estimator {
	return &Estimator{source: source}
}

// Estimate returns the cost of a call in USD rounded to six decimal places.
func (e *Estimator) Estimate(model string, promptTokens, completionTokens int) (float64, error) {
	cost, err := e.EstimateDecimal(model, promptTokens, completionTokens)
	if err != nil {
		return 0, err
	}
	f, _ := cost.Float64()
	return f, nil
}

// EstimateDecimal is Estimate without the float conversion.
func (e *Estimator) EstimateDecimal(model string, promptTokens, completionTokens int) (decimal.Decimal, error) {
	if promptTokens < 0 || completionTokens < 0 {
		return decimal.Zero, fmt.Errorf("negative token count for %s", model)
	}
	info, err := e.source.GetModelInfo(model)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %s: %v", ErrUnknownModel, model, err)
	}

	prompt := decimal.NewFromFloat(info.PricingPerPromptToken).Mul(decimal.NewFromInt(int64(promptTokens)))
	completion := decimal.NewFromFloat(info.PricingPerCompletionToken).Mul(decimal.NewFromInt(int64(completionTokens)))
	return prompt.Add(completion).Round(costPlaces), nil
}
