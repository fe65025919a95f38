package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-council-router/services/providers"
)

type staticSource map[string]*providers.ModelInfo

func (s staticSource) GetModelInfo(model string) (*providers.ModelInfo, error) {
	if info, ok := s[model]; ok {
		return info, nil
	}
	return nil, errors.New("model not found")
}

func TestEstimator(t *testing.T) {
	source := staticSource{
		"gpt-4o-mini": {ID: "gpt-4o-mini", PricingPerPromptToken: 0.00000015, PricingPerCompletionToken: 0.0000006},
		"ollama/phi3": {ID: "ollama/phi3"},
	}
	est := NewEstimator(source)

	tests := []struct {
		name       string
		model      string
		prompt     int
		completion int
		want       float64
		wantErr    error
	}{
		{name: "priced model", model: "gpt-4o-mini", prompt: 1000, completion: 500, want: 0.00045},
		{name: "rounds to six places", model: "gpt-4o-mini", prompt: 1, completion: 1, want: 0.000001},
		{name: "free local model", model: "ollama/phi3", prompt: 5000, completion: 5000, want: 0},
		{name: "unknown model", model: "gemini-2.5-pro", prompt: 1, completion: 1, wantErr: ErrUnknownModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := est.Estimate(tt.model, tt.prompt, tt.completion)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("negative tokens", func(t *testing.T) {
		_, err := est.Estimate("gpt-4o-mini", -1, 0)
		assert.Error(t, err)
	})

	t.Run("decimal keeps exact value", func(t *testing.T) {
		d, err := est.EstimateDecimal("gpt-4o-mini", 1000, 500)
		require.NoError(t, err)
		assert.Equal(t, "0.00045", d.String())
	})
}
