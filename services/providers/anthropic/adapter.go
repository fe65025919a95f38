package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/upb/llm-council-router/services/providers"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

// Adapter implements the Provider interface for the Anthropic Messages API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// NewAdapter creates a new Anthropic adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		models:     knownModels(),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "anthropic"
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletion performs a messages request. System messages are lifted
// into the top-level system field.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	if err := a.ValidateModel(req.Model); err != nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_MODEL", err.Error(), 400, false, err)
	}

	body := messagesRequest{Model: req.Model, MaxTokens: req.MaxTokens}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, message{Role: m.Role, Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	headers := map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": apiVersion,
	}
	res, err := providers.PostJSON(ctx, a.httpClient, a.config, a.Name(), a.config.BaseURL+"/v1/messages", headers, payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(res.StatusCode, res.Body)
	}
	if !gjson.ValidBytes(res.Body) {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "invalid JSON response", res.StatusCode, false, nil)
	}

	parsed := gjson.ParseBytes(res.Body)
	var text strings.Builder
	parsed.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			text.WriteString(block.Get("text").String())
		}
		return true
	})

	in := int(parsed.Get("usage.input_tokens").Int())
	out := int(parsed.Get("usage.output_tokens").Int())
	return &providers.ChatResponse{
		ID:       parsed.Get("id").String(),
		Model:    parsed.Get("model").String(),
		Provider: a.Name(),
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: "assistant", Content: text.String()},
			FinishReason: parsed.Get("stop_reason").String(),
		}},
		Usage:   providers.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		Latency: time.Since(start),
		Created: time.Now(),
	}, nil
}

// IsAvailable reports whether an API key is configured. The Messages API
// has no free health endpoint.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.config.APIKey != ""
}

// ValidateModel checks if a model is supported
func (a *Adapter) ValidateModel(model string) error {
	if _, ok := a.models[model]; !ok {
		return fmt.Errorf("model %s is not supported by Anthropic provider", model)
	}
	return nil
}

// GetModelInfo returns information about a specific model
func (a *Adapter) GetModelInfo(model string) (*providers.ModelInfo, error) {
	info, ok := a.models[model]
	if !ok {
		return nil, fmt.Errorf("model %s not found", model)
	}
	return info, nil
}

// ListModels returns all available models
func (a *Adapter) ListModels() []string {
	models := make([]string, 0, len(a.models))
	for m := range a.models {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	// 529 is Anthropic's overloaded status
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("unexpected status %d", statusCode), statusCode, retryable, nil)
	}
	return providers.NewProviderError(a.Name(), gjson.GetBytes(body, "error.type").String(), msg, statusCode, retryable, errors.New(msg))
}

func knownModels() map[string]*providers.ModelInfo {
	model := func(id, name string, window int, prompt, completion float64) *providers.ModelInfo {
		return &providers.ModelInfo{
			ID:                        id,
			Name:                      name,
			Provider:                  "anthropic",
			MaxTokens:                 8192,
			ContextWindow:             window,
			PricingPerPromptToken:     prompt,
			PricingPerCompletionToken: completion,
		}
	}
	return map[string]*providers.ModelInfo{
		"claude-3-haiku-20240307":   model("claude-3-haiku-20240307", "Claude 3 Haiku", 200000, 0.00000025, 0.00000125),
		"claude-3-5-haiku-20241022": model("claude-3-5-haiku-20241022", "Claude 3.5 Haiku", 200000, 0.0000008, 0.000004),
		"claude-sonnet-4-20250514":  model("claude-sonnet-4-20250514", "Claude Sonnet 4", 200000, 0.000003, 0.000015),
		"claude-opus-4-20250514":    model("claude-opus-4-20250514", "Claude Opus 4", 200000, 0.000015, 0.000075),
	}
}
