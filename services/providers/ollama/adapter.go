package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/upb/llm-council-router/services/providers"
)

// ModelPrefix marks model identifiers served by a local Ollama daemon.
const ModelPrefix = "ollama/"

const defaultBaseURL = "http://localhost:11434"

// Adapter executes "ollama/<name>" models against a local Ollama daemon.
// Local models are free, so every model reports zero pricing.
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     []string
}

// NewAdapter creates an Ollama adapter. models seeds the registry with known
// identifiers; any other "ollama/" model is still accepted.
func NewAdapter(config providers.ProviderConfig, models []string) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	seen := map[string]bool{}
	var known []string
	for _, m := range models {
		if strings.HasPrefix(m, ModelPrefix) && !seen[m] {
			seen[m] = true
			known = append(known, m)
		}
	}
	sort.Strings(known)

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		models:     known,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "ollama"
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatCompletion calls /api/chat without streaming.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	if err := a.ValidateModel(req.Model); err != nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_MODEL", err.Error(), 400, false, err)
	}

	body := chatRequest{Model: strings.TrimPrefix(req.Model, ModelPrefix)}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.Options = &chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	res, err := providers.PostJSON(ctx, a.httpClient, a.config, a.Name(), a.config.BaseURL+"/api/chat", nil, payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(res.Body, "error").String()
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", res.StatusCode)
		}
		return nil, providers.NewProviderError(a.Name(), "API_ERROR", msg, res.StatusCode, res.StatusCode >= 500, nil)
	}
	if !gjson.ValidBytes(res.Body) {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "invalid JSON response", res.StatusCode, false, nil)
	}

	parsed := gjson.ParseBytes(res.Body)
	in := int(parsed.Get("prompt_eval_count").Int())
	out := int(parsed.Get("eval_count").Int())
	created := time.Now()
	if ts := parsed.Get("created_at"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			created = t
		}
	}

	return &providers.ChatResponse{
		Model:    req.Model,
		Provider: a.Name(),
		Choices: []providers.Choice{{
			Message: providers.Message{
				Role:    parsed.Get("message.role").String(),
				Content: parsed.Get("message.content").String(),
			},
			FinishReason: parsed.Get("done_reason").String(),
		}},
		Usage:   providers.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		Latency: time.Since(start),
		Created: created,
	}, nil
}

// IsAvailable checks that the daemon answers on /api/tags
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ValidateModel accepts any "ollama/" model with a non-empty name
func (a *Adapter) ValidateModel(model string) error {
	if !strings.HasPrefix(model, ModelPrefix) || len(model) == len(ModelPrefix) {
		return fmt.Errorf("model %s is not an Ollama model", model)
	}
	return nil
}

// GetModelInfo returns zero-priced model information
func (a *Adapter) GetModelInfo(model string) (*providers.ModelInfo, error) {
	if err := a.ValidateModel(model); err != nil {
		return nil, err
	}
	return &providers.ModelInfo{
		ID:       model,
		Name:     strings.TrimPrefix(model, ModelPrefix),
		Provider: a.Name(),
	}, nil
}

// ListModels returns the seeded model identifiers
func (a *Adapter) ListModels() []string {
	out := make([]string, len(a.models))
	copy(out, a.models)
	return out
}
