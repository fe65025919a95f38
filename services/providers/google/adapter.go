package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/upb/llm-council-router/services/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// ModelPrefix is the family prefix of every Gemini model id.
const ModelPrefix = "gemini-"

// Adapter implements the Provider interface for the Gemini generateContent API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// NewAdapter creates a new Gemini adapter
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
	return "google"
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// ChatCompletion performs a generateContent request. Assistant turns are sent
// with the "model" role and system messages become the system instruction.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	if err := a.ValidateModel(req.Model); err != nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_MODEL", err.Error(), 400, false, err)
	}

	var body generateRequest
	var system []part
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, part{Text: m.Content})
		case "assistant":
			body.Contents = append(body.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &content{Parts: system}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.GenerationConfig = &generationConfig{MaxOutputTokens: req.MaxTokens}
		if req.Temperature > 0 {
			body.GenerationConfig.Temperature = &req.Temperature
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.config.BaseURL, url.PathEscape(req.Model))
	headers := map[string]string{"x-goog-api-key": a.config.APIKey}
	res, err := providers.PostJSON(ctx, a.httpClient, a.config, a.Name(), endpoint, headers, payload)
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
	candidate := parsed.Get("candidates.0")
	if !candidate.Exists() {
		reason := parsed.Get("promptFeedback.blockReason").String()
		if reason == "" {
			reason = "no candidates"
		}
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", reason, res.StatusCode, false, nil)
	}

	var text strings.Builder
	candidate.Get("content.parts").ForEach(func(_, p gjson.Result) bool {
		text.WriteString(p.Get("text").String())
		return true
	})

	model := parsed.Get("modelVersion").String()
	if model == "" {
		model = req.Model
	}
	in := int(parsed.Get("usageMetadata.promptTokenCount").Int())
	out := int(parsed.Get("usageMetadata.candidatesTokenCount").Int())
	return &providers.ChatResponse{
		ID:       parsed.Get("responseId").String(),
		Model:    model,
		Provider: a.Name(),
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: "assistant", Content: text.String()},
			FinishReason: strings.ToLower(candidate.Get("finishReason").String()),
		}},
		Usage:   providers.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		Latency: time.Since(start),
		Created: time.Now(),
	}, nil
}

// IsAvailable reports whether an API key is configured.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.config.APIKey != ""
}

// ValidateModel checks if a model is supported
func (a *Adapter) ValidateModel(model string) error {
	if _, ok := a.models[model]; !ok {
		return fmt.Errorf("model %s is not supported by Google provider", model)
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
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("unexpected status %d", statusCode), statusCode, retryable, nil)
	}
	return providers.NewProviderError(a.Name(), gjson.GetBytes(body, "error.status").String(), msg, statusCode, retryable, errors.New(msg))
}

func knownModels() map[string]*providers.ModelInfo {
	model := func(id, name string, prompt, completion float64) *providers.ModelInfo {
		return &providers.ModelInfo{
			ID:                        id,
			Name:                      name,
			Provider:                  "google",
			MaxTokens:                 65536,
			ContextWindow:             1048576,
			PricingPerPromptToken:     prompt,
			PricingPerCompletionToken: completion,
		}
	}
	return map[string]*providers.ModelInfo{
		"gemini-2.5-flash-lite": model("gemini-2.5-flash-lite", "Gemini 2.5 Flash-Lite", 0.0000001, 0.0000004),
		"gemini-2.5-flash":      model("gemini-2.5-flash", "Gemini 2.5 Flash", 0.0000003, 0.0000025),
		"gemini-2.5-pro":        model("gemini-2.5-pro", "Gemini 2.5 Pro", 0.00000125, 0.00001),
	}
}
