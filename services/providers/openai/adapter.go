package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/upb/llm-council-router/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIAdapter implements the Provider interface for OpenAI
type OpenAIAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &OpenAIAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		models:     knownModels(),
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	if err := a.ValidateModel(req.Model); err != nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_MODEL", err.Error(), 400, false, err)
	}

	reqBody, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	headers := map[string]string{"Authorization": "Bearer " + a.config.APIKey}
	res, err := providers.PostJSON(ctx, a.httpClient, a.config, a.Name(), a.config.BaseURL+"/chat/completions", headers, reqBody)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(res.StatusCode, res.Body)
	}

	var openaiResp chatResponse
	if err := json.Unmarshal(res.Body, &openaiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", res.StatusCode, false, err)
	}

	return a.convertResponse(&openaiResp, time.Since(startTime)), nil
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateModel checks if a model is supported
func (a *OpenAIAdapter) ValidateModel(model string) error {
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not supported by OpenAI provider", model)
	}
	return nil
}

// GetModelInfo returns information about a specific model
func (a *OpenAIAdapter) GetModelInfo(model string) (*providers.ModelInfo, error) {
	info, exists := a.models[model]
	if !exists {
		return nil, fmt.Errorf("model %s not found", model)
	}
	return info, nil
}

// ListModels returns all available models
func (a *OpenAIAdapter) ListModels() []string {
	models := make([]string, 0, len(a.models))
	for model := range a.models {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

func knownModels() map[string]*providers.ModelInfo {
	model := func(id, name string, maxTokens, window int, prompt, completion float64) *providers.ModelInfo {
		return &providers.ModelInfo{
			ID:                        id,
			Name:                      name,
			Provider:                  "openai",
			MaxTokens:                 maxTokens,
			ContextWindow:             window,
			PricingPerPromptToken:     prompt,
			PricingPerCompletionToken: completion,
		}
	}
	return map[string]*providers.ModelInfo{
		"gpt-3.5-turbo": model("gpt-3.5-turbo", "GPT-3.5 Turbo", 4096, 16385, 0.0000005, 0.0000015),
		"gpt-4-turbo":   model("gpt-4-turbo", "GPT-4 Turbo", 4096, 128000, 0.00001, 0.00003),
		"gpt-4o":        model("gpt-4o", "GPT-4o", 16384, 128000, 0.0000025, 0.00001),
		"gpt-4o-mini":   model("gpt-4o-mini", "GPT-4o Mini", 16384, 128000, 0.00000015, 0.0000006),
		"gpt-4.1-mini":  model("gpt-4.1-mini", "GPT-4.1 Mini", 32768, 1047576, 0.0000004, 0.0000016),
	}
}

func (a *OpenAIAdapter) buildRequest(req *providers.ChatRequest) *chatRequest {
	out := &chatRequest{
		Model:    req.Model,
		Messages: make([]message, len(req.Messages)),
	}
	for i, msg := range req.Messages {
		out.Messages[i] = message{Role: msg.Role, Content: msg.Content}
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	return out
}

func (a *OpenAIAdapter) convertResponse(openaiResp *chatResponse, latency time.Duration) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       openaiResp.ID,
		Model:    openaiResp.Model,
		Provider: a.Name(),
		Choices:  make([]providers.Choice, len(openaiResp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     openaiResp.Usage.PromptTokens,
			CompletionTokens: openaiResp.Usage.CompletionTokens,
			TotalTokens:      openaiResp.Usage.TotalTokens,
		},
		Latency: latency,
		Created: time.Unix(openaiResp.Created, 0),
	}
	for i, choice := range openaiResp.Choices {
		resp.Choices[i] = providers.Choice{
			Index:        choice.Index,
			Message:      providers.Message{Role: choice.Message.Role, Content: choice.Message.Content},
			FinishReason: choice.FinishReason,
		}
	}
	return resp
}

func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("unexpected status %d", statusCode), statusCode, retryable, err)
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
