package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is the execution layer for one LLM vendor
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic", "ollama")
	Name() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool

	// ValidateModel checks if a model is supported by this provider
	ValidateModel(model string) error

	// GetModelInfo returns information about a specific model
	GetModelInfo(model string) (*ModelInfo, error)

	// ListModels returns the models this provider knows about
	ListModels() []string
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewPromptRequest builds a single user message request.
func NewPromptRequest(model, prompt string) *ChatRequest {
	return &ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	ID       string        `json:"id"`
	Model    string        `json:"model"`
	Choices  []Choice      `json:"choices"`
	Usage    Usage         `json:"usage"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
	Created  time.Time     `json:"created"`
}

// Text returns the content of the first choice, or "" when there is none.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a completion choice
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelInfo contains metadata about a model
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	MaxTokens     int    `json:"max_tokens"`
	ContextWindow int    `json:"context_window"`

	// Pricing in USD per token
	PricingPerPromptToken     float64 `json:"pricing_per_prompt_token"`
	PricingPerCompletionToken float64 `json:"pricing_per_completion_token"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Headers    map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		Headers:    make(map[string]string),
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
