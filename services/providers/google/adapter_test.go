package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-council-router/services/providers"
)

func TestAdapter_ChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, []part{{Text: "be brief"}}, req.SystemInstruction.Parts)
		assert.Equal(t, []content{
			{Role: "user", Parts: []part{{Text: "hello"}}},
			{Role: "model", Parts: []part{{Text: "hi"}}},
			{Role: "user", Parts: []part{{Text: "again"}}},
		}, req.Contents)
		require.NotNil(t, req.GenerationConfig)
		assert.Equal(t, 64, req.GenerationConfig.MaxOutputTokens)

		_, _ = w.Write([]byte(`{
			"responseId": "resp_1",
			"modelVersion": "gemini-2.5-flash",
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Hello"}, {"text": " again"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 9, "candidatesTokenCount": 2, "totalTokenCount": 11}
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
	req := &providers.ChatRequest{
		Model: "gemini-2.5-flash",
		Messages: []providers.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "again"},
		},
		MaxTokens: 64,
	}

	resp, err := adapter.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "resp_1", resp.ID)
	assert.Equal(t, "google", resp.Provider)
	assert.Equal(t, "Hello again", resp.Text())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, providers.Usage{PromptTokens: 9, CompletionTokens: 2, TotalTokens: 11}, resp.Usage)
}

func TestAdapter_ChatCompletion_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{APIKey: "key", BaseURL: server.URL})
	_, err := adapter.ChatCompletion(context.Background(), providers.NewPromptRequest("gemini-2.5-pro", "hi"))

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", provErr.Code)
	assert.True(t, provErr.Retryable)
}

func TestAdapter_ChatCompletion_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{APIKey: "key", BaseURL: server.URL})
	_, err := adapter.ChatCompletion(context.Background(), providers.NewPromptRequest("gemini-2.5-flash-lite", "hi"))

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "EMPTY_RESPONSE", provErr.Code)
	assert.Equal(t, "SAFETY", provErr.Message)
}

func TestAdapter_Models(t *testing.T) {
	adapter := NewAdapter(providers.ProviderConfig{})

	assert.Equal(t, "google", adapter.Name())
	assert.NoError(t, adapter.ValidateModel("gemini-2.5-pro"))
	assert.Error(t, adapter.ValidateModel("gpt-4o"))
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.5-pro"}, adapter.ListModels())
	assert.False(t, adapter.IsAvailable(context.Background()))

	for _, m := range adapter.ListModels() {
		info, err := adapter.GetModelInfo(m)
		require.NoError(t, err)
		assert.Equal(t, "google", info.Provider)
		assert.Greater(t, info.PricingPerCompletionToken, info.PricingPerPromptToken)
	}
	_, err := adapter.GetModelInfo("gemini-1.0-ultra")
	assert.Error(t, err)
}
