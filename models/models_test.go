package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog("req-1", AuditActionRouteCompleted, "majority", "hello world")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, AuditActionRouteCompleted, log.Action)
	assert.Equal(t, "majority", log.Council)
	assert.Equal(t, "hello world", log.Prompt)
	assert.False(t, log.Timestamp.IsZero())
	assert.Nil(t, log.Model)
	assert.Nil(t, log.ErrorMessage)
}

func TestAuditLog_BuilderMethods(t *testing.T) {
	log := NewAuditLog("req-2", AuditActionRouteCompleted, "weighted", "prompt").
		WithModel("gpt-4o-mini", "openai").
		WithUsage(10, 20, 150, 0.000123).
		WithSubject("user-42").
		WithDetails(map[string]interface{}{"weighted_results": map[string]float64{"gpt-4o-mini": 2}})

	require.NotNil(t, log.Model)
	assert.Equal(t, "gpt-4o-mini", *log.Model)
	require.NotNil(t, log.Provider)
	assert.Equal(t, "openai", *log.Provider)
	assert.Equal(t, 10, *log.PromptTokens)
	assert.Equal(t, 20, *log.CompletionTokens)
	assert.Equal(t, 150, *log.LatencyMs)
	assert.InDelta(t, 0.000123, *log.Cost, 1e-12)
	assert.Equal(t, "user-42", *log.Subject)

	var details map[string]map[string]float64
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, 2.0, details["weighted_results"]["gpt-4o-mini"])
}

func TestAuditLog_EmptySubjectAndProvider(t *testing.T) {
	log := NewAuditLog("req-3", AuditActionRouteFailed, "cascade", "p").
		WithSubject("").
		WithModel("ollama/phi3:latest", "").
		WithError("no provider")

	assert.Nil(t, log.Subject)
	assert.Nil(t, log.Provider)
	require.NotNil(t, log.ErrorMessage)
	assert.Equal(t, "no provider", *log.ErrorMessage)
}

func TestAuditLog_TableName(t *testing.T) {
	assert.Equal(t, "audit_logs", AuditLog{}.TableName())
}
