package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionRouteDecision  AuditAction = "route_decision"
	AuditActionRouteCompleted AuditAction = "route_completed"
	AuditActionRouteFailed    AuditAction = "route_failed"
)

// AuditLog is one routed request as persisted by the audit sink.
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	RequestID string          `json:"request_id" db:"request_id"`
	Action    AuditAction     `json:"action" db:"action"`
	Council   string          `json:"council" db:"council"`
	Prompt    string          `json:"prompt" db:"prompt"`
	Details   json.RawMessage `json:"details" db:"details"` // votes and weighted results
	Subject   *string         `json:"subject,omitempty" db:"subject"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`

	Model            *string  `json:"model,omitempty" db:"model"`
	Provider         *string  `json:"provider,omitempty" db:"provider"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty" db:"prompt_tokens"`
	CompletionTokens *int     `json:"completion_tokens,omitempty" db:"completion_tokens"`
	Cost             *float64 `json:"cost,omitempty" db:"cost"`
	LatencyMs        *int     `json:"latency_ms,omitempty" db:"latency_ms"`
	ErrorMessage     *string  `json:"error_message,omitempty" db:"error_message"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(requestID string, action AuditAction, council, prompt string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		RequestID: requestID,
		Action:    action,
		Council:   council,
		Prompt:    prompt,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithSubject records the authenticated caller, if any.
func (a *AuditLog) WithSubject(subject string) *AuditLog {
	if subject != "" {
		a.Subject = &subject
	}
	return a
}

// WithModel sets the model the council picked and the provider that served it.
func (a *AuditLog) WithModel(model, provider string) *AuditLog {
	a.Model = &model
	if provider != "" {
		a.Provider = &provider
	}
	return a
}

// WithUsage sets token usage, cost and latency
func (a *AuditLog) WithUsage(promptTokens, completionTokens, latencyMs int, cost float64) *AuditLog {
	a.PromptTokens = &promptTokens
	a.CompletionTokens = &completionTokens
	a.LatencyMs = &latencyMs
	a.Cost = &cost
	return a
}

// WithError sets error information
func (a *AuditLog) WithError(errorMessage string) *AuditLog {
	a.ErrorMessage = &errorMessage
	return a
}
