package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNoDecision, "no votes", baseErr)

	assert.Equal(t, ErrorTypeNoDecision, domainErr.Type)
	assert.Equal(t, "no votes", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     &DomainError{Type: ErrorTypeExternal, Message: "completion failed", Err: errors.New("timeout")},
			wantMsg: "external: completion failed (timeout)",
		},
		{
			name:    "error without wrapped error",
			err:     &DomainError{Type: ErrorTypeValidation, Message: "invalid input"},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewDomainError(ErrorTypeNoDecision, "cascade failed", nil), ErrNoDecision, true},
		{"wrapped same type", fmt.Errorf("route: %w", NewDomainError(ErrorTypeExternal, "x", nil)), ErrProviderError, true},
		{"different error type", NewDomainError(ErrorTypeValidation, "validation", nil), ErrNoDecision, false},
		{"not a domain error", NewDomainError(ErrorTypeNotFound, "not found", nil), errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeExternal, "execution failed", nil)
	err.WithDetail("model", "gpt-4o").WithDetail("provider", "openai")

	assert.Equal(t, "gpt-4o", err.Details["model"])
	assert.Equal(t, map[string]interface{}{"model": "gpt-4o", "provider": "openai"}, GetErrorDetails(err))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrCouncilNotFound, IsNotFoundError, true},
		{"validation", fmt.Errorf("wrapped: %w", ErrEmptyPrompt), IsValidationError, true},
		{"unauthorized", ErrInvalidToken, IsUnauthorizedError, true},
		{"no decision", ErrNoDecision, IsNoDecisionError, true},
		{"external", WrapExternal("call failed", errors.New("503")), IsExternalError, true},
		{"internal", WrapInternal("boom", nil), IsInternalError, true},
		{"canceled", ErrCanceled, IsCanceledError, true},
		{"timeout", ErrTimeout, IsTimeoutError, true},
		{"mismatch", ErrEmptyPrompt, IsExternalError, false},
		{"nil error", nil, IsValidationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}

	assert.Equal(t, ErrorTypeNoDecision, GetErrorType(ErrNoDecision))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestWrapContext(t *testing.T) {
	err := WrapContext(fmt.Errorf("selector: %w", context.Canceled))
	assert.True(t, IsCanceledError(err))
	assert.ErrorIs(t, err, context.Canceled)

	err = WrapContext(context.DeadlineExceeded)
	assert.True(t, IsTimeoutError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, WrapContext(errors.New("upstream failed")))
	assert.NoError(t, WrapContext(nil))
}
