package services

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeNoDecision   ErrorType = "no_decision"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeCanceled     ErrorType = "canceled"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. Use them as errors.Is targets; build new errors
// with NewDomainError so Details are never shared.
var (
	ErrCouncilNotFound = NewDomainError(ErrorTypeNotFound, "council not found", nil)

	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyPrompt  = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)

	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)

	ErrNoDecision = NewDomainError(ErrorTypeNoDecision, "no decision reached", nil)

	ErrProviderError    = NewDomainError(ErrorTypeExternal, "LLM provider error", nil)
	ErrModelUnsupported = NewDomainError(ErrorTypeExternal, "no provider for model", nil)

	ErrCanceled = NewDomainError(ErrorTypeCanceled, "request canceled", nil)
	ErrTimeout  = NewDomainError(ErrorTypeTimeout, "request deadline exceeded", nil)

	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }

// IsNoDecisionError checks if a council failed to reach a decision
func IsNoDecisionError(err error) bool { return isType(err, ErrorTypeNoDecision) }

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool { return isType(err, ErrorTypeExternal) }

// IsCanceledError checks if the caller abandoned the request
func IsCanceledError(err error) bool { return isType(err, ErrorTypeCanceled) }

// IsTimeoutError checks if the request ran out of time
func IsTimeoutError(err error) bool { return isType(err, ErrorTypeTimeout) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external provider error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// WrapContext classifies a context error as canceled or timeout. It returns
// nil when err is neither.
func WrapContext(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewDomainError(ErrorTypeTimeout, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewDomainError(ErrorTypeCanceled, "request canceled", err)
	}
	return nil
}
