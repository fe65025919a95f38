package router

import (
	"fmt"
	"unicode/utf8"
)

const excerptRunes = 80

// ExecutionError reports a failed call to the model the council picked.
type ExecutionError struct {
	Model    string
	Provider string
	Prompt   string // excerpt, at most excerptRunes runes
	Err      error
}

func newExecutionError(model, provider, prompt string, err error) *ExecutionError {
	return &ExecutionError{Model: model, Provider: provider, Prompt: excerpt(prompt), Err: err}
}

func (e *ExecutionError) Error() string {
	provider := e.Provider
	if provider == "" {
		provider = "unresolved"
	}
	return fmt.Sprintf("execute %s via %s for prompt %q: %v", e.Model, provider, e.Prompt, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func excerpt(prompt string) string {
	if utf8.RuneCountInString(prompt) <= excerptRunes {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:excerptRunes]) + "..."
}
