package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/services"
	"github.com/upb/llm-council-router/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "council not found",
			err:            services.NewDomainError(services.ErrorTypeNotFound, "council not found", nil).WithDetail("council", "oracle"),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "validation error",
			err:            services.ErrEmptyPrompt,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "unauthorized error",
			err:            services.ErrInvalidToken,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:           "no decision",
			err:            services.NewDomainError(services.ErrorTypeNoDecision, "no decision reached", council.ErrNoValidVotes),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "no_decision",
		},
		{
			name:           "external error",
			err:            services.WrapExternal("LLM provider error", errors.New("503 from upstream")),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "bad_gateway",
		},
		{
			name:           "request deadline exceeded",
			err:            services.WrapContext(context.DeadlineExceeded),
			expectedStatus: http.StatusGatewayTimeout,
			expectedError:  "timeout",
		},
		{
			name:           "client canceled",
			err:            services.WrapContext(context.Canceled),
			expectedStatus: utils.StatusClientClosedRequest,
			expectedError:  "canceled",
		},
		{
			name:           "internal error",
			err:            services.WrapInternal("boom", errors.New("nil map")),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
		{
			name:           "plain error",
			err:            errors.New("unexpected"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}

	t.Run("message carries the cause and details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := services.NewDomainError(services.ErrorTypeNoDecision, "no decision reached", council.ErrNoValidVotes).
			WithDetail("council", "majority")
		HandleServiceError(w, err, logger)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "no decision reached: "+council.ErrNoValidVotes.Error(), response.Message)
		assert.Equal(t, "majority", response.Details["council"])
	})

	t.Run("internal errors hide the cause", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, services.WrapInternal("boom", errors.New("secret detail")), logger)
		assert.NotContains(t, w.Body.String(), "secret detail")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleServiceError(w, nil, logger)
		assert.Equal(t, 0, w.Body.Len())
	})
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("field errors become details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := &utils.ValidationError{Message: "Validation failed", Fields: map[string]string{"prompt": "prompt is required"}}
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "prompt is required", response.Details["prompt"])
	})

	t.Run("generic error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("invalid request body"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid request body")
	})
}
