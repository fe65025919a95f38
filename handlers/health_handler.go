package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/llm-council-router/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DBChecker checks database connectivity. Nil means no database is configured.
type DBChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProviderCounter reports how many execution providers are registered.
type ProviderCounter interface {
	GetProviderCount() int
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        DBChecker
	providers ProviderCounter
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DBChecker, providers ProviderCounter, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		db:        db,
		providers: providers,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz. It always succeeds while the process serves.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz: the audit database (when configured)
// must answer and at least one provider must be registered.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.providers == nil || h.providers.GetProviderCount() == 0 {
		checks["providers"] = "none_configured"
		allHealthy = false
	} else {
		checks["providers"] = "configured"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
