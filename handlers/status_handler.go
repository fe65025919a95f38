package handlers

import (
	"net/http"

	"github.com/upb/llm-council-router/services/audit"
	"github.com/upb/llm-council-router/utils"
)

// CouncilLister exposes the configured councils.
type CouncilLister interface {
	Councils() []string
	DefaultCouncil() string
}

// ProviderCatalog exposes the registered providers and models.
type ProviderCatalog interface {
	ListProviders() []string
	ListModels() []string
}

// AuditStatser reports audit pipeline statistics.
type AuditStatser interface {
	GetStats() audit.Stats
}

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	Version        string       `json:"version"`
	Environment    string       `json:"environment"`
	Councils       []string     `json:"councils"`
	DefaultCouncil string       `json:"default_council"`
	Providers      []string     `json:"providers"`
	Models         []string     `json:"models"`
	AuthEnabled    bool         `json:"auth_enabled"`
	Audit          *audit.Stats `json:"audit,omitempty"`
}

// StatusHandler reports what the gateway is configured to do.
type StatusHandler struct {
	version     string
	environment string
	councils    CouncilLister
	providers   ProviderCatalog
	audit       AuditStatser
	authEnabled bool
}

// NewStatusHandler creates a new StatusHandler. auditStats may be nil.
func NewStatusHandler(version, environment string, councils CouncilLister, providers ProviderCatalog, auditStats AuditStatser, authEnabled bool) *StatusHandler {
	return &StatusHandler{
		version:     version,
		environment: environment,
		councils:    councils,
		providers:   providers,
		audit:       auditStats,
		authEnabled: authEnabled,
	}
}

// HandleStatus handles GET /api/v1/status
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:        h.version,
		Environment:    h.environment,
		Councils:       h.councils.Councils(),
		DefaultCouncil: h.councils.DefaultCouncil(),
		Providers:      h.providers.ListProviders(),
		Models:         h.providers.ListModels(),
		AuthEnabled:    h.authEnabled,
	}
	if h.audit != nil {
		stats := h.audit.GetStats()
		resp.Audit = &stats
	}

	_ = utils.WriteOK(w, resp)
}
