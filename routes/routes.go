package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-council-router/app"
	"github.com/upb/llm-council-router/handlers"
	"github.com/upb/llm-council-router/middleware"
	"github.com/upb/llm-council-router/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	requestTimeout := 60 * time.Second
	if deps.Config != nil && deps.Config.Server.RequestTimeout > 0 {
		requestTimeout = deps.Config.Server.RequestTimeout
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// A typed nil *postgres.DB must not reach the checker interface
	var db handlers.DBChecker
	if deps.DB != nil {
		db = deps.DB
	}

	health := handlers.NewHealthHandler(db, deps.Providers, deps.Logger)
	route := handlers.NewRouteHandler(deps.Router, deps.Logger)

	environment := ""
	if deps.Config != nil {
		environment = deps.Config.Environment
	}
	var auditStats handlers.AuditStatser
	if deps.Audit != nil {
		auditStats = deps.Audit
	}
	status := handlers.NewStatusHandler(app.Version, environment, deps.Router, deps.Providers,
		auditStats, deps.AuthMiddleware.Enabled())

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", status.HandleStatus)

		// Routing endpoints (require authentication when enabled)
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/route", route.HandleRoute)
			r.Post("/decide", route.HandleDecide)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
			Error:   "method_not_allowed",
			Message: "method not allowed",
		})
	})

	return r
}
