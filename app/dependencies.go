package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/internal/selectors"
	"github.com/upb/llm-council-router/middleware"
	"github.com/upb/llm-council-router/repositories"
	"github.com/upb/llm-council-router/repositories/postgres"
	"github.com/upb/llm-council-router/services/audit"
	"github.com/upb/llm-council-router/services/pricing"
	"github.com/upb/llm-council-router/services/providers"
	"github.com/upb/llm-council-router/services/providers/anthropic"
	"github.com/upb/llm-council-router/services/providers/google"
	"github.com/upb/llm-council-router/services/providers/ollama"
	"github.com/upb/llm-council-router/services/providers/openai"
	"github.com/upb/llm-council-router/services/router"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint. Overridden at build time.
var Version = "dev"

const auditStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when audit entries are only logged
	Logger *zap.Logger

	// Routing
	RoutingTable *config.RoutingTable
	Providers    *providers.Registry
	Councils     map[string]council.Council
	Router       *router.Service

	// Audit
	AuditRepo repositories.AuditRepository
	Audit     *audit.AuditService

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	table, err := config.LoadRoutingTable(cfg.RoutingTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing table: %w", err)
	}
	deps.RoutingTable = table

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initCouncils(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize councils: %w", err)
	}

	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initAuth(cfg)

	strategy, err := council.ParseStrategy(cfg.Council.Strategy)
	if err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}
	svc, err := router.NewService(
		deps.Councils,
		string(strategy),
		deps.Providers,
		pricing.NewEstimator(deps.Providers),
		deps.Audit,
		logger,
	)
	if err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}
	deps.Router = svc

	logger.Info("all dependencies initialized successfully",
		zap.String("default_council", svc.DefaultCouncil()),
		zap.Strings("providers", deps.Providers.ListProviders()))
	return deps, nil
}

// initProviders registers the execution providers. Hosted providers need an
// API key; the local Ollama provider is always available.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if pc := cfg.Providers.OpenAI; pc.APIKey != "" {
		if err := d.register(registry, openai.NewOpenAIAdapter(providerConfig(pc)), "gpt-"); err != nil {
			return err
		}
	}

	if pc := cfg.Providers.Anthropic; pc.APIKey != "" {
		if err := d.register(registry, anthropic.NewAdapter(providerConfig(pc)), "claude-"); err != nil {
			return err
		}
	}

	if pc := cfg.Providers.Google; pc.APIKey != "" {
		if err := d.register(registry, google.NewAdapter(providerConfig(pc)), google.ModelPrefix); err != nil {
			return err
		}
	}

	adapter := ollama.NewAdapter(providerConfig(cfg.Providers.Ollama), tableModels(d.RoutingTable))
	if err := d.register(registry, adapter, ollama.ModelPrefix); err != nil {
		return err
	}

	d.Providers = registry

	// Classifier votes come from the table's provider column
	if slices.Contains(cfg.Council.Selectors, "classifier") &&
		!slices.Contains(registry.ListProviders(), d.RoutingTable.Provider) {
		d.Logger.Warn("routing table provider is not registered, classifier votes cannot be executed",
			zap.String("provider", d.RoutingTable.Provider))
	}
	return nil
}

func (d *Dependencies) register(registry *providers.Registry, p providers.Provider, prefix string) error {
	if err := registry.RegisterProvider(p); err != nil {
		return fmt.Errorf("register %s: %w", p.Name(), err)
	}
	if err := registry.RegisterModelPrefix(prefix, p.Name()); err != nil {
		return fmt.Errorf("register %s prefix: %w", p.Name(), err)
	}
	d.Logger.Info("provider registered",
		zap.String("provider", p.Name()),
		zap.String("prefix", prefix))
	return nil
}

func providerConfig(pc config.ProviderConfig) providers.ProviderConfig {
	out := providers.DefaultProviderConfig()
	out.APIKey = pc.APIKey
	out.BaseURL = pc.BaseURL
	if pc.Timeout > 0 {
		out.Timeout = pc.Timeout
	}
	out.MaxRetries = pc.MaxRetries
	return out
}

// tableModels lists every model the routing table can vote for.
func tableModels(table *config.RoutingTable) []string {
	models := []string{table.DefaultModel}
	for _, m := range table.Tiers {
		models = append(models, m)
	}
	for _, c := range table.SLMChoices {
		models = append(models, c.Model)
	}
	return models
}

// initCouncils builds one council per strategy over the configured selectors,
// so a request may name any of them.
func (d *Dependencies) initCouncils(cfg *config.Config) error {
	sels, err := selectors.Build(cfg.Council.Selectors, cfg, d.RoutingTable)
	if err != nil {
		return err
	}

	defaultModel := cfg.Council.DefaultModel
	if defaultModel == "" {
		defaultModel = d.RoutingTable.DefaultModel
	}
	councilCfg := council.Config{
		DefaultModel:    defaultModel,
		Weights:         cfg.Council.Weights,
		Threshold:       cfg.Council.Threshold,
		Seed:            cfg.Council.Seed,
		SelectorTimeout: cfg.Council.SelectorTimeout,
	}

	d.Councils = make(map[string]council.Council, len(council.Strategies()))
	for _, strategy := range council.Strategies() {
		c, err := council.New(strategy, sels, councilCfg, d.Logger.Named("council"))
		if err != nil {
			return fmt.Errorf("%s council: %w", strategy, err)
		}
		d.Councils[string(strategy)] = c
	}

	d.Logger.Info("councils initialized",
		zap.Strings("selectors", cfg.Council.Selectors),
		zap.String("default_model", defaultModel))
	return nil
}

// initAudit connects the audit store and starts the async pipeline. Without a
// database, entries go to the structured log.
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	if cfg.Database != nil {
		db, err := postgres.NewDB(*cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		d.DB = db
		d.AuditRepo = postgres.NewAuditRepository(db, d.Logger)
	} else {
		d.Logger.Warn("no database configured, audit entries are logged only")
		d.AuditRepo = repositories.NewLogAuditRepository(d.Logger)
	}

	d.Audit = audit.NewAuditService(d.AuditRepo, d.Logger, audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		WorkerCount:   cfg.Audit.WorkerCount,
		RedactPrompts: cfg.Audit.RedactPrompts,
	})
	return d.Audit.Start()
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("auth JWT secret not set, routing endpoints are unauthenticated")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token auth enabled")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending audit entries before the store goes away
	if d.Audit != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
