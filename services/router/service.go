// Package router drives a routed request end to end: a council picks the
// model, the provider registry executes the call, and the result is priced
// and audited.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/internal/observability"
	"github.com/upb/llm-council-router/services"
	"github.com/upb/llm-council-router/services/audit"
	"github.com/upb/llm-council-router/services/pricing"
	"github.com/upb/llm-council-router/services/providers"
	"go.uber.org/zap"
)

const routerTag = "council-router"

// ProviderResolver finds the provider serving a model.
type ProviderResolver interface {
	GetProviderForModel(model string) (providers.Provider, error)
}

// CostEstimator prices a completed call.
type CostEstimator interface {
	Estimate(model string, promptTokens, completionTokens int) (float64, error)
}

// AuditSink receives one record per routed request. It must not block.
type AuditSink interface {
	LogRoute(rec audit.RouteRecord) error
}

// InvokeRequest is a prompt to route. Council selects a configured council by
// name; empty means the default one.
type InvokeRequest struct {
	Prompt    string
	Council   string
	RequestID string
	Subject   string
	MaxTokens int
}

// Metadata carries the council trace alongside a response.
type Metadata struct {
	Votes           []council.Vote     `json:"votes"`
	WeightedResults map[string]float64 `json:"weighted_results"`
	Decision        map[string]string  `json:"decision,omitempty"`
	Tags            []string           `json:"tags"`
}

// Response is the result of a routed call.
type Response struct {
	RequestID        string   `json:"request_id"`
	Council          string   `json:"council"`
	Model            string   `json:"model"`
	Provider         string   `json:"provider"`
	Prompt           string   `json:"prompt"`
	Text             string   `json:"response"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	Cost             float64  `json:"cost"`
	Currency         string   `json:"currency"`
	LatencyMs        int64    `json:"latency_ms"`
	Metadata         Metadata `json:"metadata"`
}

// Service routes prompts through councils.
type Service struct {
	councils       map[string]council.Council
	defaultCouncil string
	providers      ProviderResolver
	pricing        CostEstimator
	audit          AuditSink
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a router service. defaultCouncil must name one of councils.
func NewService(
	councils map[string]council.Council,
	defaultCouncil string,
	resolver ProviderResolver,
	estimator CostEstimator,
	sink AuditSink,
	logger *zap.Logger,
) (*Service, error) {
	if len(councils) == 0 {
		return nil, errors.New("router: at least one council is required")
	}
	if _, ok := councils[defaultCouncil]; !ok {
		return nil, fmt.Errorf("router: default council %q is not configured", defaultCouncil)
	}
	if resolver == nil {
		return nil, errors.New("router: provider resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	copied := make(map[string]council.Council, len(councils))
	for name, c := range councils {
		copied[name] = c
	}

	return &Service{
		councils:       copied,
		defaultCouncil: defaultCouncil,
		providers:      resolver,
		pricing:        estimator,
		audit:          sink,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Councils returns the configured council names, sorted.
func (s *Service) Councils() []string {
	names := make([]string, 0, len(s.councils))
	for name := range s.councils {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultCouncil returns the council used when a request names none.
func (s *Service) DefaultCouncil() string {
	return s.defaultCouncil
}

func (s *Service) resolveCouncil(name string) (string, council.Council, error) {
	if name == "" {
		name = s.defaultCouncil
	}
	if strategy, err := council.ParseStrategy(name); err == nil {
		name = string(strategy)
	}
	c, ok := s.councils[name]
	if !ok {
		return "", nil, services.NewDomainError(services.ErrorTypeNotFound, "council not found", nil).
			WithDetail("council", name).
			WithDetail("available", s.Councils())
	}
	return name, c, nil
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return services.NewDomainError(services.ErrorTypeValidation, "prompt cannot be empty", nil)
	}
	return nil
}

// Decide runs the council only. Nothing is executed.
func (s *Service) Decide(ctx context.Context, req InvokeRequest) (*council.Decision, error) {
	if err := validatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	name, c, err := s.resolveCouncil(req.Council)
	if err != nil {
		return nil, err
	}
	requestID := ensureRequestID(req.RequestID)
	logger := observability.WithRequestID(s.logger, requestID).With(zap.String("council", name))

	decision, err := s.decide(ctx, logger, name, c, req.Prompt)
	s.record(audit.RouteRecord{
		RequestID: requestID,
		Council:   name,
		Prompt:    req.Prompt,
		Subject:   req.Subject,
		Decision:  decision,
		Err:       err,
		DryRun:    true,
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// Invoke asks the council for a model, executes the prompt on it and returns
// the priced result.
func (s *Service) Invoke(ctx context.Context, req InvokeRequest) (*Response, error) {
	if err := validatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	name, c, err := s.resolveCouncil(req.Council)
	if err != nil {
		return nil, err
	}
	requestID := ensureRequestID(req.RequestID)
	logger := observability.WithRequestID(s.logger, requestID).With(zap.String("council", name))

	rec := audit.RouteRecord{
		RequestID: requestID,
		Council:   name,
		Prompt:    req.Prompt,
		Subject:   req.Subject,
	}

	// Step 1: council decision
	logger.Debug("step 1: asking council")
	decision, err := s.decide(ctx, logger, name, c, req.Prompt)
	if err != nil {
		rec.Err = err
		s.record(rec)
		return nil, err
	}
	rec.Decision = decision

	// Step 2: execution
	logger.Debug("step 2: executing", zap.String("model", decision.FinalModel))
	provider, err := s.providers.GetProviderForModel(decision.FinalModel)
	if err != nil {
		execErr := newExecutionError(decision.FinalModel, "", req.Prompt, err)
		rec.Err = execErr
		s.record(rec)
		logger.Error("no provider for model", zap.String("model", decision.FinalModel), zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeExternal, "no provider for model", execErr).
			WithDetail("model", decision.FinalModel)
	}
	rec.Provider = provider.Name()

	chatReq := providers.NewPromptRequest(decision.FinalModel, req.Prompt)
	chatReq.MaxTokens = req.MaxTokens

	start := s.now()
	resp, err := provider.ChatCompletion(ctx, chatReq)
	latency := s.now().Sub(start)
	if err != nil {
		execErr := newExecutionError(decision.FinalModel, provider.Name(), req.Prompt, err)
		rec.Err = execErr
		s.record(rec)
		if ctxErr := services.WrapContext(ctx.Err()); ctxErr != nil {
			logger.Warn("request ended during execution", zap.String("model", decision.FinalModel), zap.Error(ctx.Err()))
			return nil, ctxErr
		}
		logger.Error("model execution failed",
			zap.String("model", decision.FinalModel),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeExternal, "LLM provider error", execErr).
			WithDetail("model", decision.FinalModel).
			WithDetail("provider", provider.Name())
	}

	// Step 3: cost
	cost := s.estimateCost(logger, decision.FinalModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	response := &Response{
		RequestID:        requestID,
		Council:          name,
		Model:            decision.FinalModel,
		Provider:         provider.Name(),
		Prompt:           req.Prompt,
		Text:             resp.Text(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Cost:             cost,
		Currency:         pricing.Currency,
		LatencyMs:        latency.Milliseconds(),
		Metadata: Metadata{
			Votes:           decision.Votes,
			WeightedResults: decision.WeightedResults,
			Decision:        decision.Metadata,
			Tags:            []string{routerTag, provider.Name(), name},
		},
	}

	// Step 4: audit
	rec.PromptTokens = response.PromptTokens
	rec.CompletionTokens = response.CompletionTokens
	rec.Cost = cost
	rec.LatencyMs = int(response.LatencyMs)
	s.record(rec)

	logger.Info("request routed",
		zap.String("model", response.Model),
		zap.String("provider", response.Provider),
		zap.Int64("latency_ms", response.LatencyMs),
		zap.Float64("cost", cost))

	return response, nil
}

// decide runs the council. When the request context ended, the failure is
// reported as canceled or timed out rather than as a council failure.
func (s *Service) decide(ctx context.Context, logger *zap.Logger, name string, c council.Council, prompt string) (*council.Decision, error) {
	decision, err := c.Decide(ctx, prompt)
	if err == nil {
		return decision, nil
	}
	if ctxErr := services.WrapContext(ctx.Err()); ctxErr != nil {
		logger.Warn("request ended before the council decided", zap.Error(ctx.Err()))
		return nil, ctxErr
	}
	logger.Warn("council decision failed", zap.Error(err))
	return nil, services.NewDomainError(services.ErrorTypeNoDecision, "no decision reached", err).
		WithDetail("council", name)
}

func (s *Service) estimateCost(logger *zap.Logger, model string, promptTokens, completionTokens int) float64 {
	if s.pricing == nil {
		return 0
	}
	cost, err := s.pricing.Estimate(model, promptTokens, completionTokens)
	if err != nil {
		logger.Warn("cost estimation failed, reporting zero", zap.String("model", model), zap.Error(err))
		return 0
	}
	return cost
}

func (s *Service) record(rec audit.RouteRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogRoute(rec); err != nil {
		s.logger.Warn("audit entry not recorded",
			zap.String("request_id", rec.RequestID),
			zap.Error(err))
	}
}

func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
