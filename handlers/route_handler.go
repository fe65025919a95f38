package handlers

import (
	"context"
	"net/http"

	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/middleware"
	"github.com/upb/llm-council-router/services/router"
	"github.com/upb/llm-council-router/utils"
	"go.uber.org/zap"
)

// RouteRequest is the body of POST /api/v1/route and /api/v1/decide.
type RouteRequest struct {
	Prompt    string `json:"prompt" validate:"required,notblank,max=100000"`
	Council   string `json:"council,omitempty" validate:"omitempty,max=32"`
	MaxTokens int    `json:"max_tokens,omitempty" validate:"gte=0,lte=32768"`
}

// RouterService defines the routing operations exposed over HTTP
type RouterService interface {
	Invoke(ctx context.Context, req router.InvokeRequest) (*router.Response, error)
	Decide(ctx context.Context, req router.InvokeRequest) (*council.Decision, error)
}

// RouteHandler handles routing requests
type RouteHandler struct {
	service RouterService
	logger  *zap.Logger
}

// NewRouteHandler creates a new RouteHandler
func NewRouteHandler(service RouterService, logger *zap.Logger) *RouteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRoute handles POST /api/v1/route: decide, execute and return the model answer.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parse(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Invoke(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write route response",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
	}
}

// HandleDecide handles POST /api/v1/decide: the council decision only.
func (h *RouteHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parse(w, r)
	if !ok {
		return
	}

	decision, err := h.service.Decide(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, decision); err != nil {
		h.logger.Error("failed to write decide response",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
	}
}

func (h *RouteHandler) parse(w http.ResponseWriter, r *http.Request) (router.InvokeRequest, bool) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body RouteRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return router.InvokeRequest{}, false
	}

	if err := utils.ValidateStruct(&body); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return router.InvokeRequest{}, false
	}

	return router.InvokeRequest{
		Prompt:    body.Prompt,
		Council:   body.Council,
		RequestID: requestID,
		Subject:   middleware.GetSubjectFromContext(ctx),
		MaxTokens: body.MaxTokens,
	}, true
}
