package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kyc-service/internal/platform/middleware"
	"kyc-service/internal/transport/http/shared"
	"kyc-service/internal/webhook"
	id "kyc-service/pkg/domain"
	dErrors "kyc-service/pkg/domain-errors"
	"kyc-service/pkg/requestcontext"
)

// Service defines the interface for webhook endpoint administration.
type Service interface {
	Register(ctx context.Context, orgID id.OrgID, in webhook.RegisterInput) (*webhook.Endpoint, error)
	List(ctx context.Context, orgID id.OrgID) ([]*webhook.Endpoint, error)
	Deactivate(ctx context.Context, orgID id.OrgID, endpointID id.EndpointID) error
}

// Handler serves the webhook administration endpoints.
type Handler struct {
	logger   *slog.Logger
	webhooks Service
}

func New(webhooks Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, webhooks: webhooks}
}

// Register registers the webhook admin routes. The caller mounts this under
// the authenticated API router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/kyc/webhooks", h.handleRegister)
	r.Get("/api/v1/kyc/webhooks", h.handleList)
	r.Delete("/api/v1/kyc/webhooks/{endpointID}", h.handleDeactivate)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.authorize(w, ctx, "kyc.webhook:write", "ADMIN")
	if !ok {
		return
	}

	var in webhook.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	e, err := h.webhooks.Register(ctx, orgID, in)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.authorize(w, ctx, "kyc.webhook:read", "")
	if !ok {
		return
	}

	endpoints, err := h.webhooks.List(ctx, orgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []*webhook.Endpoint{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.authorize(w, ctx, "kyc.webhook:write", "ADMIN")
	if !ok {
		return
	}

	endpointID, err := id.ParseEndpointID(chi.URLParam(r, "endpointID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid endpoint id"))
		return
	}

	if err := h.webhooks.Deactivate(ctx, orgID, endpointID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize checks the scope and, when requiredRole is non-empty, the role
// rank. It writes the error response itself and returns ok=false on failure.
func (h *Handler) authorize(w http.ResponseWriter, ctx context.Context, scope, requiredRole string) (id.OrgID, bool) {
	orgID, ok := requestcontext.OrgID(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "organization claim required"))
		return id.OrgID{}, false
	}
	if !requestcontext.HasScope(ctx, scope) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
		return id.OrgID{}, false
	}
	if requiredRole != "" && !middleware.RoleAtLeast(requestcontext.Role(ctx), requiredRole) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
		return id.OrgID{}, false
	}
	return orgID, true
}
