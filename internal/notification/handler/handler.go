// Package handler exposes notification feeds and the pending-approvals
// dashboard.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nidhi/internal/notification"
	"nidhi/internal/transport/http/shared"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
)

// Service defines the notification operations the handler needs.
type Service interface {
	List(ctx context.Context, role domain.Role, scope string, onlyUnacknowledged bool) ([]*notification.Event, error)
	Acknowledge(ctx context.Context, id domain.EventID) (*notification.Event, error)
	PendingApprovals(ctx context.Context, role domain.Role) (int, error)
}

// Handler handles notification endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Service
}

// New creates a notification Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, notifications: svc}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Post("/notifications/{id}/ack", h.handleAcknowledge)
	r.Get("/dashboard/pending-approvals", h.handlePendingApprovals)
}

// handleList returns the feed for an audience. Role and scope default to the
// authenticated actor when the query omits them.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	role := actor.Role
	if s := r.URL.Query().Get("role"); s != "" {
		parsed, err := domain.ParseRole(s)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid role"))
			return
		}
		role = parsed
	}
	scope := r.URL.Query().Get("scope")
	onlyUnacked := r.URL.Query().Get("unacknowledged") == "true"

	events, err := h.notifications.List(ctx, role, scope, onlyUnacked)
	if err != nil {
		h.logger.ErrorContext(ctx, "list notifications failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": events})
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid notification id"))
		return
	}
	ev, err := h.notifications.Acknowledge(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ev)
}

// handlePendingApprovals reports how many proposals await the actor's review.
func (h *Handler) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	role := actor.Role
	if s := r.URL.Query().Get("role"); s != "" {
		parsed, err := domain.ParseRole(s)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid role"))
			return
		}
		role = parsed
	}
	n, err := h.notifications.PendingApprovals(ctx, role)
	if err != nil {
		h.logger.ErrorContext(ctx, "pending approvals count failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"role":    string(role),
		"pending": n,
	})
}
