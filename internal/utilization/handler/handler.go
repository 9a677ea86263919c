// Package handler exposes utilization certificate endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nidhi/internal/transport/http/shared"
	"nidhi/internal/utilization"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
)

// Service defines the certificate operations the handler needs.
type Service interface {
	Submit(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, period string) (*utilization.Certificate, error)
	Verify(ctx context.Context, id domain.CertificateID, decision utilization.Decision, reviewerRole domain.Role) (*utilization.Certificate, error)
}

// Handler handles utilization certificate endpoints.
type Handler struct {
	logger *slog.Logger
	ucs    Service
}

// New creates a utilization Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ucs: svc}
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ucs", h.handleSubmit)
	r.Post("/ucs/{id}/verify", h.handleVerify)
}

type submitRequest struct {
	AllocationID string `json:"allocation_id"`
	AmountRupees int64  `json:"amount_rupees"`
	Period       string `json:"period"`
}

type verifyRequest struct {
	Decision string `json:"decision"`
}

type certificateResponse struct {
	ID              string     `json:"id"`
	RecipientTierID string     `json:"recipient_tier_id"`
	AllocationID    string     `json:"allocation_id"`
	Component       string     `json:"component"`
	AmountRupees    int64      `json:"amount_rupees"`
	Period          string     `json:"period"`
	Status          string     `json:"status"`
	DecidedBy       string     `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toCertificateResponse(c *utilization.Certificate) certificateResponse {
	return certificateResponse{
		ID:              c.ID.String(),
		RecipientTierID: c.RecipientTierID.String(),
		AllocationID:    c.AllocationID.String(),
		Component:       string(c.Component),
		AmountRupees:    c.AmountRupees,
		Period:          c.Period,
		Status:          string(c.Status),
		DecidedBy:       c.DecidedBy,
		DecidedAt:       c.DecidedAt,
		CreatedAt:       c.CreatedAt,
	}
}

// handleSubmit records a utilization declaration against an allocation.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid certificate submission",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	allocationID, err := domain.ParseAllocationID(req.AllocationID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid allocation_id"))
		return
	}

	c, err := h.ucs.Submit(ctx, allocationID, req.AmountRupees, req.Period)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toCertificateResponse(c))
}

// handleVerify records the reviewer's decision on a pending certificate.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid certificate id"))
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	decision, err := utilization.ParseDecision(req.Decision)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "decision must be VERIFIED or REJECTED"))
		return
	}

	c, err := h.ucs.Verify(ctx, id, decision, actor.Role)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate verification rejected",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_id", id.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCertificateResponse(c))
}
