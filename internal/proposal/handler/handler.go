// Package handler exposes the proposal approval lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nidhi/internal/proposal"
	"nidhi/internal/transport/http/shared"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
)

// Service defines the proposal operations the handler needs.
type Service interface {
	Create(ctx context.Context, submitterTierID domain.TierID, component domain.Component, estimatedCostRupees int64) (*proposal.Proposal, error)
	Get(ctx context.Context, id domain.ProposalID) (*proposal.Proposal, error)
	ListByStatus(ctx context.Context, status proposal.Status) ([]*proposal.Proposal, error)
	Transition(ctx context.Context, id domain.ProposalID, target proposal.Status, actorRole domain.Role, reason string) (*proposal.Proposal, error)
}

// Handler handles proposal endpoints.
type Handler struct {
	logger    *slog.Logger
	proposals Service
}

// New creates a proposal Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, proposals: svc}
}

// Register registers the proposal routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proposals", h.handleCreate)
	r.Get("/proposals", h.handleList)
	r.Get("/proposals/{id}", h.handleGet)
	r.Post("/proposals/{id}/transition", h.handleTransition)
}

type createProposalRequest struct {
	Component           string `json:"component"`
	EstimatedCostRupees int64  `json:"estimated_cost_rupees"`
}

type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	Reason       string `json:"reason,omitempty"`
}

type proposalResponse struct {
	ID                  string    `json:"id"`
	SubmitterTierID     string    `json:"submitter_tier_id"`
	Component           string    `json:"component"`
	EstimatedCostRupees int64     `json:"estimated_cost_rupees"`
	Status              string    `json:"status"`
	DecisionReason      string    `json:"decision_reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toProposalResponse(p *proposal.Proposal) proposalResponse {
	return proposalResponse{
		ID:                  p.ID.String(),
		SubmitterTierID:     p.SubmitterTierID.String(),
		Component:           string(p.Component),
		EstimatedCostRupees: p.EstimatedCostRupees,
		Status:              string(p.Status),
		DecisionReason:      p.DecisionReason,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// handleCreate registers a draft proposal for the authenticated operator's tier.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req createProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create proposal request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	p, err := h.proposals.Create(ctx, actor.TierID, domain.Component(req.Component), req.EstimatedCostRupees)
	if err != nil {
		h.logger.WarnContext(ctx, "create proposal failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toProposalResponse(p))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid proposal id"))
		return
	}
	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProposalResponse(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := proposal.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid or missing status query parameter"))
		return
	}
	out, err := h.proposals.ListByStatus(ctx, status)
	if err != nil {
		h.logger.ErrorContext(ctx, "list proposals failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	resp := make([]proposalResponse, 0, len(out))
	for _, p := range out {
		resp = append(resp, toProposalResponse(p))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"proposals": resp})
}

// handleTransition moves a proposal along one edge of the approval graph on
// behalf of the authenticated operator's role.
func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	id, err := domain.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid proposal id"))
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	target, err := proposal.ParseStatus(req.TargetStatus)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid target_status"))
		return
	}

	p, err := h.proposals.Transition(ctx, id, target, actor.Role, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "proposal transition rejected",
			"request_id", requestcontext.RequestID(ctx),
			"proposal_id", id.String(),
			"target_status", string(target),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProposalResponse(p))
}
