// Package handler exposes the allocation ledger over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nidhi/internal/ledger"
	"nidhi/internal/transport/http/shared"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/money"
	"nidhi/pkg/requestcontext"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	CreateAllocation(ctx context.Context, granterID, recipientID domain.TierID, component domain.Component, amountRupees int64, proposalID *domain.ProposalID) (*ledger.Allocation, error)
	Balance(ctx context.Context, id domain.AllocationID) (int64, error)
	Release(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, releasedBy, remarks string) (*ledger.Release, int64, error)
	Adjust(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, releasedBy, remarks string) (*ledger.Release, int64, error)
	Releases(ctx context.Context, id domain.AllocationID) ([]*ledger.Release, error)
}

// Handler handles allocation and release endpoints.
type Handler struct {
	logger *slog.Logger
	ledger Service
}

// New creates a ledger Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ledger: svc}
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/allocations", h.handleCreateAllocation)
	r.Get("/allocations/{id}/balance", h.handleBalance)
	r.Get("/allocations/{id}/releases", h.handleListReleases)
	r.Post("/releases", h.handleRelease)
	r.Post("/releases/adjustments", h.handleAdjustment)
}

// amountFields lets callers express an amount either directly in rupees or in
// the presentation units sanction orders are written in.
type amountFields struct {
	AmountRupees *int64   `json:"amount_rupees,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Unit         string   `json:"unit,omitempty"`
}

func (a amountFields) rupees() (int64, error) {
	switch {
	case a.AmountRupees != nil:
		return *a.AmountRupees, nil
	case a.Amount != nil:
		unit, err := money.ParseUnit(a.Unit)
		if err != nil {
			return 0, err
		}
		return money.ToRupees(*a.Amount, unit)
	default:
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
}

type createAllocationRequest struct {
	RecipientTierID string  `json:"recipient_tier_id"`
	Component       string  `json:"component"`
	ProposalID      *string `json:"proposal_id,omitempty"`
	amountFields
}

type allocationResponse struct {
	ID              string    `json:"id"`
	GranterTierID   string    `json:"granter_tier_id"`
	RecipientTierID string    `json:"recipient_tier_id"`
	Component       string    `json:"component"`
	ProposalID      *string   `json:"proposal_id,omitempty"`
	AmountRupees    int64     `json:"amount_rupees"`
	AmountCrore     float64   `json:"amount_crore"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAllocationResponse(a *ledger.Allocation) allocationResponse {
	resp := allocationResponse{
		ID:              a.ID.String(),
		GranterTierID:   a.GranterTierID.String(),
		RecipientTierID: a.RecipientTierID.String(),
		Component:       string(a.Component),
		AmountRupees:    a.AmountRupees,
		AmountCrore:     money.FromRupees(a.AmountRupees, money.UnitCrore),
		CreatedAt:       a.CreatedAt,
	}
	if a.ProposalID != nil {
		s := a.ProposalID.String()
		resp.ProposalID = &s
	}
	return resp
}

// handleCreateAllocation records a grant from the authenticated operator's
// tier to a recipient tier.
func (h *Handler) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req createAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create allocation request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	recipientID, err := domain.ParseTierID(req.RecipientTierID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid recipient_tier_id"))
		return
	}
	rupees, err := req.rupees()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var proposalID *domain.ProposalID
	if req.ProposalID != nil {
		pid, err := domain.ParseProposalID(*req.ProposalID)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid proposal_id"))
			return
		}
		proposalID = &pid
	}

	a, err := h.ledger.CreateAllocation(ctx, actor.TierID, recipientID, domain.Component(req.Component), rupees, proposalID)
	if err != nil {
		h.logFailure(ctx, "create allocation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toAllocationResponse(a))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseAllocationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid allocation id"))
		return
	}
	balance, err := h.ledger.Balance(ctx, id)
	if err != nil {
		h.logFailure(ctx, "balance lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"allocation_id":           id.String(),
		"available_rupees":        balance,
		"available_balance_crore": money.FromRupees(balance, money.UnitCrore),
	})
}

func (h *Handler) handleListReleases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseAllocationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid allocation id"))
		return
	}
	rels, err := h.ledger.Releases(ctx, id)
	if err != nil {
		h.logFailure(ctx, "list releases failed", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]releaseResponse, 0, len(rels))
	for _, rel := range rels {
		out = append(out, toReleaseResponse(rel))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"releases": out})
}

type releaseRequest struct {
	AllocationID string `json:"allocation_id"`
	Remarks      string `json:"remarks"`
	amountFields
}

type releaseResponse struct {
	ID           string    `json:"id"`
	AllocationID string    `json:"allocation_id"`
	Kind         string    `json:"kind"`
	AmountRupees int64     `json:"amount_rupees"`
	ReleaseDate  time.Time `json:"release_date"`
	ReleasedBy   string    `json:"released_by"`
	Remarks      string    `json:"remarks,omitempty"`
}

func toReleaseResponse(rel *ledger.Release) releaseResponse {
	return releaseResponse{
		ID:           rel.ID.String(),
		AllocationID: rel.AllocationID.String(),
		Kind:         string(rel.Kind),
		AmountRupees: rel.AmountRupees,
		ReleaseDate:  rel.ReleaseDate,
		ReleasedBy:   rel.ReleasedBy,
		Remarks:      rel.Remarks,
	}
}

// handleRelease authorizes a drawdown. Insufficient balance surfaces as 422
// with the available balance and the deficit in the details.
func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.writeReleaseEntry(w, r, h.ledger.Release)
}

// handleAdjustment records a negative correction.
func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	h.writeReleaseEntry(w, r, h.ledger.Adjust)
}

func (h *Handler) writeReleaseEntry(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id domain.AllocationID, amountRupees int64, releasedBy, remarks string) (*ledger.Release, int64, error),
) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid release request",
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
	rupees, err := req.rupees()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rel, newBalance, err := op(ctx, allocationID, rupees, actor.OperatorID, req.Remarks)
	if err != nil {
		h.logFailure(ctx, "release failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"release":            toReleaseResponse(rel),
		"new_balance_rupees": newBalance,
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
