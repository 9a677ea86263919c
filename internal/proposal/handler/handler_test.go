package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"nidhi/internal/proposal"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	service *stubService
	router  chi.Router
	actor   requestcontext.ActorInfo
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
	s.actor = requestcontext.ActorInfo{
		OperatorID: "op-3",
		Role:       domain.RoleState,
		TierID:     domain.NewTierID(),
	}
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(requestcontext.WithActor(req.Context(), s.actor))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) proposal(status proposal.Status) *proposal.Proposal {
	return &proposal.Proposal{
		ID:                  domain.NewProposalID(),
		SubmitterTierID:     s.actor.TierID,
		Component:           domain.ComponentHostel,
		EstimatedCostRupees: 5_000_000,
		Status:              status,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}

func (s *HandlerSuite) TestCreate() {
	s.service.proposal = s.proposal(proposal.StatusDraft)

	rec := s.do(http.MethodPost, "/proposals", map[string]any{
		"component":             "hostel",
		"estimated_cost_rupees": 5_000_000,
	})
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(s.actor.TierID, s.service.gotSubmitter)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("DRAFT", resp["status"])
}

func (s *HandlerSuite) TestGet() {
	p := s.proposal(proposal.StatusSubmitted)
	s.service.proposal = p

	rec := s.do(http.MethodGet, "/proposals/"+p.ID.String(), nil)
	s.Equal(http.StatusOK, rec.Code)

	s.service.err = dErrors.New(dErrors.CodeNotFound, "proposal not found")
	rec = s.do(http.MethodGet, "/proposals/"+domain.NewProposalID().String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.service.err = nil

	rec = s.do(http.MethodGet, "/proposals/nope", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestList() {
	s.service.list = []*proposal.Proposal{s.proposal(proposal.StatusSubmitted)}

	rec := s.do(http.MethodGet, "/proposals?status=SUBMITTED", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(proposal.StatusSubmitted, s.service.gotStatus)

	rec = s.do(http.MethodGet, "/proposals?status=WAITING", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/proposals", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestTransition() {
	p := s.proposal(proposal.StatusApprovedByState)
	s.service.proposal = p

	s.Run("drives the edge with the actor's role", func() {
		rec := s.do(http.MethodPost, "/proposals/"+p.ID.String()+"/transition", map[string]any{
			"target_status": "APPROVED_BY_STATE",
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(domain.RoleState, s.service.gotRole)
		s.Equal(proposal.StatusApprovedByState, s.service.gotTarget)
	})

	s.Run("invalid target status", func() {
		rec := s.do(http.MethodPost, "/proposals/"+p.ID.String()+"/transition", map[string]any{
			"target_status": "DONE",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("illegal transition maps to 422", func() {
		s.service.err = dErrors.New(dErrors.CodeIllegalTransition, "cannot transition")
		defer func() { s.service.err = nil }()

		rec := s.do(http.MethodPost, "/proposals/"+p.ID.String()+"/transition", map[string]any{
			"target_status": "REJECTED_BY_STATE",
			"reason":        "late",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("missing reason maps to 400", func() {
		s.service.err = dErrors.New(dErrors.CodeReasonRequired, "rejection requires a reason")
		defer func() { s.service.err = nil }()

		rec := s.do(http.MethodPost, "/proposals/"+p.ID.String()+"/transition", map[string]any{
			"target_status": "REJECTED_BY_STATE",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

type stubService struct {
	proposal *proposal.Proposal
	list     []*proposal.Proposal
	err      error

	gotSubmitter domain.TierID
	gotStatus    proposal.Status
	gotTarget    proposal.Status
	gotRole      domain.Role
}

func (s *stubService) Create(_ context.Context, submitterTierID domain.TierID, _ domain.Component, _ int64) (*proposal.Proposal, error) {
	s.gotSubmitter = submitterTierID
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func (s *stubService) Get(context.Context, domain.ProposalID) (*proposal.Proposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func (s *stubService) ListByStatus(_ context.Context, status proposal.Status) ([]*proposal.Proposal, error) {
	s.gotStatus = status
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubService) Transition(_ context.Context, _ domain.ProposalID, target proposal.Status, actorRole domain.Role, _ string) (*proposal.Proposal, error) {
	s.gotTarget, s.gotRole = target, actorRole
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}
