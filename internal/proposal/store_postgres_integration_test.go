//go:build integration

package proposal_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nidhi/internal/proposal"
	"nidhi/internal/tier"
	"nidhi/pkg/domain"
	"nidhi/pkg/sentinel"
	"nidhi/pkg/testutil/containers"
)

type PostgresProposalSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	tiers    *tier.PostgresStore
	store    *proposal.PostgresStore
	district *tier.Tier
}

func TestPostgresProposalSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresProposalSuite))
}

func (s *PostgresProposalSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.tiers = tier.NewPostgresStore(s.postgres.DB)
	s.store = proposal.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresProposalSuite) SetupTest() {
	err := s.postgres.TruncateTables(s.ctx, "proposals", "tiers")
	s.Require().NoError(err)
	_, _, s.district, _, err = tier.SeedHierarchy(s.tiers, "State X", "District Y", "Agency Z")
	s.Require().NoError(err)
}

func (s *PostgresProposalSuite) create(status proposal.Status) *proposal.Proposal {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &proposal.Proposal{
		ID:                  domain.NewProposalID(),
		SubmitterTierID:     s.district.ID,
		Component:           domain.ComponentGIA,
		EstimatedCostRupees: 1_000_000,
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *PostgresProposalSuite) TestRoundTrip() {
	p := s.create(proposal.StatusDraft)

	got, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Status, got.Status)
	s.Equal(p.EstimatedCostRupees, got.EstimatedCostRupees)

	list, err := s.store.ListByStatus(s.ctx, proposal.StatusDraft)
	s.Require().NoError(err)
	s.Len(list, 1)

	n, err := s.store.CountByStatus(s.ctx, proposal.StatusDraft)
	s.Require().NoError(err)
	s.Equal(1, n)
}

// The guarded update is the concurrency backbone of the approval flow:
// racing reviewers on the same edge produce exactly one winner.
func (s *PostgresProposalSuite) TestUpdateStatusGuard() {
	p := s.create(proposal.StatusSubmitted)

	const goroutines = 10
	var wg sync.WaitGroup
	var wins atomic.Int32
	var conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.UpdateStatus(s.ctx, p.ID, proposal.StatusSubmitted, proposal.StatusApprovedByState, "")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())

	got, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(proposal.StatusApprovedByState, got.Status)
}

func (s *PostgresProposalSuite) TestUpdateStatusMissing() {
	_, err := s.store.UpdateStatus(s.ctx, domain.NewProposalID(), proposal.StatusSubmitted, proposal.StatusApprovedByState, "")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
