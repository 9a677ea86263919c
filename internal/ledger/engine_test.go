package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"nidhi/internal/notification"
	"nidhi/internal/tier"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemoryStore
	tiers    *tier.InMemoryStore
	ministry *tier.Tier
	state    *tier.Tier
	district *tier.Tier
	agency   *tier.Tier
	sink     *recordingSink
	engine   *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.tiers = tier.NewInMemoryStore()
	s.sink = &recordingSink{}

	var err error
	s.ministry, s.state, s.district, s.agency, err = tier.SeedHierarchy(s.tiers, "State X", "District Y", "Agency Z")
	s.Require().NoError(err)

	s.engine = NewEngine(s.store, s.tiers, WithSink(s.sink))
}

func (s *EngineSuite) allocate(amount int64) *Allocation {
	a, err := s.engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentAdarshGram, amount, nil)
	s.Require().NoError(err)
	return a
}

func (s *EngineSuite) TestCreateAllocation() {
	s.Run("rejects non-positive amount", func() {
		_, err := s.engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentAdarshGram, 0, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("rejects unknown component", func() {
		_, err := s.engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.Component("swachh_bharat"), 100, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects tier skipping", func() {
		_, err := s.engine.CreateAllocation(s.ctx, s.ministry.ID, s.district.ID, domain.ComponentAdarshGram, 100, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedTier))
		details := dErrors.DetailsOf(err)
		s.Equal("ministry", details["granter_level"])
		s.Equal("district", details["recipient_level"])
	})

	s.Run("rejects upward grants", func() {
		_, err := s.engine.CreateAllocation(s.ctx, s.state.ID, s.ministry.ID, domain.ComponentAdarshGram, 100, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedTier))
	})

	s.Run("rejects unknown tiers", func() {
		_, err := s.engine.CreateAllocation(s.ctx, domain.NewTierID(), s.state.ID, domain.ComponentAdarshGram, 100, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("records a grant one level down", func() {
		a, err := s.engine.CreateAllocation(s.ctx, s.state.ID, s.district.ID, domain.ComponentHostel, 5_000_000, nil)
		s.NoError(err)
		s.Equal(int64(5_000_000), a.AmountRupees)

		balance, err := s.engine.Balance(s.ctx, a.ID)
		s.NoError(err)
		s.Equal(int64(5_000_000), balance)
	})
}

func (s *EngineSuite) TestRelease() {
	s.Run("debits the balance and reports the remainder", func() {
		a := s.allocate(100_000_000)

		rel, balance, err := s.engine.Release(s.ctx, a.ID, 40_000_000, "op-1", "first installment")
		s.Require().NoError(err)
		s.Equal(KindRelease, rel.Kind)
		s.Equal(int64(60_000_000), balance)
	})

	s.Run("overdraw fails with the deficit", func() {
		a := s.allocate(100_000_000)
		_, _, err := s.engine.Release(s.ctx, a.ID, 40_000_000, "op-1", "")
		s.Require().NoError(err)

		_, _, err = s.engine.Release(s.ctx, a.ID, 70_000_000, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		details := dErrors.DetailsOf(err)
		s.Equal(int64(60_000_000), details["available_balance"])
		s.Equal(int64(10_000_000), details["deficit"])

		// The failed attempt must not have touched the ledger.
		balance, err := s.engine.Balance(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(int64(60_000_000), balance)
	})

	s.Run("rejects non-positive amounts", func() {
		a := s.allocate(100)
		_, _, err := s.engine.Release(s.ctx, a.ID, -5, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("unknown allocation", func() {
		_, _, err := s.engine.Release(s.ctx, domain.NewAllocationID(), 10, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("exact drawdown empties the balance", func() {
		a := s.allocate(1_000)
		_, balance, err := s.engine.Release(s.ctx, a.ID, 1_000, "op-1", "")
		s.Require().NoError(err)
		s.Zero(balance)

		_, _, err = s.engine.Release(s.ctx, a.ID, 1, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("notifies recipient and granter tiers", func() {
		s.sink.reset()
		a := s.allocate(100_000)
		_, _, err := s.engine.Release(s.ctx, a.ID, 50_000, "op-1", "")
		s.Require().NoError(err)

		events := s.sink.events()
		s.Require().Len(events, 2)
		s.Equal(notification.KindFundRelease, events[0].Kind)
		s.Equal("State X", events[0].AudienceScope)
		s.Equal("Ministry of Social Justice", events[1].AudienceScope)
		s.Equal(int64(50_000), events[0].Payload["new_balance"])
	})
}

// Two racing drawdowns of 60M against 100M: exactly one wins and the final
// balance is 40M. Repeated to give interleavings a chance to vary.
func (s *EngineSuite) TestReleaseConcurrent() {
	for range 25 {
		a := s.allocate(100_000_000)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, errs[i] = s.engine.Release(s.ctx, a.ID, 60_000_000, "op-race", "")
			}()
		}
		wg.Wait()

		var succeeded, insufficient int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case dErrors.HasCode(err, dErrors.CodeInsufficientBalance):
				insufficient++
			default:
				s.FailNowf("unexpected error", "%v", err)
			}
		}
		s.Equal(1, succeeded)
		s.Equal(1, insufficient)

		balance, err := s.engine.Balance(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(int64(40_000_000), balance)
	}
}

// Many goroutines releasing concurrently must never drive the balance
// negative, and the survivors must sum to at most the allocation.
func (s *EngineSuite) TestReleaseNeverOverdraws() {
	const (
		workers = 16
		amount  = 10_000
	)
	a := s.allocate(workers * amount / 2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.engine.Release(s.ctx, a.ID, amount, "op-n", "")
		}()
	}
	wg.Wait()

	balance, err := s.engine.Balance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(balance, int64(0))

	rels, err := s.engine.Releases(s.ctx, a.ID)
	s.Require().NoError(err)
	var total int64
	for _, rel := range rels {
		total += rel.AmountRupees
	}
	s.LessOrEqual(total, a.AmountRupees)
	s.Equal(a.AmountRupees-total, balance)
}

func (s *EngineSuite) TestAdjust() {
	s.Run("credits the balance back", func() {
		a := s.allocate(100_000)
		_, _, err := s.engine.Release(s.ctx, a.ID, 80_000, "op-1", "")
		s.Require().NoError(err)

		_, balance, err := s.engine.Adjust(s.ctx, a.ID, -30_000, "op-1", "returned by agency")
		s.Require().NoError(err)
		s.Equal(int64(50_000), balance)
	})

	s.Run("rejects positive amounts", func() {
		a := s.allocate(100_000)
		_, _, err := s.engine.Adjust(s.ctx, a.ID, 10, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("cannot give back more than was released", func() {
		a := s.allocate(100_000)
		_, _, err := s.engine.Release(s.ctx, a.ID, 20_000, "op-1", "")
		s.Require().NoError(err)

		_, _, err = s.engine.Adjust(s.ctx, a.ID, -30_000, "op-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))

		balance, err := s.engine.Balance(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(int64(80_000), balance)
	})
}

func (s *EngineSuite) TestUtilizationGate() {
	gate := &stubGate{}
	engine := NewEngine(s.store, s.tiers, WithUtilizationGate(gate))
	a, err := engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentAdarshGram, 100_000, nil)
	s.Require().NoError(err)

	gate.blocked = true
	_, _, err = engine.Release(s.ctx, a.ID, 10_000, "op-1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUtilizationUnverified))

	gate.blocked = false
	_, balance, err := engine.Release(s.ctx, a.ID, 10_000, "op-1", "")
	s.NoError(err)
	s.Equal(int64(90_000), balance)
}

func (s *EngineSuite) TestProposalLink() {
	checker := &stubChecker{component: domain.ComponentHostel}
	engine := NewEngine(s.store, s.tiers, WithProposalChecker(checker))
	proposalID := domain.NewProposalID()

	s.Run("component mismatch is rejected", func() {
		_, err := engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentAdarshGram, 100, &proposalID)
		s.True(dErrors.HasCode(err, dErrors.CodeProposalNotApproved))
	})

	s.Run("unapproved proposal is rejected", func() {
		checker.err = dErrors.New(dErrors.CodeProposalNotApproved, "proposal is SUBMITTED")
		_, err := engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentHostel, 100, &proposalID)
		s.True(dErrors.HasCode(err, dErrors.CodeProposalNotApproved))
		checker.err = nil
	})

	s.Run("matching approved proposal is accepted", func() {
		a, err := engine.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentHostel, 100, &proposalID)
		s.NoError(err)
		s.Require().NotNil(a.ProposalID)
		s.Equal(proposalID, *a.ProposalID)
	})

	s.Run("link requires a checker", func() {
		bare := NewEngine(s.store, s.tiers)
		_, err := bare.CreateAllocation(s.ctx, s.ministry.ID, s.state.ID, domain.ComponentHostel, 100, &proposalID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// Balance is derived, so asking twice without writes must return the same
// number.
func (s *EngineSuite) TestBalanceIdempotent() {
	a := s.allocate(77_000)
	_, _, err := s.engine.Release(s.ctx, a.ID, 7_000, "op-1", "")
	s.Require().NoError(err)

	first, err := s.engine.Balance(s.ctx, a.ID)
	s.Require().NoError(err)
	second, err := s.engine.Balance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(int64(70_000), first)
}

type recordingSink struct {
	mu  sync.Mutex
	evs []notification.Event
}

func (r *recordingSink) Emit(_ context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *recordingSink) events() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Event(nil), r.evs...)
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = nil
}

type stubGate struct{ blocked bool }

func (g *stubGate) HasUnverified(context.Context, domain.TierID, domain.Component) (bool, error) {
	return g.blocked, nil
}

type stubChecker struct {
	component domain.Component
	err       error
}

func (c *stubChecker) ApprovedComponent(context.Context, domain.ProposalID) (domain.Component, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.component, nil
}
