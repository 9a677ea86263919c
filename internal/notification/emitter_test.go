package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
)

type EmitterSuite struct {
	suite.Suite
	ctx     context.Context
	store   *InMemoryStore
	markers *InMemoryMarkerStore
	service *Service
}

func TestEmitterSuite(t *testing.T) {
	suite.Run(t, new(EmitterSuite))
}

func (s *EmitterSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.markers = NewInMemoryMarkerStore()
	s.service = NewService(s.store, s.markers)
}

func (s *EmitterSuite) event(source, scope string) Event {
	return Event{
		SourceID:      source,
		Kind:          KindFundRelease,
		AudienceRole:  domain.RoleState,
		AudienceScope: scope,
		Payload:       map[string]any{"amount_rupees": int64(100)},
		CreatedAt:     time.Now(),
	}
}

func (s *EmitterSuite) TestEmit() {
	s.Run("requires source and kind", func() {
		err := s.service.Emit(s.ctx, Event{Kind: KindFundRelease})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		err = s.service.Emit(s.ctx, Event{SourceID: "rel-1"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("stores and queues a fresh event", func() {
		s.Require().NoError(s.service.Emit(s.ctx, s.event("rel-1", "State X")))

		events, err := s.service.List(s.ctx, domain.RoleState, "State X", false)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.False(events[0].ID.IsNil())

		select {
		case queued := <-s.service.Outbox():
			s.Equal("rel-1", queued.SourceID)
		default:
			s.Fail("expected event on the outbox")
		}
	})
}

// Re-deriving the same event for the same audience is a no-op; a new audience
// for the same source still goes out.
func (s *EmitterSuite) TestEmitIdempotent() {
	ev := s.event("rel-2", "State X")
	s.Require().NoError(s.service.Emit(s.ctx, ev))
	s.Require().NoError(s.service.Emit(s.ctx, ev))
	s.Require().NoError(s.service.Emit(s.ctx, ev))

	events, err := s.service.List(s.ctx, domain.RoleState, "State X", false)
	s.Require().NoError(err)
	s.Len(events, 1)

	other := s.event("rel-2", "Ministry of Social Justice")
	s.Require().NoError(s.service.Emit(s.ctx, other))

	events, err = s.service.List(s.ctx, domain.RoleState, "Ministry of Social Justice", false)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *EmitterSuite) TestAcknowledge() {
	s.Require().NoError(s.service.Emit(s.ctx, s.event("rel-3", "State X")))
	events, err := s.service.List(s.ctx, domain.RoleState, "State X", true)
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	acked, err := s.service.Acknowledge(s.ctx, events[0].ID)
	s.Require().NoError(err)
	s.True(acked.Acknowledged)

	unacked, err := s.service.List(s.ctx, domain.RoleState, "State X", true)
	s.Require().NoError(err)
	s.Empty(unacked)

	all, err := s.service.List(s.ctx, domain.RoleState, "State X", false)
	s.Require().NoError(err)
	s.Len(all, 1)

	_, err = s.service.Acknowledge(s.ctx, domain.NewEventID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EmitterSuite) TestPendingApprovals() {
	s.Run("without a counter the dashboard is empty", func() {
		n, err := s.service.PendingApprovals(s.ctx, domain.RoleState)
		s.NoError(err)
		s.Zero(n)
	})

	s.Run("delegates to the counter", func() {
		svc := NewService(s.store, s.markers, WithPendingCounter(staticCounter(4)))
		n, err := svc.PendingApprovals(s.ctx, domain.RoleState)
		s.NoError(err)
		s.Equal(4, n)
	})
}

func (s *EmitterSuite) TestMarkerStore() {
	fresh, err := s.markers.SetIfAbsent(s.ctx, "src", "state/State X")
	s.Require().NoError(err)
	s.True(fresh)

	fresh, err = s.markers.SetIfAbsent(s.ctx, "src", "state/State X")
	s.Require().NoError(err)
	s.False(fresh)

	fresh, err = s.markers.SetIfAbsent(s.ctx, "src", "ministry/Ministry")
	s.Require().NoError(err)
	s.True(fresh)
}

type staticCounter int

func (c staticCounter) PendingCount(context.Context, domain.Role) (int, error) {
	return int(c), nil
}
