package notification

import (
	"context"
	"errors"
	"log/slog"

	"nidhi/internal/platform/metrics"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/sentinel"
)

// PendingCounter reports how many proposals await a role's review. Satisfied
// by the proposal service; an interface here keeps the dependency one-way.
type PendingCounter interface {
	PendingCount(ctx context.Context, role domain.Role) (int, error)
}

// Service is the notification emitter. Emit is idempotent per
// (source, audience): the durable marker store decides whether an event is
// new, the event store records it, and the worker publishes it externally.
type Service struct {
	store    Store
	markers  MarkerStore
	outbox   chan Event
	counter  PendingCounter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// outboxDepth bounds the in-flight publish queue. Derivation never blocks a
// business operation on the broker.
const outboxDepth = 1024

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithPendingCounter enables the pending-approvals dashboard query.
func WithPendingCounter(c PendingCounter) ServiceOption {
	return func(s *Service) { s.counter = c }
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the notification emitter.
func NewService(store Store, markers MarkerStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		markers: markers,
		outbox:  make(chan Event, outboxDepth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit derives at most one stored event per (source, audience) pair. A
// duplicate derivation (same release re-observed, same approval re-read)
// is a silent no-op.
func (s *Service) Emit(ctx context.Context, ev Event) error {
	if ev.SourceID == "" || ev.Kind == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "notification event requires source and kind")
	}
	fresh, err := s.markers.SetIfAbsent(ctx, ev.SourceID, ev.AudienceKey())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write notification marker")
	}
	if !fresh {
		s.metrics.IncNotificationsDeduped()
		return nil
	}
	if ev.ID.IsNil() {
		ev.ID = domain.NewEventID()
	}
	if err := s.store.Append(ctx, &ev); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist notification event")
	}
	s.metrics.IncNotificationsSent(string(ev.Kind))

	select {
	case s.outbox <- ev:
	default:
		// Queue full: the stored event is the source of truth; external
		// delivery catches up from the store.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "notification outbox full, publish skipped",
				"event_id", ev.ID.String(),
				"kind", string(ev.Kind),
			)
		}
	}
	return nil
}

// Outbox exposes the publish queue to the worker.
func (s *Service) Outbox() <-chan Event { return s.outbox }

// List returns events for an audience.
func (s *Service) List(ctx context.Context, role domain.Role, scope string, onlyUnacknowledged bool) ([]*Event, error) {
	out, err := s.store.List(ctx, role, scope, onlyUnacknowledged)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list notification events")
	}
	return out, nil
}

// Acknowledge marks an event as seen by its audience.
func (s *Service) Acknowledge(ctx context.Context, id domain.EventID) (*Event, error) {
	ev, err := s.store.Acknowledge(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notification event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acknowledge notification event")
	}
	return ev, nil
}

// PendingApprovals counts proposals waiting on the given role's review.
func (s *Service) PendingApprovals(ctx context.Context, role domain.Role) (int, error) {
	if s.counter == nil {
		return 0, nil
	}
	n, err := s.counter.PendingCount(ctx, role)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count pending approvals")
	}
	return n, nil
}
