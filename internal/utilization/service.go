package utilization

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"nidhi/internal/notification"
	"nidhi/internal/tier"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
	"nidhi/pkg/sentinel"
)

// AllocationResolver gives the service the recipient and component of the
// allocation a certificate reports against, without importing the ledger.
type AllocationResolver interface {
	RecipientAndComponent(ctx context.Context, id domain.AllocationID) (domain.TierID, domain.Component, error)
}

// Sink receives derived notification events.
type Sink interface {
	Emit(ctx context.Context, ev notification.Event) error
}

// Service owns certificate submission and verification. It also serves as
// the release engine's utilization gate.
type Service struct {
	store       Store
	allocations AllocationResolver
	tiers       tier.Store
	events      Sink
	logger      *slog.Logger
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithSink sets the notification sink.
func WithSink(s Sink) ServiceOption {
	return func(svc *Service) { svc.events = s }
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = l }
}

// WithTiers lets notifications carry the recipient's geographic name instead
// of its raw tier ID.
func WithTiers(t tier.Store) ServiceOption {
	return func(svc *Service) { svc.tiers = t }
}

// NewService creates a utilization service.
func NewService(store Store, allocations AllocationResolver, opts ...ServiceOption) *Service {
	svc := &Service{store: store, allocations: allocations}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit records a recipient's utilization declaration as PENDING.
func (s *Service) Submit(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, period string) (*Certificate, error) {
	if amountRupees <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "certificate amount must be positive")
	}
	if strings.TrimSpace(period) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "period cannot be empty")
	}
	recipient, component, err := s.allocations.RecipientAndComponent(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	c := &Certificate{
		ID:              domain.NewCertificateID(),
		RecipientTierID: recipient,
		AllocationID:    allocationID,
		Component:       component,
		AmountRupees:    amountRupees,
		Period:          period,
		Status:          StatusPending,
		CreatedAt:       requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist certificate")
	}
	return c, nil
}

// Verify records the reviewer's decision on a PENDING certificate. A
// certificate that already carries a decision cannot be decided again.
func (s *Service) Verify(ctx context.Context, id domain.CertificateID, decision Decision, reviewerRole domain.Role) (*Certificate, error) {
	if reviewerRole != domain.RoleState && reviewerRole != domain.RoleMinistry {
		return nil, dErrors.Newf(dErrors.CodeForbiddenForRole,
			"role %s cannot verify utilization certificates", reviewerRole)
	}
	actor := requestcontext.Actor(ctx)
	c, err := s.store.Decide(ctx, id, decision, actor.OperatorID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeAlreadyDecided, "certificate already decided")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decide certificate")
		}
	}
	s.emit(ctx, c)
	return c, nil
}

// HasUnverified implements the release engine's gate: true while any
// certificate for recipient+component is PENDING or REJECTED.
func (s *Service) HasUnverified(ctx context.Context, recipient domain.TierID, component domain.Component) (bool, error) {
	n, err := s.store.CountUnverified(ctx, recipient, component)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) emit(ctx context.Context, c *Certificate) {
	if s.events == nil {
		return
	}
	kind := notification.KindUCVerified
	if c.Status == StatusRejected {
		kind = notification.KindUCRejected
	}
	scope := c.RecipientTierID.String()
	role := domain.RoleState
	if s.tiers != nil {
		if t, err := s.tiers.FindByID(ctx, c.RecipientTierID); err == nil {
			scope = t.Name
			role = t.Role()
		}
	}
	ev := notification.Event{
		SourceID:      c.ID.String(),
		Kind:          kind,
		AudienceRole:  role,
		AudienceScope: scope,
		Payload: map[string]any{
			"certificate_id": c.ID.String(),
			"allocation_id":  c.AllocationID.String(),
			"component":      string(c.Component),
			"amount_rupees":  c.AmountRupees,
			"period":         c.Period,
			"status":         string(c.Status),
		},
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.events.Emit(ctx, ev); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit certificate notification",
			"certificate_id", c.ID.String(),
			"error", err,
		)
	}
}
