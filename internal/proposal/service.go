package proposal

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nidhi/internal/notification"
	"nidhi/internal/platform/metrics"
	"nidhi/internal/tier"
	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
	"nidhi/pkg/requestcontext"
	"nidhi/pkg/sentinel"
)

// Sink receives derived notification events.
type Sink interface {
	Emit(ctx context.Context, ev notification.Event) error
}

// Service drives the proposal approval lifecycle. All transition rules live
// here and in the models transition table; callers never compare status
// strings themselves.
type Service struct {
	store   Store
	tiers   tier.Store
	events  Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(svc *Service) { svc.metrics = m }
}

// NewService creates a proposal service.
func NewService(store Store, tiers tier.Store, opts ...ServiceOption) *Service {
	svc := &Service{
		store:  store,
		tiers:  tiers,
		tracer: otel.Tracer("nidhi/proposal"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create registers a new proposal in DRAFT.
func (s *Service) Create(ctx context.Context, submitterTierID domain.TierID, component domain.Component, estimatedCostRupees int64) (*Proposal, error) {
	if estimatedCostRupees <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "estimated cost must be positive")
	}
	if !component.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+string(component))
	}
	if _, err := s.tiers.FindByID(ctx, submitterTierID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "submitter tier not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve submitter tier")
	}
	now := requestcontext.Now(ctx)
	p := &Proposal{
		ID:                  domain.NewProposalID(),
		SubmitterTierID:     submitterTierID,
		Component:           component,
		EstimatedCostRupees: estimatedCostRupees,
		Status:              StatusDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist proposal")
	}
	return p, nil
}

// Get loads a proposal by ID.
func (s *Service) Get(ctx context.Context, id domain.ProposalID) (*Proposal, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "proposal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load proposal")
	}
	return p, nil
}

// ListByStatus lists proposals awaiting a given disposition.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]*Proposal, error) {
	out, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list proposals")
	}
	return out, nil
}

// Transition moves a proposal along one edge of the approval graph.
//
// Rules, in order: the edge must exist from the current status
// (IllegalTransition), the actor's role must be authorized for the edge
// (ForbiddenForRole), rejections require a non-empty reason (ReasonRequired).
// The write is guarded against concurrent reviewers; a lost race re-reads
// and reports IllegalTransition against the winner's status.
func (s *Service) Transition(ctx context.Context, id domain.ProposalID, target Status, actorRole domain.Role, reason string) (*Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "proposal.Transition",
		trace.WithAttributes(
			attribute.String("proposal_id", id.String()),
			attribute.String("target_status", string(target)),
		))
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !p.Status.CanTransitionTo(target) {
		return nil, illegalTransition(p.Status, target)
	}
	if !roleMayDrive(actorRole, target) {
		return nil, dErrors.Newf(dErrors.CodeForbiddenForRole,
			"role %s is not authorized to set status %s", actorRole, target)
	}
	reason = strings.TrimSpace(reason)
	if target.IsRejection() && reason == "" {
		return nil, dErrors.New(dErrors.CodeReasonRequired, "rejection requires a reason")
	}

	updated, err := s.store.UpdateStatus(ctx, id, p.Status, target, reason)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another reviewer won the race; report against their outcome.
			current, getErr := s.Get(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, illegalTransition(current.Status, target)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "proposal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update proposal status")
	}

	s.metrics.IncProposalTransitions(string(target))
	s.emit(ctx, updated)
	return updated, nil
}

// emit derives the notification for a completed transition, when one applies.
func (s *Service) emit(ctx context.Context, p *Proposal) {
	if s.events == nil {
		return
	}
	var (
		kind     notification.Kind
		role     domain.Role
		audience *tier.Tier
		err      error
	)
	switch p.Status {
	case StatusSubmitted:
		// The state reviewing tier needs to know a proposal awaits it.
		kind = notification.KindProposalSubmitted
		role = domain.RoleState
		audience, err = s.reviewingState(ctx, p.SubmitterTierID)
	case StatusApprovedByMinistry:
		// The signal external tooling uses to know a subsequent
		// allocation or release may now be justified.
		kind = notification.KindProposalApproved
		audience, err = s.tiers.FindByID(ctx, p.SubmitterTierID)
		if audience != nil {
			role = audience.Role()
		}
	default:
		return
	}
	if err != nil || audience == nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "skipping proposal notification, audience unresolved",
				"proposal_id", p.ID.String(),
				"status", string(p.Status),
			)
		}
		return
	}
	ev := notification.Event{
		SourceID:      p.ID.String() + ":" + string(p.Status),
		Kind:          kind,
		AudienceRole:  role,
		AudienceScope: audience.Name,
		Payload: map[string]any{
			"proposal_id":           p.ID.String(),
			"component":             string(p.Component),
			"estimated_cost_rupees": p.EstimatedCostRupees,
			"status":                string(p.Status),
		},
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.events.Emit(ctx, ev); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit proposal notification",
			"proposal_id", p.ID.String(),
			"error", err,
		)
	}
}

// reviewingState walks up from the submitter to the state tier that reviews
// the submission. A state-level submitter reviews under itself.
func (s *Service) reviewingState(ctx context.Context, submitterID domain.TierID) (*tier.Tier, error) {
	t, err := s.tiers.FindByID(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	for t.Level > domain.LevelState && t.ParentID != nil {
		t, err = s.tiers.FindByID(ctx, *t.ParentID)
		if err != nil {
			return nil, err
		}
	}
	if t.Level != domain.LevelState {
		return nil, sentinel.ErrNotFound
	}
	return t, nil
}

func illegalTransition(from, to Status) error {
	return dErrors.Newf(dErrors.CodeIllegalTransition,
		"cannot transition from %s to %s", from, to).
		WithDetail("current_status", string(from)).
		WithDetail("target_status", string(to))
}

// ApprovedComponent implements the ledger's proposal gate: it returns the
// component of a ministry-approved proposal.
func (s *Service) ApprovedComponent(ctx context.Context, id domain.ProposalID) (domain.Component, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Status != StatusApprovedByMinistry {
		return "", dErrors.Newf(dErrors.CodeProposalNotApproved,
			"proposal is %s, not approved by ministry", p.Status).
			WithDetail("current_status", string(p.Status))
	}
	return p.Component, nil
}

// CountByStatus supports the pending-approvals dashboard.
func (s *Service) CountByStatus(ctx context.Context, status Status) (int, error) {
	n, err := s.store.CountByStatus(ctx, status)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count proposals")
	}
	return n, nil
}

// PendingCount implements the notification emitter's counter: how many
// proposals currently await the given role's review.
func (s *Service) PendingCount(ctx context.Context, role domain.Role) (int, error) {
	switch role {
	case domain.RoleState:
		return s.CountByStatus(ctx, StatusSubmitted)
	case domain.RoleMinistry:
		return s.CountByStatus(ctx, StatusApprovedByState)
	default:
		return 0, nil
	}
}
