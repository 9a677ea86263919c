package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

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

// maxReleaseRetries bounds how often a release re-reads the balance after
// losing a transaction race before the failure is surfaced to the caller.
const maxReleaseRetries = 3

// ProposalChecker lets the ledger validate the optional proposal link on an
// allocation without importing the proposal package.
type ProposalChecker interface {
	// ApprovedComponent returns the component of a ministry-approved
	// proposal. Coded errors: CodeNotFound when the proposal does not
	// exist, CodeProposalNotApproved when it is not in its final approved
	// state.
	ApprovedComponent(ctx context.Context, id domain.ProposalID) (domain.Component, error)
}

// UtilizationGate answers whether a recipient has utilization certificates
// still awaiting (or failing) verification for a component.
type UtilizationGate interface {
	HasUnverified(ctx context.Context, recipient domain.TierID, component domain.Component) (bool, error)
}

// Sink receives derived notification events. Emission failures never fail
// the business operation; the sink owns durability.
type Sink interface {
	Emit(ctx context.Context, ev notification.Event) error
}

// Engine implements the allocation ledger and the release engine on top of a
// Store. The Store provides atomicity; the Engine provides the rules.
type Engine struct {
	store     Store
	tiers     tier.Store
	proposals ProposalChecker
	ucs       UtilizationGate
	events    Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithProposalChecker enables validation of proposal-linked allocations.
func WithProposalChecker(pc ProposalChecker) Option {
	return func(e *Engine) { e.proposals = pc }
}

// WithUtilizationGate enables UC gating of releases.
func WithUtilizationGate(g UtilizationGate) Option {
	return func(e *Engine) { e.ucs = g }
}

// WithSink sets the notification sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.events = s }
}

// WithLogger sets a logger for warnings on non-fatal paths.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a ledger engine.
func NewEngine(store Store, tiers tier.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tiers:  tiers,
		tracer: otel.Tracer("nidhi/ledger"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateAllocation records a budget grant from granter to recipient for one
// component. The grant does not obligate spend, so no notification is emitted.
func (e *Engine) CreateAllocation(ctx context.Context, granterID, recipientID domain.TierID, component domain.Component, amountRupees int64, proposalID *domain.ProposalID) (*Allocation, error) {
	if amountRupees <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "allocation amount must be positive")
	}
	if !component.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+string(component))
	}

	granter, err := e.tiers.FindByID(ctx, granterID)
	if err != nil {
		return nil, tierLookupError(err, "granter tier")
	}
	recipient, err := e.tiers.FindByID(ctx, recipientID)
	if err != nil {
		return nil, tierLookupError(err, "recipient tier")
	}
	if !granter.Level.DirectlyAbove(recipient.Level) {
		return nil, dErrors.Newf(dErrors.CodeUnauthorizedTier,
			"%s tier cannot allocate to %s tier", granter.Level, recipient.Level).
			WithDetail("granter_level", granter.Level.String()).
			WithDetail("recipient_level", recipient.Level.String())
	}

	if proposalID != nil {
		if e.proposals == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "proposal-linked allocations are not supported in this deployment")
		}
		comp, err := e.proposals.ApprovedComponent(ctx, *proposalID)
		if err != nil {
			return nil, err
		}
		if comp != component {
			return nil, dErrors.New(dErrors.CodeProposalNotApproved, "proposal component does not match allocation component")
		}
	}

	a := &Allocation{
		ID:              domain.NewAllocationID(),
		GranterTierID:   granterID,
		RecipientTierID: recipientID,
		Component:       component,
		ProposalID:      proposalID,
		AmountRupees:    amountRupees,
		CreatedAt:       requestcontext.Now(ctx),
	}
	if err := e.store.CreateAllocation(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist allocation")
	}
	e.metrics.IncAllocationsCreated()
	return a, nil
}

// Balance returns available() for the allocation: amount minus the sum of
// all releases, computed fresh from the release set on every call.
func (e *Engine) Balance(ctx context.Context, id domain.AllocationID) (int64, error) {
	a, err := e.store.FindAllocation(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "load allocation")
	}
	total, err := e.store.ReleasedTotal(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "aggregate releases")
	}
	return Available(a, total), nil
}

// Release authorizes a drawdown against an allocation. The balance check and
// the release write happen in one atomic section; lost races are retried a
// bounded number of times with a fresh balance read before the failure is
// surfaced with the deficit amount.
func (e *Engine) Release(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, releasedBy, remarks string) (*Release, int64, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.Release",
		trace.WithAttributes(
			attribute.String("allocation_id", allocationID.String()),
			attribute.Int64("amount_rupees", amountRupees),
		))
	defer span.End()
	start := time.Now()

	if amountRupees <= 0 {
		e.metrics.IncReleaseFailures("invalid_amount")
		return nil, 0, dErrors.New(dErrors.CodeInvalidAmount, "release amount must be positive")
	}

	a, err := e.store.FindAllocation(ctx, allocationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			e.metrics.IncReleaseFailures("not_found")
			return nil, 0, dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "load allocation")
	}

	if e.ucs != nil {
		blocked, err := e.ucs.HasUnverified(ctx, a.RecipientTierID, a.Component)
		if err != nil {
			return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "check utilization certificates")
		}
		if blocked {
			e.metrics.IncReleaseFailures("utilization_unverified")
			return nil, 0, dErrors.New(dErrors.CodeUtilizationUnverified,
				"recipient has utilization certificates awaiting verification for this component")
		}
	}

	rel := &Release{
		ID:           domain.NewReleaseID(),
		AllocationID: allocationID,
		Kind:         KindRelease,
		AmountRupees: amountRupees,
		ReleaseDate:  requestcontext.Now(ctx),
		ReleasedBy:   releasedBy,
		Remarks:      remarks,
		CreatedAt:    requestcontext.Now(ctx),
	}

	newBalance, err := e.writeRelease(ctx, a, rel)
	if err != nil {
		return nil, 0, err
	}

	e.metrics.IncReleases(string(KindRelease))
	e.metrics.ObserveReleaseDuration(time.Since(start).Seconds())
	e.emitFundRelease(ctx, a, rel, newBalance)
	return rel, newBalance, nil
}

// Adjust records a negative correction against an allocation. The released
// total may never drop below zero: a correction can only give back what was
// actually released.
func (e *Engine) Adjust(ctx context.Context, allocationID domain.AllocationID, amountRupees int64, releasedBy, remarks string) (*Release, int64, error) {
	if amountRupees >= 0 {
		return nil, 0, dErrors.New(dErrors.CodeInvalidAmount, "adjustment amount must be negative")
	}
	a, err := e.store.FindAllocation(ctx, allocationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, 0, dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "load allocation")
	}
	rel := &Release{
		ID:           domain.NewReleaseID(),
		AllocationID: allocationID,
		Kind:         KindAdjustment,
		AmountRupees: amountRupees,
		ReleaseDate:  requestcontext.Now(ctx),
		ReleasedBy:   releasedBy,
		Remarks:      remarks,
		CreatedAt:    requestcontext.Now(ctx),
	}
	newBalance, err := e.writeRelease(ctx, a, rel)
	if err != nil {
		return nil, 0, err
	}
	e.metrics.IncReleases(string(KindAdjustment))
	return rel, newBalance, nil
}

// Releases lists all releases recorded against an allocation.
func (e *Engine) Releases(ctx context.Context, id domain.AllocationID) ([]*Release, error) {
	if _, err := e.store.FindAllocation(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load allocation")
	}
	rels, err := e.store.ListReleases(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list releases")
	}
	return rels, nil
}

// RecipientAndComponent resolves an allocation to its recipient tier and
// component. Implements the utilization service's allocation resolver.
func (e *Engine) RecipientAndComponent(ctx context.Context, id domain.AllocationID) (domain.TierID, domain.Component, error) {
	a, err := e.store.FindAllocation(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.TierID{}, "", dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		return domain.TierID{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "load allocation")
	}
	return a.RecipientTierID, a.Component, nil
}

// writeRelease runs the atomic check-and-write, retrying lost races with a
// fresh balance read. Returns the balance after the write.
func (e *Engine) writeRelease(ctx context.Context, a *Allocation, rel *Release) (int64, error) {
	var newBalance int64
	for attempt := 0; ; attempt++ {
		err := e.store.InTx(ctx, a.ID, func(view Store) error {
			total, err := view.ReleasedTotal(ctx, a.ID)
			if err != nil {
				return err
			}
			available := Available(a, total)
			if rel.AmountRupees > available {
				return dErrors.Newf(dErrors.CodeInsufficientBalance,
					"requested %d exceeds available balance %d", rel.AmountRupees, available).
					WithDetail("available_balance", available).
					WithDetail("deficit", rel.AmountRupees-available)
			}
			if total+rel.AmountRupees < 0 {
				// Only reachable for adjustments.
				return dErrors.New(dErrors.CodeInvalidAmount,
					"adjustment would take the released total below zero").
					WithDetail("released_total", total)
			}
			if err := view.AppendRelease(ctx, rel); err != nil {
				return err
			}
			newBalance = available - rel.AmountRupees
			return nil
		})
		if err == nil {
			return newBalance, nil
		}
		if errors.Is(err, sentinel.ErrSerialization) && attempt < maxReleaseRetries {
			e.metrics.IncReleaseTxRetries()
			if e.logger != nil {
				e.logger.WarnContext(ctx, "release transaction conflict, retrying",
					"allocation_id", a.ID.String(),
					"attempt", attempt+1,
				)
			}
			continue
		}
		if dErrors.HasCode(err, dErrors.CodeInsufficientBalance) {
			e.metrics.IncReleaseFailures("insufficient_balance")
			return 0, err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "allocation not found")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return 0, err
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write release")
	}
}

// emitFundRelease derives the fund_release events: one for the recipient
// tier, one for the granter. Failures are logged, never returned; delivery
// durability belongs to the sink.
func (e *Engine) emitFundRelease(ctx context.Context, a *Allocation, rel *Release, newBalance int64) {
	if e.events == nil {
		return
	}
	payload := map[string]any{
		"allocation_id": a.ID.String(),
		"release_id":    rel.ID.String(),
		"component":     string(a.Component),
		"amount_rupees": rel.AmountRupees,
		"new_balance":   newBalance,
		"released_by":   rel.ReleasedBy,
	}
	for _, tierID := range []domain.TierID{a.RecipientTierID, a.GranterTierID} {
		t, err := e.tiers.FindByID(ctx, tierID)
		if err != nil {
			// Granter contact may be unknown; recipient should always resolve.
			if e.logger != nil {
				e.logger.WarnContext(ctx, "skipping fund_release notification, tier unknown",
					"tier_id", tierID.String(),
					"release_id", rel.ID.String(),
				)
			}
			continue
		}
		ev := notification.Event{
			SourceID:      rel.ID.String(),
			Kind:          notification.KindFundRelease,
			AudienceRole:  t.Role(),
			AudienceScope: t.Name,
			Payload:       payload,
			CreatedAt:     requestcontext.Now(ctx),
		}
		if err := e.events.Emit(ctx, ev); err != nil && e.logger != nil {
			e.logger.ErrorContext(ctx, "failed to emit fund_release notification",
				"release_id", rel.ID.String(),
				"error", err,
			)
		}
	}
}

func tierLookupError(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "resolve "+what)
}
