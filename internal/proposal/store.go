package proposal

import (
	"context"

	"nidhi/pkg/domain"
)

// Store persists proposals. UpdateStatus must be conditional on the expected
// current status so two reviewers racing on the same proposal cannot both
// win; implementations return sentinel.ErrConflict when the guard fails.
type Store interface {
	Create(ctx context.Context, p *Proposal) error
	FindByID(ctx context.Context, id domain.ProposalID) (*Proposal, error)
	ListByStatus(ctx context.Context, status Status) ([]*Proposal, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
	// UpdateStatus sets status and reason iff the stored status equals from.
	UpdateStatus(ctx context.Context, id domain.ProposalID, from, to Status, reason string) (*Proposal, error)
}
