package utilization

import (
	"context"

	"nidhi/pkg/domain"
)

// Store persists utilization certificates. Decide must be conditional on the
// certificate still being PENDING; implementations return
// sentinel.ErrInvalidState when it is not.
type Store interface {
	Create(ctx context.Context, c *Certificate) error
	FindByID(ctx context.Context, id domain.CertificateID) (*Certificate, error)
	// Decide sets the final status iff the stored status is PENDING.
	Decide(ctx context.Context, id domain.CertificateID, decision Decision, decidedBy string) (*Certificate, error)
	// CountUnverified counts certificates for recipient+component that are
	// not VERIFIED (PENDING or REJECTED). The release gate uses this query.
	CountUnverified(ctx context.Context, recipient domain.TierID, component domain.Component) (int, error)
}
