package tier

import (
	"context"

	"nidhi/pkg/domain"
)

// Store is interface-driven so the ledger can resolve tiers against memory
// in tests and Postgres in production without rewiring.
type Store interface {
	Create(ctx context.Context, t *Tier) error
	FindByID(ctx context.Context, id domain.TierID) (*Tier, error)
	ListByLevel(ctx context.Context, level domain.TierLevel) ([]*Tier, error)
}
