package tier

import (
	"time"

	"nidhi/pkg/domain"
)

// Tier is one node of the administrative hierarchy. Operators reference tiers
// by ID, never by parsing display names back into state/district strings.
//
// Invariants:
//   - Name is non-empty and unique among siblings
//   - ParentID is nil exactly for the ministry root
//   - Level equals parent level + 1
type Tier struct {
	ID        domain.TierID    `json:"id"`
	Level     domain.TierLevel `json:"level"`
	Name      string           `json:"name"`
	ParentID  *domain.TierID   `json:"parent_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Role returns the operator role that acts at this tier.
func (t *Tier) Role() domain.Role { return t.Level.Role() }
