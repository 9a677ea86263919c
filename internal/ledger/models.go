package ledger

import (
	"time"

	"nidhi/pkg/domain"
)

// Allocation records a top-down budget grant from one tier to the tier below,
// scoped to a single scheme component.
//
// Invariants:
//   - AmountRupees > 0
//   - granter tier sits exactly one level above the recipient tier
//   - immutable once created; amendments are new Allocations, corrections
//     are adjustment Releases
type Allocation struct {
	ID              domain.AllocationID `json:"id"`
	GranterTierID   domain.TierID       `json:"granter_tier_id"`
	RecipientTierID domain.TierID       `json:"recipient_tier_id"`
	Component       domain.Component    `json:"component"`
	ProposalID      *domain.ProposalID  `json:"proposal_id,omitempty"`
	AmountRupees    int64               `json:"amount_rupees"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ReleaseKind distinguishes ordinary drawdowns from bookkeeping corrections.
type ReleaseKind string

const (
	KindRelease    ReleaseKind = "release"
	KindAdjustment ReleaseKind = "adjustment"
)

// Release is a drawdown against an Allocation's balance. Append-only: no
// edits, no deletes. Corrections are negative-amount adjustment releases.
type Release struct {
	ID           domain.ReleaseID    `json:"id"`
	AllocationID domain.AllocationID `json:"allocation_id"`
	Kind         ReleaseKind         `json:"kind"`
	AmountRupees int64               `json:"amount_rupees"`
	ReleaseDate  time.Time           `json:"release_date"`
	ReleasedBy   string              `json:"released_by"`
	Remarks      string              `json:"remarks"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Available is the derived balance: allocation amount minus the sum of all
// releases against it. Never stored; always recomputed from the release set.
func Available(a *Allocation, releasedTotal int64) int64 {
	return a.AmountRupees - releasedTotal
}
