package utilization

import (
	"time"

	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
)

// Status of a utilization certificate. PENDING is the only state a decision
// can be made from; VERIFIED and REJECTED are permanent.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

// Decision is the reviewer's disposition of a pending certificate.
type Decision = Status

// ParseDecision constructs a verification decision from external input.
func ParseDecision(s string) (Decision, error) {
	switch Status(s) {
	case StatusVerified, StatusRejected:
		return Status(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "decision cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid decision: "+s)
	}
}

// Certificate is a recipient's declaration of how released funds were spent,
// subject to verification before further releases are permitted.
type Certificate struct {
	ID              domain.CertificateID `json:"id"`
	RecipientTierID domain.TierID        `json:"recipient_tier_id"`
	AllocationID    domain.AllocationID  `json:"allocation_id"`
	Component       domain.Component     `json:"component"`
	AmountRupees    int64                `json:"amount_rupees"`
	Period          string               `json:"period"`
	Status          Status               `json:"status"`
	DecidedBy       string               `json:"decided_by,omitempty"`
	DecidedAt       *time.Time           `json:"decided_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}
