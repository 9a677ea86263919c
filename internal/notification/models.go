package notification

import (
	"time"

	"nidhi/pkg/domain"
)

// Kind labels what happened. External delivery tooling routes on it.
type Kind string

const (
	KindFundRelease       Kind = "fund_release"
	KindProposalSubmitted Kind = "proposal_submitted"
	KindProposalApproved  Kind = "new_proposal_approved"
	KindUCVerified        Kind = "uc_verified"
	KindUCRejected        Kind = "uc_rejected"
)

// Event is a derived notification. This service records and publishes events;
// delivery (push, SMS, dashboards) is an external collaborator.
type Event struct {
	ID            domain.EventID `json:"id"`
	SourceID      string         `json:"source_id"`
	Kind          Kind           `json:"kind"`
	AudienceRole  domain.Role    `json:"audience_role"`
	AudienceScope string         `json:"audience_scope"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Acknowledged  bool           `json:"acknowledged"`
}

// AudienceKey identifies the audience for idempotency purposes. The same
// source event may fan out to several audiences; each (source, audience)
// pair is delivered at most once.
func (e Event) AudienceKey() string {
	return string(e.AudienceRole) + "/" + e.AudienceScope
}
