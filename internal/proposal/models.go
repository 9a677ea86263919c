package proposal

import (
	"time"

	"nidhi/pkg/domain"
	dErrors "nidhi/pkg/domain-errors"
)

// Status is the closed proposal lifecycle enum. Transitions are validated
// centrally by the transition table below, never per call site.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusSubmitted          Status = "SUBMITTED"
	StatusApprovedByState    Status = "APPROVED_BY_STATE"
	StatusApprovedByMinistry Status = "APPROVED_BY_MINISTRY"
	StatusRejectedByState    Status = "REJECTED_BY_STATE"
	StatusRejectedByMinistry Status = "REJECTED_BY_MINISTRY"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusApprovedByState,
		StatusApprovedByMinistry, StatusRejectedByState, StatusRejectedByMinistry:
		return Status(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+s)
	}
}

// transitions is the single source of truth for the approval graph.
// Forward edges only; terminal states have no entry.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusSubmitted},
	StatusSubmitted:       {StatusApprovedByState, StatusRejectedByState},
	StatusApprovedByState: {StatusApprovedByMinistry, StatusRejectedByMinistry},
}

// edgeRole maps each target status onto the role authorized to drive the
// edge that reaches it.
var edgeRole = map[Status][]domain.Role{
	// Submission comes from the proposing side of the hierarchy.
	StatusSubmitted:          {domain.RoleState, domain.RoleDistrict, domain.RoleAgency},
	StatusApprovedByState:    {domain.RoleState},
	StatusRejectedByState:    {domain.RoleState},
	StatusApprovedByMinistry: {domain.RoleMinistry},
	StatusRejectedByMinistry: {domain.RoleMinistry},
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// IsRejection reports whether the status is a rejection disposition.
func (s Status) IsRejection() bool {
	return s == StatusRejectedByState || s == StatusRejectedByMinistry
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// roleMayDrive reports whether role is authorized for the edge into target.
func roleMayDrive(role domain.Role, target Status) bool {
	for _, r := range edgeRole[target] {
		if r == role {
			return true
		}
	}
	return false
}

// Proposal is a project or annual-plan submission requiring sequential
// approval before its funding is justified.
type Proposal struct {
	ID                  domain.ProposalID `json:"id"`
	SubmitterTierID     domain.TierID     `json:"submitter_tier_id"`
	Component           domain.Component  `json:"component"`
	EstimatedCostRupees int64             `json:"estimated_cost_rupees"`
	Status              Status            `json:"status"`
	DecisionReason      string            `json:"decision_reason,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
