package domain

import (
	"github.com/google/uuid"

	dErrors "nidhi/pkg/domain-errors"
)

// Typed entity identifiers. Distinct types keep an AllocationID from being
// passed where a ProposalID is expected; the compiler enforces what the
// database schema cannot.
type (
	AllocationID  uuid.UUID
	ReleaseID     uuid.UUID
	ProposalID    uuid.UUID
	CertificateID uuid.UUID
	TierID        uuid.UUID
	EventID       uuid.UUID
)

func (id AllocationID) String() string  { return uuid.UUID(id).String() }
func (id ReleaseID) String() string     { return uuid.UUID(id).String() }
func (id ProposalID) String() string    { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id TierID) String() string        { return uuid.UUID(id).String() }
func (id EventID) String() string       { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and text.
func (id AllocationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ReleaseID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ProposalID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id CertificateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TierID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }

func (id *AllocationID) UnmarshalText(b []byte) error {
	parsed, err := ParseAllocationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReleaseID) UnmarshalText(b []byte) error {
	parsed, err := ParseReleaseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProposalID) UnmarshalText(b []byte) error {
	parsed, err := ParseProposalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CertificateID) UnmarshalText(b []byte) error {
	parsed, err := ParseCertificateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TierID) UnmarshalText(b []byte) error {
	parsed, err := ParseTierID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id AllocationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ReleaseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ProposalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TierID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// NewAllocationID generates a fresh random allocation ID.
func NewAllocationID() AllocationID { return AllocationID(uuid.New()) }

// NewReleaseID generates a fresh random release ID.
func NewReleaseID() ReleaseID { return ReleaseID(uuid.New()) }

// NewProposalID generates a fresh random proposal ID.
func NewProposalID() ProposalID { return ProposalID(uuid.New()) }

// NewCertificateID generates a fresh random certificate ID.
func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }

// NewTierID generates a fresh random tier ID.
func NewTierID() TierID { return TierID(uuid.New()) }

// NewEventID generates a fresh random notification event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}

// ParseAllocationID constructs an AllocationID from external input.
func ParseAllocationID(s string) (AllocationID, error) {
	u, err := parseUUID(s, "allocation id")
	return AllocationID(u), err
}

// ParseReleaseID constructs a ReleaseID from external input.
func ParseReleaseID(s string) (ReleaseID, error) {
	u, err := parseUUID(s, "release id")
	return ReleaseID(u), err
}

// ParseProposalID constructs a ProposalID from external input.
func ParseProposalID(s string) (ProposalID, error) {
	u, err := parseUUID(s, "proposal id")
	return ProposalID(u), err
}

// ParseCertificateID constructs a CertificateID from external input.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

// ParseTierID constructs a TierID from external input.
func ParseTierID(s string) (TierID, error) {
	u, err := parseUUID(s, "tier id")
	return TierID(u), err
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}
