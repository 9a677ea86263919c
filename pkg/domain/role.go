package domain

import dErrors "nidhi/pkg/domain-errors"

// Role identifies the administrative level an operator acts at.
// Invariant: the value must be one of the four scheme roles; free-form role
// strings (and ad-hoc renames like "centre_admin") stop at the trust boundary.
//
// Usage: construct via ParseRole when reading external input; direct casting
// bypasses validation.
type Role string

const (
	RoleMinistry Role = "ministry"
	RoleState    Role = "state"
	RoleDistrict Role = "district"
	RoleAgency   Role = "agency"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleMinistry: true,
	RoleState:    true,
	RoleDistrict: true,
	RoleAgency:   true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

// IsValid checks whether the role is one of the supported enum values.
func (r Role) IsValid() bool { return validRoles[r] }

// TierLevel is the depth of a tier in the administrative hierarchy.
// Lower numbers sit higher: ministry=0, state=1, district=2, agency=3.
type TierLevel int

const (
	LevelMinistry TierLevel = iota
	LevelState
	LevelDistrict
	LevelAgency
)

// Role maps a tier level onto the operator role that acts at that level.
func (l TierLevel) Role() Role {
	switch l {
	case LevelMinistry:
		return RoleMinistry
	case LevelState:
		return RoleState
	case LevelDistrict:
		return RoleDistrict
	default:
		return RoleAgency
	}
}

// DirectlyAbove reports whether l is exactly one administrative level above
// other. This is the authorization rule for fund grants: a tier may only
// allocate to the tier immediately below it.
func (l TierLevel) DirectlyAbove(other TierLevel) bool {
	return other == l+1
}

func (l TierLevel) String() string {
	switch l {
	case LevelMinistry:
		return "ministry"
	case LevelState:
		return "state"
	case LevelDistrict:
		return "district"
	case LevelAgency:
		return "agency"
	default:
		return "unknown"
	}
}
