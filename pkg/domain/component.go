package domain

import dErrors "nidhi/pkg/domain-errors"

// Component names a sub-scheme of the overall budget. Each component carries
// an independent balance; funds never move between components.
type Component string

// Supported scheme components.
const (
	ComponentAdarshGram Component = "adarsh_gram"
	ComponentGIA        Component = "gia"
	ComponentHostel     Component = "hostel"
)

// validComponents is the single source of truth for supported components.
var validComponents = map[Component]bool{
	ComponentAdarshGram: true,
	ComponentGIA:        true,
	ComponentHostel:     true,
}

// ParseComponent constructs a Component from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseComponent(s string) (Component, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "component cannot be empty")
	}
	c := Component(s)
	if !validComponents[c] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+s)
	}
	return c, nil
}

// IsValid checks whether the component is one of the supported enum values.
func (c Component) IsValid() bool { return validComponents[c] }
