// Package money converts between the scheme's display units and integer
// rupees. All storage and every invariant check operates on int64 rupees;
// lakh/crore values exist only at the presentation boundary and rounding
// there must never feed back into a stored amount.
package money

import (
	"math"

	dErrors "nidhi/pkg/domain-errors"
)

// Unit is a display unit for rupee amounts.
type Unit string

const (
	UnitRupee Unit = "rupee"
	UnitLakh  Unit = "lakh"
	UnitCrore Unit = "crore"
)

// Fixed conversion factors.
const (
	RupeesPerLakh  int64 = 100_000
	RupeesPerCrore int64 = 10_000_000
)

// ParseUnit constructs a Unit from external input.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitRupee, UnitLakh, UnitCrore:
		return Unit(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "unit cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid unit: "+s)
	}
}

func factor(unit Unit) (int64, bool) {
	switch unit {
	case UnitRupee:
		return 1, true
	case UnitLakh:
		return RupeesPerLakh, true
	case UnitCrore:
		return RupeesPerCrore, true
	default:
		return 0, false
	}
}

// ToRupees converts a display-unit amount into integer rupees. The input must
// land on a whole rupee; sub-rupee residue means the caller rounded a display
// value and is trying to store it, which is exactly the drift this package
// exists to prevent.
func ToRupees(amount float64, unit Unit) (int64, error) {
	f, ok := factor(unit)
	if !ok {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid unit: "+string(unit))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "amount must be a finite number")
	}
	scaled := amount * float64(f)
	if math.Abs(scaled) > math.MaxInt64 {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "amount overflows rupees")
	}
	rounded := math.Round(scaled)
	// Tolerate float representation error only; reject genuine fractions.
	if math.Abs(scaled-rounded) > 1e-6*math.Max(1, math.Abs(scaled)) {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "amount does not convert to a whole rupee value")
	}
	return int64(rounded), nil
}

// FromRupees converts integer rupees into a display-unit amount rounded to
// the unit's natural precision (2 decimal places for lakh/crore). The result
// is presentation-only.
func FromRupees(rupees int64, unit Unit) float64 {
	f, ok := factor(unit)
	if !ok || f == 1 {
		return float64(rupees)
	}
	v := float64(rupees) / float64(f)
	return math.Round(v*100) / 100
}
