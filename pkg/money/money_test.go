package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nidhi/pkg/domain-errors"
)

func TestParseUnit(t *testing.T) {
	for _, valid := range []string{"rupee", "lakh", "crore"} {
		u, err := ParseUnit(valid)
		require.NoError(t, err)
		assert.Equal(t, Unit(valid), u)
	}

	_, err := ParseUnit("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseUnit("million")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestToRupees(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		unit   Unit
		want   int64
	}{
		{"whole rupees", 12345, UnitRupee, 12345},
		{"one lakh", 1, UnitLakh, 100_000},
		{"fractional lakh", 2.5, UnitLakh, 250_000},
		{"one crore", 1, UnitCrore, 10_000_000},
		{"ten crore", 10, UnitCrore, 100_000_000},
		{"paisa-free crore fraction", 0.0001, UnitCrore, 1_000},
		{"negative adjustment", -3, UnitLakh, -300_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToRupees(tt.amount, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects sub-rupee fractions", func(t *testing.T) {
		_, err := ToRupees(0.5, UnitRupee)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		_, err = ToRupees(0.0000001, UnitLakh)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("rejects non-finite input", func(t *testing.T) {
		for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := ToRupees(bad, UnitCrore)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
		}
	})

	t.Run("rejects overflow", func(t *testing.T) {
		_, err := ToRupees(math.MaxFloat64, UnitCrore)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	t.Run("rejects unknown unit", func(t *testing.T) {
		_, err := ToRupees(1, Unit("million"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestFromRupees(t *testing.T) {
	assert.Equal(t, 1.0, FromRupees(10_000_000, UnitCrore))
	assert.Equal(t, 2.5, FromRupees(250_000, UnitLakh))
	assert.Equal(t, 0.33, FromRupees(3_300_000, UnitCrore))
	assert.Equal(t, float64(42), FromRupees(42, UnitRupee))
}

// Whole display-unit values must survive a round trip; storage never drifts
// from what the operator typed.
func TestRoundTrip(t *testing.T) {
	for _, unit := range []Unit{UnitRupee, UnitLakh, UnitCrore} {
		for _, amount := range []float64{1, 7, 42, 1000, 2.5, 0.25} {
			if unit == UnitRupee && amount != math.Trunc(amount) {
				continue
			}
			rupees, err := ToRupees(amount, unit)
			require.NoError(t, err)
			assert.Equal(t, amount, FromRupees(rupees, unit), "unit=%s amount=%v", unit, amount)
		}
	}
}
