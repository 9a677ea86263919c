package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseAllocationID checks that parsing never panics on arbitrary input
// and that accepted values round-trip through their string form.
func FuzzParseAllocationID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE allocations;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseAllocationID(input)
		if err == nil {
			roundTrip, err2 := ParseAllocationID(id.String())
			if err2 != nil {
				t.Errorf("accepted ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed the ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseIDsConsistent checks that every ID type applies the same
// acceptance rule, so a value cannot pass one boundary and fail another.
func FuzzParseIDsConsistent(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errAllocation := ParseAllocationID(input)
		_, errRelease := ParseReleaseID(input)
		_, errProposal := ParseProposalID(input)
		_, errCertificate := ParseCertificateID(input)
		_, errTier := ParseTierID(input)
		_, errEvent := ParseEventID(input)

		accepted := errAllocation == nil
		for _, err := range []error{errRelease, errProposal, errCertificate, errTier, errEvent} {
			if (err == nil) != accepted {
				t.Error("ID types disagree on validity")
			}
		}
	})
}
