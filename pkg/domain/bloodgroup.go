package domain

import dErrors "bloodbank/pkg/domain-errors"

// BloodGroup is a domain value identifying one of the eight ABO/Rh groups.
// Invariant: the value must be one of the supported groups.
//
// Usage: construct via ParseBloodGroup at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type BloodGroup string

const (
	BloodGroupAPositive  BloodGroup = "A_POSITIVE"
	BloodGroupANegative  BloodGroup = "A_NEGATIVE"
	BloodGroupBPositive  BloodGroup = "B_POSITIVE"
	BloodGroupBNegative  BloodGroup = "B_NEGATIVE"
	BloodGroupABPositive BloodGroup = "AB_POSITIVE"
	BloodGroupABNegative BloodGroup = "AB_NEGATIVE"
	BloodGroupOPositive  BloodGroup = "O_POSITIVE"
	BloodGroupONegative  BloodGroup = "O_NEGATIVE"
)

// validBloodGroups is the single source of truth for valid groups.
var validBloodGroups = map[BloodGroup]bool{
	BloodGroupAPositive:  true,
	BloodGroupANegative:  true,
	BloodGroupBPositive:  true,
	BloodGroupBNegative:  true,
	BloodGroupABPositive: true,
	BloodGroupABNegative: true,
	BloodGroupOPositive:  true,
	BloodGroupONegative:  true,
}

// ParseBloodGroup constructs a BloodGroup from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseBloodGroup(s string) (BloodGroup, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "blood group cannot be empty")
	}
	g := BloodGroup(s)
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid blood group")
	}
	return g, nil
}

// IsValid checks if the blood group is one of the supported enum values.
func (g BloodGroup) IsValid() bool {
	return validBloodGroups[g]
}

// String returns the string representation of the group.
func (g BloodGroup) String() string {
	return string(g)
}

// BloodGroups returns all supported groups in a stable order, for
// availability dashboards and seed data.
func BloodGroups() []BloodGroup {
	return []BloodGroup{
		BloodGroupAPositive, BloodGroupANegative,
		BloodGroupBPositive, BloodGroupBNegative,
		BloodGroupABPositive, BloodGroupABNegative,
		BloodGroupOPositive, BloodGroupONegative,
	}
}
