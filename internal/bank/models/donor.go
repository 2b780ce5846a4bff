package models

import (
	"regexp"
	"strings"
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// Donor is the aggregate root for a registered blood donor.
//
// Invariants:
//   - Age is at least 18 at registration
//   - Phone matches the accepted format
//   - BloodGroup is one of the eight supported groups and never changes
//     after registration (lab corrections are out of scope; group edits are
//     rejected everywhere)
//   - At most one donor references a given PatientID
//   - Donors are historical records: never deleted
//
// LastDonationDate is touched by the ledger each time a unit is collected
// from this donor; it is nil until the first collection.
type Donor struct {
	ID               id.DonorID    `json:"id"`
	Name             string        `json:"name"`
	Phone            string        `json:"phone"`
	Email            string        `json:"email"`
	Age              int           `json:"age"`
	Gender           string        `json:"gender"`
	BloodGroup       id.BloodGroup `json:"blood_group"`
	LastDonationDate *time.Time    `json:"last_donation_date,omitempty"`
	PatientID        *id.PatientID `json:"patient_id,omitempty"`
	RegisteredAt     time.Time     `json:"registered_at"`
}

const minDonorAge = 18

// phonePattern accepts an optional leading + and 7 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// RecordDonation stamps the donor's last donation date. Called by the ledger
// when a unit is collected; the donor has no say in the timestamp.
func (d *Donor) RecordDonation(now time.Time) {
	t := now
	d.LastDonationDate = &t
}

// NewDonor constructs a Donor, enforcing registration invariants.
//
// Errors: CodeValidation for age, phone, or name violations;
// CodeInvalidInput for an unsupported blood group.
func NewDonor(donorID id.DonorID, name, phone, email string, age int, gender string, group id.BloodGroup, patientID *id.PatientID, now time.Time) (*Donor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "donor name cannot be empty")
	}
	if age < minDonorAge {
		return nil, dErrors.New(dErrors.CodeValidation, "donor must be at least 18 years old")
	}
	if !phonePattern.MatchString(phone) {
		return nil, dErrors.New(dErrors.CodeValidation, "phone must be 7 to 15 digits with an optional leading +")
	}
	if !group.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid blood group")
	}
	if patientID != nil && patientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "patient id cannot be the nil UUID")
	}
	return &Donor{
		ID:           donorID,
		Name:         name,
		Phone:        phone,
		Email:        strings.TrimSpace(email),
		Age:          age,
		Gender:       strings.TrimSpace(gender),
		BloodGroup:   group,
		PatientID:    patientID,
		RegisteredAt: now,
	}, nil
}
