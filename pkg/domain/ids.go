// Package domain holds the blood bank's domain primitives: typed ids and the
// blood group enum. Constructing values through the Parse functions enforces
// validity at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "bloodbank/pkg/domain-errors"
)

// Typed UUID ids. Distinct types keep a DonorID from being passed where a
// PatientID is expected; the compiler enforces the distinction.
type (
	DonorID   uuid.UUID
	UnitID    uuid.UUID
	RequestID uuid.UUID
	PatientID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseDonorID constructs a DonorID from external input.
func ParseDonorID(s string) (DonorID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return DonorID{}, err
	}
	return DonorID(parsed), nil
}

// ParseUnitID constructs a UnitID from external input.
func ParseUnitID(s string) (UnitID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return UnitID{}, err
	}
	return UnitID(parsed), nil
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(parsed), nil
}

// ParsePatientID constructs a PatientID from external input.
func ParsePatientID(s string) (PatientID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return PatientID{}, err
	}
	return PatientID(parsed), nil
}

func (id DonorID) String() string   { return uuid.UUID(id).String() }
func (id UnitID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id PatientID) String() string { return uuid.UUID(id).String() }

func (id DonorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UnitID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PatientID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewDonorID generates a fresh donor id.
func NewDonorID() DonorID { return DonorID(uuid.New()) }

// NewUnitID generates a fresh unit id.
func NewUnitID() UnitID { return UnitID(uuid.New()) }

// NewRequestID generates a fresh request id.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewPatientID generates a fresh patient id.
func NewPatientID() PatientID { return PatientID(uuid.New()) }
