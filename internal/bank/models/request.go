package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// CanTransitionTo reports whether the status machine allows the move.
// Only PENDING has outgoing edges; APPROVED and REJECTED are terminal.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	if s != RequestStatusPending {
		return false
	}
	return target == RequestStatusApproved || target == RequestStatusRejected
}

// BloodRequest is a patient-submitted request for units of one blood group.
//
// Invariants:
//   - UnitsRequired is in [1, maxUnitsPerRequest]
//   - Status transitions exactly once: PENDING → APPROVED or
//     PENDING → REJECTED; an approval that fails on stock leaves the
//     request PENDING
//   - Once decided, no operation transitions out of APPROVED or REJECTED
type BloodRequest struct {
	ID             id.RequestID  `json:"id"`
	PatientID      id.PatientID  `json:"patient_id"`
	RequestedGroup id.BloodGroup `json:"requested_group"`
	UnitsRequired  int           `json:"units_required"`
	Status         RequestStatus `json:"status"`
	RequestedAt    time.Time     `json:"requested_at"`
	DecidedAt      *time.Time    `json:"decided_at,omitempty"`
}

// IsPending reports whether the request still awaits a decision.
func (r *BloodRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// CanApprove checks the PENDING → APPROVED transition.
// Use with ApplyApproval in Execute callbacks so the store holds its lock
// across validation and mutation.
func (r *BloodRequest) CanApprove() error {
	if !r.Status.CanTransitionTo(RequestStatusApproved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already decided")
	}
	return nil
}

// ApplyApproval transitions the request to APPROVED.
// Call CanApprove first to validate the transition.
func (r *BloodRequest) ApplyApproval(now time.Time) {
	r.Status = RequestStatusApproved
	t := now
	r.DecidedAt = &t
}

// CanReject checks the PENDING → REJECTED transition.
func (r *BloodRequest) CanReject() error {
	if !r.Status.CanTransitionTo(RequestStatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already decided")
	}
	return nil
}

// ApplyRejection transitions the request to REJECTED.
// Call CanReject first to validate the transition.
func (r *BloodRequest) ApplyRejection(now time.Time) {
	r.Status = RequestStatusRejected
	t := now
	r.DecidedAt = &t
}

// NewBloodRequest constructs a pending request, enforcing the units range.
//
// Errors: CodeValidation when unitsRequired is outside [1, maxUnits];
// CodeInvalidInput for an unsupported group or nil patient id.
func NewBloodRequest(requestID id.RequestID, patientID id.PatientID, group id.BloodGroup, unitsRequired, maxUnits int, now time.Time) (*BloodRequest, error) {
	if patientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "patient id is required")
	}
	if !group.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid blood group")
	}
	if unitsRequired < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one unit must be requested")
	}
	if unitsRequired > maxUnits {
		return nil, dErrors.New(dErrors.CodeValidation, "requested units exceed the per-request cap")
	}
	return &BloodRequest{
		ID:             requestID,
		PatientID:      patientID,
		RequestedGroup: group,
		UnitsRequired:  unitsRequired,
		Status:         RequestStatusPending,
		RequestedAt:    now,
	}, nil
}
