package audit

import "time"

// Event is emitted from domain logic to capture key blood bank actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	// Actor is the authenticated staff subject, when the action came through
	// an authenticated route.
	Actor string
	// Subject identifies the primary entity: donor, unit, or request id.
	Subject string
	// PatientID correlates patient-initiated actions.
	PatientID string
	// BloodGroup and Units carry allocation context for stock events.
	BloodGroup string
	Units      int
	Reason     string
	// RequestID is the HTTP correlation id, when available.
	RequestID string
}

// Action names the audited operations.
type Action string

const (
	ActionDonorRegistered  Action = "donor_registered"
	ActionUnitCollected    Action = "unit_collected"
	ActionRequestCreated   Action = "request_created"
	ActionRequestApproved  Action = "request_approved"
	ActionRequestRejected  Action = "request_rejected"
	ActionAllocationFailed Action = "allocation_failed"
)
