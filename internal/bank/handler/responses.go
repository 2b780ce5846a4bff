package handler

import (
	"time"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
)

// DonorResponse is the HTTP representation of a donor.
type DonorResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	Age              int        `json:"age"`
	Gender           string     `json:"gender,omitempty"`
	BloodGroup       string     `json:"blood_group"`
	LastDonationDate *time.Time `json:"last_donation_date,omitempty"`
	PatientID        string     `json:"patient_id,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
}

// FromDonor converts a domain donor to its HTTP representation.
func FromDonor(d *models.Donor) *DonorResponse {
	resp := &DonorResponse{
		ID:               d.ID.String(),
		Name:             d.Name,
		Phone:            d.Phone,
		Email:            d.Email,
		Age:              d.Age,
		Gender:           d.Gender,
		BloodGroup:       d.BloodGroup.String(),
		LastDonationDate: d.LastDonationDate,
		RegisteredAt:     d.RegisteredAt,
	}
	if d.PatientID != nil {
		resp.PatientID = d.PatientID.String()
	}
	return resp
}

// FromDonors converts a donor list.
func FromDonors(donors []*models.Donor) []*DonorResponse {
	out := make([]*DonorResponse, 0, len(donors))
	for _, d := range donors {
		out = append(out, FromDonor(d))
	}
	return out
}

// UnitResponse is the HTTP representation of a blood unit.
type UnitResponse struct {
	ID          string    `json:"id"`
	BloodGroup  string    `json:"blood_group"`
	DonorID     string    `json:"donor_id"`
	CollectedAt time.Time `json:"collected_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      string    `json:"status"`
}

// FromUnit converts a domain unit to its HTTP representation.
func FromUnit(u *models.BloodUnit) *UnitResponse {
	return &UnitResponse{
		ID:          u.ID.String(),
		BloodGroup:  u.BloodGroup.String(),
		DonorID:     u.DonorID.String(),
		CollectedAt: u.CollectedAt,
		ExpiresAt:   u.ExpiresAt,
		Status:      string(u.Status),
	}
}

// FromUnits converts a unit list.
func FromUnits(units []*models.BloodUnit) []*UnitResponse {
	out := make([]*UnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, FromUnit(u))
	}
	return out
}

// RequestResponse is the HTTP representation of a blood request.
type RequestResponse struct {
	ID             string     `json:"id"`
	PatientID      string     `json:"patient_id"`
	RequestedGroup string     `json:"requested_group"`
	UnitsRequired  int        `json:"units_required"`
	Status         string     `json:"status"`
	RequestedAt    time.Time  `json:"requested_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
}

// FromRequest converts a domain request to its HTTP representation.
func FromRequest(r *models.BloodRequest) *RequestResponse {
	return &RequestResponse{
		ID:             r.ID.String(),
		PatientID:      r.PatientID.String(),
		RequestedGroup: r.RequestedGroup.String(),
		UnitsRequired:  r.UnitsRequired,
		Status:         string(r.Status),
		RequestedAt:    r.RequestedAt,
		DecidedAt:      r.DecidedAt,
	}
}

// FromRequests converts a request list.
func FromRequests(reqs []*models.BloodRequest) []*RequestResponse {
	out := make([]*RequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, FromRequest(r))
	}
	return out
}

// ApprovalResponse is the HTTP response for PUT /requests/{id}/approve.
type ApprovalResponse struct {
	Request *RequestResponse `json:"request"`
	Units   []*UnitResponse  `json:"allocated_units"`
}

// AvailabilityResponse is the HTTP response for GET /availability.
type AvailabilityResponse struct {
	Counts map[string]int `json:"counts"`
}

// FromAvailability converts per-group counts to their HTTP representation.
func FromAvailability(counts map[id.BloodGroup]int) *AvailabilityResponse {
	out := make(map[string]int, len(counts))
	for group, count := range counts {
		out[group.String()] = count
	}
	return &AvailabilityResponse{Counts: out}
}
