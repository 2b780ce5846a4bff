package handler

import (
	"strings"

	"bloodbank/internal/bank/service"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// RegisterDonorRequest is the HTTP request body for POST /donors.
type RegisterDonorRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	BloodGroup string `json:"blood_group"`
	PatientID  string `json:"patient_id,omitempty"`

	// Parsed values (populated by Validate)
	parsedGroup   id.BloodGroup
	parsedPatient *id.PatientID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterDonorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 200 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 200 characters")
	}

	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
	if r.BloodGroup == "" {
		return dErrors.New(dErrors.CodeValidation, "blood_group is required")
	}
	group, err := id.ParseBloodGroup(r.BloodGroup)
	if err != nil {
		return err
	}
	r.parsedGroup = group

	r.PatientID = strings.TrimSpace(r.PatientID)
	if r.PatientID != "" {
		patientID, err := id.ParsePatientID(r.PatientID)
		if err != nil {
			return err
		}
		r.parsedPatient = &patientID
	}

	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.Gender = strings.TrimSpace(r.Gender)
	return nil
}

// ToInput converts the validated request to a service input.
func (r *RegisterDonorRequest) ToInput() service.RegisterDonorInput {
	return service.RegisterDonorInput{
		Name:       r.Name,
		Phone:      r.Phone,
		Email:      r.Email,
		Age:        r.Age,
		Gender:     r.Gender,
		BloodGroup: r.parsedGroup,
		PatientID:  r.parsedPatient,
	}
}

// CollectUnitRequest is the HTTP request body for POST /units.
type CollectUnitRequest struct {
	DonorID string `json:"donor_id"`

	parsedDonor id.DonorID
}

func (r *CollectUnitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.DonorID = strings.TrimSpace(r.DonorID)
	if r.DonorID == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_id is required")
	}
	donorID, err := id.ParseDonorID(r.DonorID)
	if err != nil {
		return err
	}
	r.parsedDonor = donorID
	return nil
}

// ParsedDonorID returns the validated donor id.
func (r *CollectUnitRequest) ParsedDonorID() id.DonorID {
	return r.parsedDonor
}

// CreateRequestRequest is the HTTP request body for POST /requests.
type CreateRequestRequest struct {
	PatientID     string `json:"patient_id"`
	BloodGroup    string `json:"blood_group"`
	UnitsRequired int    `json:"units_required"`

	parsedPatient id.PatientID
	parsedGroup   id.BloodGroup
}

func (r *CreateRequestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.PatientID = strings.TrimSpace(r.PatientID)
	if r.PatientID == "" {
		return dErrors.New(dErrors.CodeValidation, "patient_id is required")
	}
	patientID, err := id.ParsePatientID(r.PatientID)
	if err != nil {
		return err
	}
	r.parsedPatient = patientID

	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
	if r.BloodGroup == "" {
		return dErrors.New(dErrors.CodeValidation, "blood_group is required")
	}
	group, err := id.ParseBloodGroup(r.BloodGroup)
	if err != nil {
		return err
	}
	r.parsedGroup = group
	return nil
}

// ToInput converts the validated request to a service input.
func (r *CreateRequestRequest) ToInput() service.CreateRequestInput {
	return service.CreateRequestInput{
		PatientID:     r.parsedPatient,
		Group:         r.parsedGroup,
		UnitsRequired: r.UnitsRequired,
	}
}
