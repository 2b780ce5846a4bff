package service

import (
	"context"
	"errors"

	"bloodbank/internal/audit"
	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

// DonorService manages the donor registry.
type DonorService struct {
	donors DonorStore
	cfg    *serviceConfig
}

func NewDonorService(donors DonorStore, opts ...Option) *DonorService {
	return &DonorService{
		donors: donors,
		cfg:    newServiceConfig(opts...),
	}
}

// RegisterDonorInput carries parsed registration fields. The handler parses
// the blood group and ids before the service sees them.
type RegisterDonorInput struct {
	Name       string
	Phone      string
	Email      string
	Age        int
	Gender     string
	BloodGroup id.BloodGroup
	PatientID  *id.PatientID
}

// RegisterDonor creates a donor. Fails CodeValidation on age/phone/name
// violations and CodeConflict when the referenced patient already has a
// registered donor. Donors are permanent records; there is no delete.
func (s *DonorService) RegisterDonor(ctx context.Context, input RegisterDonorInput) (*models.Donor, error) {
	donor, err := models.NewDonor(
		id.NewDonorID(), input.Name, input.Phone, input.Email,
		input.Age, input.Gender, input.BloodGroup, input.PatientID,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.donors.CreateIfPatientAvailable(ctx, donor); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "patient already has a registered donor")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register donor")
	}

	s.cfg.emit(ctx, audit.Event{
		Action:     audit.ActionDonorRegistered,
		Actor:      requestcontext.Actor(ctx),
		Subject:    donor.ID.String(),
		BloodGroup: donor.BloodGroup.String(),
		RequestID:  requestcontext.RequestID(ctx),
	})
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncrementDonorsRegistered()
	}
	return donor, nil
}

// GetDonor retrieves a donor by id.
func (s *DonorService) GetDonor(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "donor id is required")
	}
	donor, err := s.donors.FindByID(ctx, donorID)
	if err != nil {
		return nil, wrapStoreErr(err, "donor not found")
	}
	return donor, nil
}

// GetDonorByPatient retrieves the donor linked to a patient, if any.
func (s *DonorService) GetDonorByPatient(ctx context.Context, patientID id.PatientID) (*models.Donor, error) {
	if patientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "patient id is required")
	}
	donor, err := s.donors.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, wrapStoreErr(err, "no donor registered for patient")
	}
	return donor, nil
}

// ListDonors returns all donors. Order is unspecified; consumers re-sort as
// needed.
func (s *DonorService) ListDonors(ctx context.Context) ([]*models.Donor, error) {
	donors, err := s.donors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list donors")
	}
	return donors, nil
}
