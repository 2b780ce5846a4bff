package donor

import (
	"context"
	"sync"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

// InMemory keeps donors in process memory. It favors clarity over
// performance and is the store used by unit tests and single-node runs.
//
// Donors are stored by value; lookups return copies so callers can never
// mutate shared state behind the store's lock.
type InMemory struct {
	mu        sync.RWMutex
	donors    map[id.DonorID]models.Donor
	byPatient map[id.PatientID]id.DonorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		donors:    make(map[id.DonorID]models.Donor),
		byPatient: make(map[id.PatientID]id.DonorID),
	}
}

// CreateIfPatientAvailable inserts the donor, enforcing the one-donor-per-
// patient constraint under the store lock. Returns sentinel.ErrConflict when
// the referenced patient already has a donor.
func (s *InMemory) CreateIfPatientAvailable(_ context.Context, donor *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if donor.PatientID != nil {
		if _, taken := s.byPatient[*donor.PatientID]; taken {
			return sentinel.ErrConflict
		}
	}
	if _, exists := s.donors[donor.ID]; exists {
		return sentinel.ErrConflict
	}

	s.donors[donor.ID] = *donor
	if donor.PatientID != nil {
		s.byPatient[*donor.PatientID] = donor.ID
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, donorID id.DonorID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if donor, ok := s.donors[donorID]; ok {
		return &donor, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByPatient(_ context.Context, patientID id.PatientID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donorID, ok := s.byPatient[patientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	donor := s.donors[donorID]
	return &donor, nil
}

// List returns all donors. Order is unspecified; consumers re-sort as needed.
func (s *InMemory) List(_ context.Context) ([]*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donors := make([]*models.Donor, 0, len(s.donors))
	for _, donor := range s.donors {
		d := donor
		donors = append(donors, &d)
	}
	return donors, nil
}

// Update persists donor field changes (last donation date). The patient link
// and blood group are registration-time facts and are not re-indexed here.
func (s *InMemory) Update(_ context.Context, donor *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.donors[donor.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.donors[donor.ID] = *donor
	return nil
}
