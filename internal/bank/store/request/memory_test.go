package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) newRequest(patientID id.PatientID) *models.BloodRequest {
	return &models.BloodRequest{
		ID:             id.NewRequestID(),
		PatientID:      patientID,
		RequestedGroup: id.BloodGroupOPositive,
		UnitsRequired:  2,
		Status:         models.RequestStatusPending,
		RequestedAt:    s.now,
	}
}

func (s *RequestStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds request by ID", func() {
		req := s.newRequest(id.NewPatientID())
		s.Require().NoError(s.store.Create(s.ctx, req))

		found, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req.UnitsRequired, found.UnitsRequired)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewRequestID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("lists by patient", func() {
		patientID := id.NewPatientID()
		s.Require().NoError(s.store.Create(s.ctx, s.newRequest(patientID)))
		s.Require().NoError(s.store.Create(s.ctx, s.newRequest(patientID)))
		s.Require().NoError(s.store.Create(s.ctx, s.newRequest(id.NewPatientID())))

		reqs, err := s.store.ListByPatient(s.ctx, patientID)
		s.Require().NoError(err)
		s.Len(reqs, 2)
	})
}

func (s *RequestStoreSuite) TestExecute() {
	s.Run("persists the mutation after validate passes", func() {
		req := s.newRequest(id.NewPatientID())
		s.Require().NoError(s.store.Create(s.ctx, req))

		updated, err := s.store.Execute(s.ctx, req.ID,
			func(r *models.BloodRequest) error { return r.CanApprove() },
			func(r *models.BloodRequest) { r.ApplyApproval(s.now) },
		)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusApproved, updated.Status)

		stored, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusApproved, stored.Status)
	})

	s.Run("persists nothing when validate fails", func() {
		req := s.newRequest(id.NewPatientID())
		s.Require().NoError(s.store.Create(s.ctx, req))

		wantErr := errors.New("validation boom")
		_, err := s.store.Execute(s.ctx, req.ID,
			func(r *models.BloodRequest) error { return wantErr },
			func(r *models.BloodRequest) { r.ApplyApproval(s.now) },
		)
		s.Require().ErrorIs(err, wantErr)

		stored, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusPending, stored.Status)
		s.Nil(stored.DecidedAt)
	})

	s.Run("returns ErrNotFound for unknown request", func() {
		_, err := s.store.Execute(s.ctx, id.NewRequestID(),
			func(r *models.BloodRequest) error { return nil },
			func(r *models.BloodRequest) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
