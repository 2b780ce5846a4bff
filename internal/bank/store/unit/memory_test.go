package unit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

type UnitStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *UnitStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestUnitStoreSuite(t *testing.T) {
	suite.Run(t, new(UnitStoreSuite))
}

func (s *UnitStoreSuite) newUnit(group id.BloodGroup, expiresAt time.Time) *models.BloodUnit {
	return &models.BloodUnit{
		ID:          id.NewUnitID(),
		BloodGroup:  group,
		DonorID:     id.NewDonorID(),
		CollectedAt: s.now,
		ExpiresAt:   expiresAt,
		Status:      models.UnitStatusAvailable,
	}
}

func (s *UnitStoreSuite) seed(group id.BloodGroup, expiresAt time.Time) *models.BloodUnit {
	unit := s.newUnit(group, expiresAt)
	s.Require().NoError(s.store.Create(s.ctx, unit))
	return unit
}

func (s *UnitStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds unit by ID", func() {
		unit := s.seed(id.BloodGroupOPositive, s.now.Add(24*time.Hour))

		found, err := s.store.FindByID(s.ctx, unit.ID)
		s.Require().NoError(err)
		s.Equal(unit.BloodGroup, found.BloodGroup)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUnitID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UnitStoreSuite) TestCountAvailable() {
	day := 24 * time.Hour
	s.seed(id.BloodGroupOPositive, s.now.Add(day))
	s.seed(id.BloodGroupOPositive, s.now.Add(2*day))
	s.seed(id.BloodGroupOPositive, s.now.Add(-time.Hour)) // expired
	s.seed(id.BloodGroupANegative, s.now.Add(day))        // other group

	s.seed(id.BloodGroupOPositive, s.now.Add(day))
	_, err := s.store.AllocateFEFO(s.ctx, id.BloodGroupOPositive, 3, s.now)
	s.Require().NoError(err)

	count, err := s.store.CountAvailable(s.ctx, id.BloodGroupOPositive, s.now)
	s.Require().NoError(err)
	s.Equal(0, count)

	count, err = s.store.CountAvailable(s.ctx, id.BloodGroupANegative, s.now)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *UnitStoreSuite) TestAllocateFEFO() {
	day := 24 * time.Hour

	s.Run("picks soonest expiries across insertion order", func() {
		s.seed(id.BloodGroupBPositive, s.now.Add(10*day))
		s.seed(id.BloodGroupBPositive, s.now.Add(20*day))
		soonest := s.seed(id.BloodGroupBPositive, s.now.Add(5*day))
		s.seed(id.BloodGroupBPositive, s.now.Add(30*day))
		s.seed(id.BloodGroupBPositive, s.now.Add(15*day))

		allocated, err := s.store.AllocateFEFO(s.ctx, id.BloodGroupBPositive, 2, s.now)
		s.Require().NoError(err)
		s.Require().Len(allocated, 2)
		s.Equal(soonest.ID, allocated[0].ID)
		s.Equal(s.now.Add(10*day), allocated[1].ExpiresAt)
		for _, u := range allocated {
			s.Equal(models.UnitStatusUsed, u.Status)
		}
	})

	s.Run("ties on expiry break deterministically by id", func() {
		expiry := s.now.Add(4 * day)
		a := s.seed(id.BloodGroupABPositive, expiry)
		b := s.seed(id.BloodGroupABPositive, expiry)
		c := s.seed(id.BloodGroupABPositive, expiry)

		want := a.ID.String()
		for _, other := range []string{b.ID.String(), c.ID.String()} {
			if other < want {
				want = other
			}
		}

		allocated, err := s.store.AllocateFEFO(s.ctx, id.BloodGroupABPositive, 1, s.now)
		s.Require().NoError(err)
		s.Require().Len(allocated, 1)
		s.Equal(want, allocated[0].ID.String())
	})

	s.Run("all-or-nothing when stock is short", func() {
		s.seed(id.BloodGroupABNegative, s.now.Add(day))

		_, err := s.store.AllocateFEFO(s.ctx, id.BloodGroupABNegative, 2, s.now)
		s.Require().ErrorIs(err, sentinel.ErrInsufficientStock)

		count, err := s.store.CountAvailable(s.ctx, id.BloodGroupABNegative, s.now)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("expired units are not candidates", func() {
		s.seed(id.BloodGroupONegative, s.now.Add(-day))

		_, err := s.store.AllocateFEFO(s.ctx, id.BloodGroupONegative, 1, s.now)
		s.Require().ErrorIs(err, sentinel.ErrInsufficientStock)
	})
}

func (s *UnitStoreSuite) TestListByDonor() {
	donorID := id.NewDonorID()
	first := s.newUnit(id.BloodGroupOPositive, s.now.Add(24*time.Hour))
	first.DonorID = donorID
	first.CollectedAt = s.now.Add(-time.Hour)
	second := s.newUnit(id.BloodGroupOPositive, s.now.Add(48*time.Hour))
	second.DonorID = donorID
	second.CollectedAt = s.now

	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.seed(id.BloodGroupOPositive, s.now.Add(24*time.Hour)) // other donor

	units, err := s.store.ListByDonor(s.ctx, donorID)
	s.Require().NoError(err)
	s.Require().Len(units, 2)
	s.Equal(first.ID, units[0].ID) // oldest collection first
	s.Equal(second.ID, units[1].ID)
}
