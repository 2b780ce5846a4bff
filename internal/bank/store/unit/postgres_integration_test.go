//go:build integration

package unit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodbank/internal/bank/models"
	"bloodbank/internal/bank/store/donor"
	"bloodbank/internal/bank/store/unit"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/platform/tx"
	"bloodbank/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *unit.PostgresStore
	donors   *donor.PostgresStore
	donorID  id.DonorID
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = unit.NewPostgres(s.postgres.DB)
	s.donors = donor.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "blood_requests", "blood_units", "donors"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)

	d := &models.Donor{
		ID:           id.NewDonorID(),
		Name:         "Asha Rao",
		Phone:        "+14155550123",
		Age:          31,
		BloodGroup:   id.BloodGroupOPositive,
		RegisteredAt: s.now,
	}
	s.Require().NoError(s.donors.CreateIfPatientAvailable(ctx, d))
	s.donorID = d.ID
}

func (s *PostgresStoreSuite) seed(group id.BloodGroup, expiresAt time.Time) *models.BloodUnit {
	u := &models.BloodUnit{
		ID:          id.NewUnitID(),
		BloodGroup:  group,
		DonorID:     s.donorID,
		CollectedAt: s.now,
		ExpiresAt:   expiresAt,
		Status:      models.UnitStatusAvailable,
	}
	s.Require().NoError(s.store.Create(context.Background(), u))
	return u
}

// allocateInTx mirrors the allocator: AllocateFEFO always runs inside a SQL
// transaction carried on the context.
func (s *PostgresStoreSuite) allocateInTx(ctx context.Context, group id.BloodGroup, n int) ([]*models.BloodUnit, error) {
	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	allocated, err := s.store.AllocateFEFO(tx.WithTx(ctx, sqlTx), group, n, s.now)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return allocated, nil
}

func (s *PostgresStoreSuite) TestFEFOOrdering() {
	ctx := context.Background()
	day := 24 * time.Hour

	s.seed(id.BloodGroupOPositive, s.now.Add(10*day))
	s.seed(id.BloodGroupOPositive, s.now.Add(20*day))
	soonest := s.seed(id.BloodGroupOPositive, s.now.Add(5*day))
	s.seed(id.BloodGroupOPositive, s.now.Add(30*day))
	s.seed(id.BloodGroupOPositive, s.now.Add(15*day))

	allocated, err := s.allocateInTx(ctx, id.BloodGroupOPositive, 2)
	s.Require().NoError(err)
	s.Require().Len(allocated, 2)
	s.Equal(soonest.ID, allocated[0].ID)
	s.True(allocated[1].ExpiresAt.Equal(s.now.Add(10 * day)))

	count, err := s.store.CountAvailable(ctx, id.BloodGroupOPositive, s.now)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *PostgresStoreSuite) TestInsufficientStockLeavesRowsUntouched() {
	ctx := context.Background()
	s.seed(id.BloodGroupOPositive, s.now.Add(24*time.Hour))
	s.seed(id.BloodGroupOPositive, s.now.Add(-time.Hour)) // expired

	_, err := s.allocateInTx(ctx, id.BloodGroupOPositive, 2)
	s.Require().ErrorIs(err, sentinel.ErrInsufficientStock)

	count, err := s.store.CountAvailable(ctx, id.BloodGroupOPositive, s.now)
	s.Require().NoError(err)
	s.Equal(1, count)
}

// TestConcurrentAllocation verifies that parallel allocations never
// oversubscribe the stock and never flip a partial batch: with 5 units and
// 10 two-unit allocations, at most two can win, and remaining stock accounts
// exactly for the winners. Losers blocked on contended row locks may come up
// short even while stock remains; that is an accepted cost of the FOR UPDATE
// scheme.
func (s *PostgresStoreSuite) TestConcurrentAllocation() {
	ctx := context.Background()
	day := 24 * time.Hour
	for i := 0; i < 5; i++ {
		s.seed(id.BloodGroupOPositive, s.now.Add(time.Duration(i+1)*day))
	}

	const attempts = 10
	var wg sync.WaitGroup
	var wins, shortfalls atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.allocateInTx(ctx, id.BloodGroupOPositive, 2)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInsufficientStock):
				shortfalls.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(attempts), wins.Load()+shortfalls.Load())
	s.GreaterOrEqual(wins.Load(), int32(1))
	s.LessOrEqual(wins.Load(), int32(2))

	count, err := s.store.CountAvailable(ctx, id.BloodGroupOPositive, s.now)
	s.Require().NoError(err)
	s.Equal(5-2*int(wins.Load()), count)
}
