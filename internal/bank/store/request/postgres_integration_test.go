//go:build integration

package request_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodbank/internal/bank/models"
	"bloodbank/internal/bank/store/request"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/platform/tx"
	"bloodbank/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *request.PostgresStore
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
	s.store = request.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "blood_requests"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newPending() *models.BloodRequest {
	req := &models.BloodRequest{
		ID:             id.NewRequestID(),
		PatientID:      id.NewPatientID(),
		RequestedGroup: id.BloodGroupOPositive,
		UnitsRequired:  2,
		Status:         models.RequestStatusPending,
		RequestedAt:    s.now,
	}
	s.Require().NoError(s.store.Create(context.Background(), req))
	return req
}

// executeInTx mirrors the allocator: Execute always runs inside a SQL
// transaction carried on the context, which is what makes the FOR UPDATE
// lock span validation and mutation.
func (s *PostgresStoreSuite) executeInTx(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	req, err := s.store.Execute(tx.WithTx(ctx, sqlTx), requestID, validate, mutate)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	req := s.newPending()

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.PatientID, found.PatientID)
	s.Equal(models.RequestStatusPending, found.Status)
	s.Nil(found.DecidedAt)

	_, err = s.store.FindByID(ctx, id.NewRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecutePersistsDecision() {
	ctx := context.Background()
	req := s.newPending()

	updated, err := s.executeInTx(ctx, req.ID,
		func(r *models.BloodRequest) error { return r.CanApprove() },
		func(r *models.BloodRequest) { r.ApplyApproval(s.now) },
	)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, updated.Status)
	s.Require().NotNil(updated.DecidedAt)

	stored, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, stored.Status)
}

// TestStaleReadCannotOverwriteDecision covers Execute running without an
// ambient transaction: the FOR UPDATE lock drops as soon as the autocommit
// select returns, so a decision can commit between the read and the write-back.
// The guarded UPDATE must then refuse to flip the row and report a conflict.
func (s *PostgresStoreSuite) TestStaleReadCannotOverwriteDecision() {
	ctx := context.Background()
	req := s.newPending()

	readDone := make(chan struct{})
	release := make(chan struct{})
	errCh := make(chan error, 1)

	go func() {
		_, err := s.store.Execute(ctx, req.ID,
			func(r *models.BloodRequest) error {
				close(readDone)
				<-release
				return r.CanReject()
			},
			func(r *models.BloodRequest) { r.ApplyRejection(s.now) },
		)
		errCh <- err
	}()

	<-readDone
	_, err := s.executeInTx(ctx, req.ID,
		func(r *models.BloodRequest) error { return r.CanApprove() },
		func(r *models.BloodRequest) { r.ApplyApproval(s.now) },
	)
	s.Require().NoError(err)
	close(release)

	s.Require().ErrorIs(<-errCh, sentinel.ErrConflict)

	stored, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, stored.Status)
}

// TestConcurrentDecisions verifies the FOR UPDATE row lock makes the decision
// single-shot: one approval wins; the rest see an already-decided request.
func (s *PostgresStoreSuite) TestConcurrentDecisions() {
	ctx := context.Background()
	req := s.newPending()
	const goroutines = 10

	var wg sync.WaitGroup
	var wins, rejections atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.executeInTx(ctx, req.ID,
				func(r *models.BloodRequest) error { return r.CanApprove() },
				func(r *models.BloodRequest) { r.ApplyApproval(s.now) },
			)
			if err == nil {
				wins.Add(1)
			} else {
				rejections.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), rejections.Load())
}
