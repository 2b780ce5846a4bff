package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/platform/tx"
)

// PostgresStore persists blood requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if ambient, ok := tx.From(ctx); ok {
		return ambient
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, req *models.BloodRequest) error {
	query := `
		INSERT INTO blood_requests (id, patient_id, requested_group, units_required, status, requested_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), uuid.UUID(req.PatientID), req.RequestedGroup.String(),
		req.UnitsRequired, string(req.Status), req.RequestedAt, nullTime(req.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectRequest+` WHERE id = $1`, uuid.UUID(requestID))
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.BloodRequest, error) {
	return s.queryRequests(ctx, selectRequest+` WHERE patient_id = $1 ORDER BY requested_at DESC`, uuid.UUID(patientID))
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.BloodRequest, error) {
	return s.queryRequests(ctx, selectRequest+` ORDER BY requested_at DESC`)
}

// Execute locks the request row with FOR UPDATE, runs validate, applies
// mutate, and writes the row back. Run inside the allocator's transaction so
// the decision and the unit flips commit or roll back together.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	q := s.q(ctx)

	row := q.QueryRowContext(ctx, selectRequest+` WHERE id = $1 FOR UPDATE`, uuid.UUID(requestID))
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	priorStatus := req.Status
	mutate(req)

	// The status guard keeps a stale read from overwriting a decision that
	// committed between our read and this write, which can happen when Execute
	// runs outside a transaction and the FOR UPDATE lock has already dropped.
	res, err := q.ExecContext(ctx,
		`UPDATE blood_requests SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4`,
		uuid.UUID(req.ID), string(req.Status), nullTime(req.DecidedAt), string(priorStatus),
	)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	return req, nil
}

const selectRequest = `
	SELECT id, patient_id, requested_group, units_required, status, requested_at, decided_at
	FROM blood_requests`

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.BloodRequest, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.BloodRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("query requests: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.BloodRequest, error) {
	var (
		req       models.BloodRequest
		requestID uuid.UUID
		patientID uuid.UUID
		group     string
		status    string
		decidedAt sql.NullTime
	)
	err := row.Scan(&requestID, &patientID, &group, &req.UnitsRequired, &status, &req.RequestedAt, &decidedAt)
	if err != nil {
		return nil, err
	}
	req.ID = id.RequestID(requestID)
	req.PatientID = id.PatientID(patientID)
	req.RequestedGroup = id.BloodGroup(group)
	req.Status = models.RequestStatus(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	return &req, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
