package unit

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

// PostgresStore persists the blood unit ledger in PostgreSQL.
//
// Expiry stays a derived state here too: rows keep status AVAILABLE past
// their expires_at, and every availability predicate carries the caller's
// "now" so reads and allocations agree on what counts as expired.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed unit store.
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

func (s *PostgresStore) Create(ctx context.Context, unit *models.BloodUnit) error {
	query := `
		INSERT INTO blood_units (id, blood_group, donor_id, collected_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(unit.ID), unit.BloodGroup.String(), uuid.UUID(unit.DonorID),
		unit.CollectedAt, unit.ExpiresAt, string(unit.Status),
	)
	if err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectUnit+` WHERE id = $1`, uuid.UUID(unitID))
	unit, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find unit by id: %w", err)
	}
	return unit, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.BloodUnit, error) {
	return s.queryUnits(ctx, selectUnit+` ORDER BY collected_at`)
}

func (s *PostgresStore) ListByDonor(ctx context.Context, donorID id.DonorID) ([]*models.BloodUnit, error) {
	return s.queryUnits(ctx, selectUnit+` WHERE donor_id = $1 ORDER BY collected_at`, uuid.UUID(donorID))
}

func (s *PostgresStore) CountAvailable(ctx context.Context, group id.BloodGroup, now time.Time) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blood_units WHERE blood_group = $1 AND status = 'AVAILABLE' AND expires_at >= $2`,
		group.String(), now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count available units: %w", err)
	}
	return count, nil
}

// AllocateFEFO selects n allocatable units of the group, earliest expiry
// first, locks them with FOR UPDATE, re-validates the count, and flips them
// to USED. Run inside the allocator's transaction: the row locks are the
// per-group serialization point, and a short count rolls the whole
// transaction back with sentinel.ErrInsufficientStock.
func (s *PostgresStore) AllocateFEFO(ctx context.Context, group id.BloodGroup, n int, now time.Time) ([]*models.BloodUnit, error) {
	q := s.q(ctx)

	rows, err := q.QueryContext(ctx, selectUnit+`
		WHERE blood_group = $1 AND status = 'AVAILABLE' AND expires_at >= $2
		ORDER BY expires_at, id
		LIMIT $3
		FOR UPDATE`,
		group.String(), now, n,
	)
	if err != nil {
		return nil, fmt.Errorf("select units for allocation: %w", err)
	}
	selected, err := collectUnits(rows)
	if err != nil {
		return nil, fmt.Errorf("select units for allocation: %w", err)
	}
	if len(selected) < n {
		return nil, sentinel.ErrInsufficientStock
	}

	for _, unit := range selected {
		result, err := q.ExecContext(ctx,
			`UPDATE blood_units SET status = 'USED' WHERE id = $1 AND status = 'AVAILABLE'`,
			uuid.UUID(unit.ID),
		)
		if err != nil {
			return nil, fmt.Errorf("allocate unit: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("allocate unit: %w", err)
		}
		if affected == 0 {
			// Row changed under the lock; should not happen, but never
			// allocate fewer units than requested.
			return nil, sentinel.ErrInsufficientStock
		}
		unit.ApplyAllocation()
	}
	return selected, nil
}

const selectUnit = `
	SELECT id, blood_group, donor_id, collected_at, expires_at, status
	FROM blood_units`

func (s *PostgresStore) queryUnits(ctx context.Context, query string, args ...any) ([]*models.BloodUnit, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	return collectUnits(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectUnits(rows *sql.Rows) ([]*models.BloodUnit, error) {
	defer rows.Close()
	var units []*models.BloodUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func scanUnit(row rowScanner) (*models.BloodUnit, error) {
	var (
		unit    models.BloodUnit
		unitID  uuid.UUID
		donorID uuid.UUID
		group   string
		status  string
	)
	err := row.Scan(&unitID, &group, &donorID, &unit.CollectedAt, &unit.ExpiresAt, &status)
	if err != nil {
		return nil, err
	}
	unit.ID = id.UnitID(unitID)
	unit.DonorID = id.DonorID(donorID)
	unit.BloodGroup = id.BloodGroup(group)
	unit.Status = models.UnitStatus(status)
	return &unit, nil
}
