package donor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"bloodbank/internal/bank/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/platform/tx"
)

// PostgresStore persists donors in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donor store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx so store methods join an
// ambient transaction when one is carried in the context.
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

// CreateIfPatientAvailable inserts the donor. The partial unique index on
// patient_id is the serialization point for the one-donor-per-patient rule;
// a violation surfaces as sentinel.ErrConflict.
func (s *PostgresStore) CreateIfPatientAvailable(ctx context.Context, donor *models.Donor) error {
	query := `
		INSERT INTO donors (id, name, phone, email, age, gender, blood_group, last_donation_date, patient_id, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(donor.ID), donor.Name, donor.Phone, donor.Email, donor.Age,
		donor.Gender, donor.BloodGroup.String(), nullTime(donor.LastDonationDate),
		nullPatient(donor.PatientID), donor.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectDonor+` WHERE id = $1`, uuid.UUID(donorID))
	return scanDonor(row, "find donor by id")
}

func (s *PostgresStore) FindByPatient(ctx context.Context, patientID id.PatientID) (*models.Donor, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectDonor+` WHERE patient_id = $1`, uuid.UUID(patientID))
	return scanDonor(row, "find donor by patient")
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Donor, error) {
	rows, err := s.q(ctx).QueryContext(ctx, selectDonor+` ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	defer rows.Close()

	var donors []*models.Donor
	for rows.Next() {
		donor, err := scanDonorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list donors: %w", err)
		}
		donors = append(donors, donor)
	}
	return donors, rows.Err()
}

// Update persists mutable donor fields (last donation date).
func (s *PostgresStore) Update(ctx context.Context, donor *models.Donor) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`UPDATE donors SET last_donation_date = $2, phone = $3, email = $4 WHERE id = $1`,
		uuid.UUID(donor.ID), nullTime(donor.LastDonationDate), donor.Phone, donor.Email,
	)
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectDonor = `
	SELECT id, name, phone, email, age, gender, blood_group, last_donation_date, patient_id, registered_at
	FROM donors`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row *sql.Row, op string) (*models.Donor, error) {
	donor, err := scanDonorRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return donor, nil
}

func scanDonorRow(row rowScanner) (*models.Donor, error) {
	var (
		donor        models.Donor
		donorID      uuid.UUID
		group        string
		lastDonation sql.NullTime
		patientID    uuid.NullUUID
	)
	err := row.Scan(&donorID, &donor.Name, &donor.Phone, &donor.Email, &donor.Age,
		&donor.Gender, &group, &lastDonation, &patientID, &donor.RegisteredAt)
	if err != nil {
		return nil, err
	}
	donor.ID = id.DonorID(donorID)
	donor.BloodGroup = id.BloodGroup(group)
	if lastDonation.Valid {
		t := lastDonation.Time
		donor.LastDonationDate = &t
	}
	if patientID.Valid {
		p := id.PatientID(patientID.UUID)
		donor.PatientID = &p
	}
	return &donor, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullPatient(p *id.PatientID) uuid.NullUUID {
	if p == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*p), Valid: true}
}

// isUniqueViolation detects Postgres unique constraint error 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
