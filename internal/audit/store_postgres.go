package audit

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "bloodbank/pkg/platform/tx"
)

// PostgresStore implements Store on the audit_events table, append-only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one event. Rows are never updated or deleted.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO audit_events (occurred_at, action, actor, subject, patient_id, blood_group, units, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.execer(ctx).ExecContext(ctx, q,
		event.Timestamp, string(event.Action), event.Actor, event.Subject,
		event.PatientID, event.BloodGroup, event.Units, event.Reason, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the audit trail for one entity in append order.
func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	const q = `
		SELECT occurred_at, action, actor, subject, patient_id, blood_group, units, reason, request_id
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at ASC, id ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, q, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event  Event
			action string
		)
		if err := rows.Scan(&event.Timestamp, &action, &event.Actor, &event.Subject,
			&event.PatientID, &event.BloodGroup, &event.Units, &event.Reason, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = Action(action)
		events = append(events, event)
	}
	return events, rows.Err()
}
