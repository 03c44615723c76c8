package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	audit "enrollment/pkg/platform/audit"
	"enrollment/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// Store implements audit.Store on the audit_logs table. Rows are only ever
// inserted; the BIGSERIAL id gives the store-assigned identity and the
// insertion order every listing follows.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit_logs table and its indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append inserts a record and returns it with the assigned id. Redelivered
// events are inserted again; there is no uniqueness constraint beyond the id.
func (s *Store) Append(ctx context.Context, record audit.Record) (audit.Record, error) {
	query := `
		INSERT INTO audit_logs (
			event_type, user_id, user_email, action, details,
			timestamp, status, entity_type, entity_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var userID sql.NullInt64
	if record.UserID != nil {
		userID = sql.NullInt64{Int64: *record.UserID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		string(record.EventType),
		userID,
		record.UserEmail,
		record.Action,
		record.Details,
		record.Timestamp,
		string(record.Status),
		string(record.EntityType),
		record.EntityID,
	).Scan(&record.ID)
	if err != nil {
		return audit.Record{}, wrapErr(err, "insert audit log")
	}
	return record, nil
}

const selectColumns = `
	SELECT id, event_type, user_id, user_email, action, details,
		   timestamp, status, entity_type, entity_id
	FROM audit_logs
`

// ListByEventType returns records of one event type.
func (s *Store) ListByEventType(ctx context.Context, eventType audit.EventType) ([]audit.Record, error) {
	return s.query(ctx, selectColumns+`WHERE event_type = $1 ORDER BY id`, string(eventType))
}

// ListByUserID returns records whose acting user had the given id.
func (s *Store) ListByUserID(ctx context.Context, userID int64) ([]audit.Record, error) {
	return s.query(ctx, selectColumns+`WHERE user_id = $1 ORDER BY id`, userID)
}

// ListByUserEmail returns records whose acting user had the given email.
func (s *Store) ListByUserEmail(ctx context.Context, email string) ([]audit.Record, error) {
	return s.query(ctx, selectColumns+`WHERE user_email = $1 ORDER BY id`, email)
}

// ListByTimeRange returns records with start <= timestamp <= end.
func (s *Store) ListByTimeRange(ctx context.Context, start, end time.Time) ([]audit.Record, error) {
	return s.query(ctx, selectColumns+`WHERE timestamp BETWEEN $1 AND $2 ORDER BY id`, start, end)
}

// ListAll returns all audit records (admin only).
func (s *Store) ListAll(ctx context.Context) ([]audit.Record, error) {
	return s.query(ctx, selectColumns+`ORDER BY id`)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "query audit logs")
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans multiple rows into an audit.Record slice.
func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	records := []audit.Record{}

	for rows.Next() {
		var (
			record     audit.Record
			userID     sql.NullInt64
			eventType  string
			status     string
			entityType string
		)

		err := rows.Scan(
			&record.ID,
			&eventType,
			&userID,
			&record.UserEmail,
			&record.Action,
			&record.Details,
			&record.Timestamp,
			&status,
			&entityType,
			&record.EntityID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}

		record.EventType = audit.EventType(eventType)
		record.Status = audit.Status(status)
		record.EntityType = audit.EntityType(entityType)
		if userID.Valid {
			uid := userID.Int64
			record.UserID = &uid
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}

	return records, nil
}

// wrapErr marks connection-level failures with sentinel.ErrUnavailable so
// callers can tell an outage from a bad statement.
func wrapErr(err error, op string) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
