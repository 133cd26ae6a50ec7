package audit

import (
	"context"
	"database/sql"
	"time"

	"attendpanel/internal/adapters/storage"
	domain "attendpanel/internal/domain/audit"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Record persists one audit event.
// PRE: event is valid
// POST: Event is persisted
func (s *SQLiteStore) Record(ctx context.Context, event domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (id, timestamp, category, action, outcome, record_id, activity_id, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.Format(dateLayout), string(event.Category), string(event.Action),
		string(event.Outcome), event.RecordID, event.ActivityID, event.Message)
	return err
}

// List returns audit events with optional filtering, newest first.
// PRE: limit > 0
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	query := `SELECT id, timestamp, category, action, outcome, record_id, activity_id, message FROM audit_event WHERE 1=1`
	args := []any{}

	if filter.Category != nil {
		query += " AND category = ?"
		args = append(args, string(*filter.Category))
	}
	if filter.Action != nil {
		query += " AND action = ?"
		args = append(args, string(*filter.Action))
	}
	if filter.Outcome != nil {
		query += " AND outcome = ?"
		args = append(args, string(*filter.Outcome))
	}
	if filter.RecordID != nil {
		query += " AND record_id = ?"
		args = append(args, *filter.RecordID)
	}

	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var timestamp string
		if err := rows.Scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Outcome, &e.RecordID, &e.ActivityID, &e.Message); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(dateLayout, timestamp)
		events = append(events, e)
	}
	return events, rows.Err()
}
