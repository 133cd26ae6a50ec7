package audit

import (
	"context"

	domain "attendpanel/internal/domain/audit"
)

// Store persists audit events.
type Store interface {
	// Record persists one audit event.
	// PRE: event is valid
	// POST: Event is persisted
	Record(ctx context.Context, event domain.Event) error

	// List returns audit events with optional filtering, newest first.
	// PRE: limit > 0
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter defines query parameters for listing audit events.
type Filter struct {
	Category *domain.Category
	Action   *domain.Action
	Outcome  *domain.Outcome
	RecordID *string
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
