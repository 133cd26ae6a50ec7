package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category represents the subsystem an audit event belongs to.
type Category string

const (
	CategoryAttendance Category = "attendance"
	CategoryDeletion   Category = "deletion"
	CategorySystem     Category = "system"
)

// Action represents what happened.
type Action string

const (
	ActionConfirm      Action = "confirm"
	ActionUnconfirm    Action = "unconfirm"
	ActionDeleteCommit Action = "delete_commit"
	ActionDeleteCancel Action = "delete_cancel"
	ActionReload       Action = "reload"
)

// Outcome records how the operation terminated.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeRejected     Outcome = "rejected"
	OutcomeNetworkError Outcome = "network_error"
)

// Event is a single audit trail entry. Every terminal outcome of a toggle
// or deletion produces exactly one event.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Category   Category  `json:"category"`
	Action     Action    `json:"action"`
	Outcome    Outcome   `json:"outcome"`
	RecordID   string    `json:"record_id"`
	ActivityID string    `json:"activity_id"`
	Message    string    `json:"message"`
}

// NewEvent creates an audit event stamped with the given instant.
// PRE: category and action are non-empty
// POST: Returns an Event with a fresh ID
func NewEvent(now time.Time, category Category, action Action, outcome Outcome) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		Category:  category,
		Action:    action,
		Outcome:   outcome,
	}
}

// WithRecord sets the record and activity references.
// PRE: recordID is non-empty
// POST: Event resource fields are populated
func (e Event) WithRecord(recordID, activityID string) Event {
	e.RecordID = recordID
	e.ActivityID = activityID
	return e
}

// WithMessage sets the human-readable outcome message.
// PRE: msg is non-empty
// POST: Event message is set
func (e Event) WithMessage(msg string) Event {
	e.Message = msg
	return e
}
