package activity

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrInvalidActivityWindow = errors.New("activity window is invalid")
	ErrEmptyActivityID       = errors.New("activity ID cannot be empty")
	ErrEmptyName             = errors.New("activity name cannot be empty")
)

// Activity represents a schedulable entity that attendees register against.
// It is immutable for the lifetime of a loaded view; the panel refreshes it
// wholesale from the upstream API on reload.
type Activity struct {
	ID              string
	Name            string
	Type            string
	Start           time.Time // first instant of the activity
	End             time.Time // last instant of the activity
	Capacity        *int      // nil means unlimited
	RegisteredCount int

	// Registration window boundaries. Either may be nil: a nil start means
	// registration has no opening gate, a nil deadline falls back to the
	// activity start (registration closes when the activity begins).
	RegistrationStart    *time.Time
	RegistrationDeadline *time.Time
}

// Validate checks if the Activity has valid data.
// PRE: Activity struct is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: Start and End must be set; End's calendar date must not precede Start's
func (a *Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyActivityID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return ErrInvalidActivityWindow
	}
	// End-of-day earlier than start-of-day is legal (the daily window is
	// taken literally), so only the calendar dates are ordered here.
	if a.EndDate().Before(a.StartDate()) {
		return ErrInvalidActivityWindow
	}
	return nil
}

// StartDate returns midnight of the activity's first calendar day.
func (a *Activity) StartDate() time.Time {
	return midnight(a.Start, a.Start.Location())
}

// EndDate returns midnight of the activity's last calendar day,
// computed in the activity's own timezone.
func (a *Activity) EndDate() time.Time {
	return midnight(a.End.In(a.Start.Location()), a.Start.Location())
}

// DayCount returns the inclusive count of calendar dates the activity spans.
// PRE: Validate passed
// POST: Returns at least 1
func (a *Activity) DayCount() int {
	days := int(a.EndDate().Sub(a.StartDate()).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Window returns the registration window boundaries used for phase
// derivation. A nil deadline falls back to the activity start.
func (a *Activity) Window() (start, deadline *time.Time) {
	start = a.RegistrationStart
	deadline = a.RegistrationDeadline
	if deadline == nil && !a.Start.IsZero() {
		s := a.Start
		deadline = &s
	}
	return start, deadline
}

// IsFull returns true if the activity has reached its capacity.
// PRE: RegisteredCount is current
// POST: Returns false for unlimited-capacity activities
func (a *Activity) IsFull() bool {
	return a.Capacity != nil && a.RegisteredCount >= *a.Capacity
}

func midnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
