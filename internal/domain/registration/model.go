package registration

import (
	"errors"
	"time"
)

// Status values for a registration's lifecycle.
const (
	StatusRegistered Status = "registered"
	StatusConfirmed  Status = "confirmed"
	StatusAttended   Status = "attended"
	StatusAbsent     Status = "absent"
	StatusCancelled  Status = "cancelled"
)

// Status is a registration lifecycle state.
type Status string

// ValidStatuses contains all valid status values.
var ValidStatuses = []Status{StatusRegistered, StatusConfirmed, StatusAttended, StatusAbsent, StatusCancelled}

// Domain errors
var (
	ErrEmptyRegistrationID = errors.New("registration ID cannot be empty")
	ErrEmptyAttendeeID     = errors.New("registration must reference an attendee")
	ErrEmptyActivityID     = errors.New("registration must reference an activity")
	ErrInvalidStatus       = errors.New("invalid registration status")
)

// Registration ties an attendee to an activity. Status moves only through
// explicit confirm/reject/cancel operations; the visible fields are never
// mutated except by a confirmed toggle outcome or a wholesale reload.
type Registration struct {
	ID          string     `json:"id"`
	AttendeeID  string     `json:"student_id"`
	ActivityID  string     `json:"activity_id"`
	Status      Status     `json:"status"`
	Attended    bool       `json:"attended"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Validate checks if the Registration has valid data.
// PRE: Registration struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Registration) Validate() error {
	if r.ID == "" {
		return ErrEmptyRegistrationID
	}
	if r.AttendeeID == "" {
		return ErrEmptyAttendeeID
	}
	if r.ActivityID == "" {
		return ErrEmptyActivityID
	}
	if !isValidStatus(r.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Clone returns a deep value copy, safe to keep as an undo snapshot while
// the original keeps being mutated in place.
func (r Registration) Clone() Registration {
	out := r
	if r.ConfirmedAt != nil {
		ts := *r.ConfirmedAt
		out.ConfirmedAt = &ts
	}
	return out
}

// ApplyConfirmation derives the fields a confirmed attendance toggle must
// have changed when the server response carries no updated record.
// PRE: the toggle request succeeded upstream
// POST: Attended mirrors checked; status and confirmation instant follow
func (r *Registration) ApplyConfirmation(checked bool, now time.Time) {
	r.Attended = checked
	if checked {
		r.Status = StatusConfirmed
		r.ConfirmedAt = &now
	} else {
		r.Status = StatusRegistered
		r.ConfirmedAt = nil
	}
}

func isValidStatus(s Status) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}
