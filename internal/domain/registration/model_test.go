package registration_test

import (
	"errors"
	"testing"
	"time"

	"attendpanel/internal/domain/registration"
)

// TestRegistration_Validate tests validation of Registration.
func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		reg     registration.Registration
		wantErr error
	}{
		{
			name: "valid",
			reg:  registration.Registration{ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1", Status: registration.StatusRegistered},
		},
		{
			name:    "empty ID",
			reg:     registration.Registration{AttendeeID: "s-1", ActivityID: "a-1", Status: registration.StatusRegistered},
			wantErr: registration.ErrEmptyRegistrationID,
		},
		{
			name:    "empty attendee",
			reg:     registration.Registration{ID: "r-1", ActivityID: "a-1", Status: registration.StatusRegistered},
			wantErr: registration.ErrEmptyAttendeeID,
		},
		{
			name:    "empty activity",
			reg:     registration.Registration{ID: "r-1", AttendeeID: "s-1", Status: registration.StatusRegistered},
			wantErr: registration.ErrEmptyActivityID,
		},
		{
			name:    "bogus status",
			reg:     registration.Registration{ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1", Status: "maybe"},
			wantErr: registration.ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestRegistration_Clone verifies the snapshot is a value copy that cannot
// be corrupted by later in-place mutation.
func TestRegistration_Clone(t *testing.T) {
	confirmed := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	original := registration.Registration{
		ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1",
		Status: registration.StatusConfirmed, Attended: true, ConfirmedAt: &confirmed,
	}

	snapshot := original.Clone()

	original.Status = registration.StatusCancelled
	original.Attended = false
	*original.ConfirmedAt = confirmed.Add(48 * time.Hour)

	if snapshot.Status != registration.StatusConfirmed || !snapshot.Attended {
		t.Errorf("snapshot visible fields changed: %+v", snapshot)
	}
	if !snapshot.ConfirmedAt.Equal(confirmed) {
		t.Errorf("snapshot ConfirmedAt = %v, want %v", snapshot.ConfirmedAt, confirmed)
	}
}

// TestRegistration_ApplyConfirmation tests the derived fields for both
// toggle directions.
func TestRegistration_ApplyConfirmation(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 30, 0, 0, time.UTC)

	t.Run("checked", func(t *testing.T) {
		reg := registration.Registration{ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1", Status: registration.StatusRegistered}
		reg.ApplyConfirmation(true, now)
		if !reg.Attended || reg.Status != registration.StatusConfirmed {
			t.Errorf("after check: attended=%v status=%v", reg.Attended, reg.Status)
		}
		if reg.ConfirmedAt == nil || !reg.ConfirmedAt.Equal(now) {
			t.Errorf("ConfirmedAt = %v, want %v", reg.ConfirmedAt, now)
		}
	})

	t.Run("unchecked", func(t *testing.T) {
		confirmed := now.Add(-time.Hour)
		reg := registration.Registration{ID: "r-1", AttendeeID: "s-1", ActivityID: "a-1",
			Status: registration.StatusConfirmed, Attended: true, ConfirmedAt: &confirmed}
		reg.ApplyConfirmation(false, now)
		if reg.Attended || reg.Status != registration.StatusRegistered {
			t.Errorf("after uncheck: attended=%v status=%v", reg.Attended, reg.Status)
		}
		if reg.ConfirmedAt != nil {
			t.Errorf("ConfirmedAt = %v, want nil", reg.ConfirmedAt)
		}
	})
}
