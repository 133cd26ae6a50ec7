package session_test

import (
	"errors"
	"testing"
	"time"

	"attendpanel/internal/domain/activity"
	"attendpanel/internal/domain/session"
)

func makeActivity(id string, start, end time.Time) activity.Activity {
	return activity.Activity{ID: id, Name: "Taller de prueba", Type: "taller", Start: start, End: end}
}

// TestExpand_SameDay tests that a same-day activity yields exactly one
// session carrying the activity's own window.
func TestExpand_SameDay(t *testing.T) {
	start := time.Date(2025, 9, 10, 8, 30, 0, 0, time.UTC)
	end := time.Date(2025, 9, 10, 10, 15, 0, 0, time.UTC)

	sessions, err := session.Expand(makeActivity("a-1", start, end))
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expand() returned %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Ordinal != 1 || s.Total != 1 {
		t.Errorf("Ordinal/Total = %d/%d, want 1/1", s.Ordinal, s.Total)
	}
	if !s.Start.Equal(start) || !s.End.Equal(end) {
		t.Errorf("session window = [%v, %v], want activity's own [%v, %v]", s.Start, s.End, start, end)
	}
}

// TestExpand_MultiDay covers the three-day scenario: start 2025-09-10T08:00,
// end 2025-09-12T10:00 yields sessions on the 10th, 11th and 12th, each
// with the 08:00-10:00 daily window.
func TestExpand_MultiDay(t *testing.T) {
	start := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)

	sessions, err := session.Expand(makeActivity("a-2", start, end))
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expand() returned %d sessions, want 3", len(sessions))
	}
	for i, s := range sessions {
		if s.Ordinal != i+1 {
			t.Errorf("sessions[%d].Ordinal = %d, want %d", i, s.Ordinal, i+1)
		}
		if s.Total != 3 {
			t.Errorf("sessions[%d].Total = %d, want 3", i, s.Total)
		}
		wantDay := 10 + i
		if s.Start.Day() != wantDay || s.End.Day() != wantDay {
			t.Errorf("sessions[%d] falls on day %d/%d, want %d", i, s.Start.Day(), s.End.Day(), wantDay)
		}
		if s.Start.Hour() != 8 || s.Start.Minute() != 0 {
			t.Errorf("sessions[%d].Start time-of-day = %02d:%02d, want 08:00", i, s.Start.Hour(), s.Start.Minute())
		}
		if s.End.Hour() != 10 || s.End.Minute() != 0 {
			t.Errorf("sessions[%d].End time-of-day = %02d:%02d, want 10:00", i, s.End.Hour(), s.End.Minute())
		}
	}
}

// TestExpand_DayCount verifies the session count equals the inclusive
// calendar day count for a range of spans.
func TestExpand_DayCount(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{
			name:  "two days crossing midnight barely",
			start: time.Date(2025, 1, 31, 23, 50, 0, 0, time.UTC),
			end:   time.Date(2025, 2, 1, 0, 10, 0, 0, time.UTC),
			want:  2,
		},
		{
			name:  "ten days",
			start: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 9, 10, 17, 0, 0, 0, time.UTC),
			want:  10,
		},
		{
			name:  "across a month boundary",
			start: time.Date(2025, 4, 28, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 5, 2, 17, 0, 0, 0, time.UTC),
			want:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := makeActivity("a", tt.start, tt.end)
			sessions, err := session.Expand(act)
			if err != nil {
				t.Fatalf("Expand() error = %v", err)
			}
			if len(sessions) != tt.want {
				t.Errorf("len(sessions) = %d, want %d", len(sessions), tt.want)
			}
			if act.DayCount() != tt.want {
				t.Errorf("DayCount() = %d, want %d", act.DayCount(), tt.want)
			}
			if len(sessions) > 0 && sessions[len(sessions)-1].Total != tt.want {
				t.Errorf("Total = %d, want %d", sessions[len(sessions)-1].Total, tt.want)
			}
		})
	}
}

// TestExpand_WindowIdentity checks that every session of a multi-day
// activity carries the same time-of-day window as the activity itself.
func TestExpand_WindowIdentity(t *testing.T) {
	start := time.Date(2025, 9, 8, 18, 45, 0, 0, time.UTC)
	end := time.Date(2025, 9, 14, 20, 30, 0, 0, time.UTC)

	sessions, err := session.Expand(makeActivity("a-3", start, end))
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	for i, s := range sessions {
		if s.Start.Hour() != start.Hour() || s.Start.Minute() != start.Minute() {
			t.Errorf("sessions[%d].Start time-of-day = %02d:%02d, want %02d:%02d",
				i, s.Start.Hour(), s.Start.Minute(), start.Hour(), start.Minute())
		}
		if s.End.Hour() != end.Hour() || s.End.Minute() != end.Minute() {
			t.Errorf("sessions[%d].End time-of-day = %02d:%02d, want %02d:%02d",
				i, s.End.Hour(), s.End.Minute(), end.Hour(), end.Minute())
		}
	}
}

// TestExpand_InvertedDailyWindow: an end time-of-day earlier than the start
// time-of-day is replicated literally, not special-cased.
func TestExpand_InvertedDailyWindow(t *testing.T) {
	start := time.Date(2025, 9, 10, 22, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 12, 6, 0, 0, 0, time.UTC)

	sessions, err := session.Expand(makeActivity("a-4", start, end))
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("len(sessions) = %d, want 3", len(sessions))
	}
	for i, s := range sessions {
		if !s.End.Before(s.Start) {
			t.Errorf("sessions[%d] window not inverted: [%v, %v]", i, s.Start, s.End)
		}
		if s.Start.Hour() != 22 || s.End.Hour() != 6 {
			t.Errorf("sessions[%d] hours = %d-%d, want 22-6", i, s.Start.Hour(), s.End.Hour())
		}
	}
}

// TestExpand_InvalidWindow verifies malformed inputs fail with
// ErrInvalidActivityWindow and produce no sessions.
func TestExpand_InvalidWindow(t *testing.T) {
	valid := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		act  activity.Activity
	}{
		{"zero start", makeActivity("a", time.Time{}, valid)},
		{"zero end", makeActivity("a", valid, time.Time{})},
		{"end date before start date", makeActivity("a", valid.AddDate(0, 0, 3), valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := session.Expand(tt.act)
			if !errors.Is(err, activity.ErrInvalidActivityWindow) {
				t.Errorf("Expand() error = %v, want ErrInvalidActivityWindow", err)
			}
			if sessions != nil {
				t.Errorf("Expand() returned sessions on invalid input")
			}
		})
	}
}
