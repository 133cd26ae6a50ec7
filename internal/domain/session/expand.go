package session

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"attendpanel/internal/domain/activity"
)

// Session is one daily occurrence of an Activity. Sessions are derived on
// every load and never persisted or mutated independently.
type Session struct {
	ActivityID string
	Date       time.Time // midnight of the occurrence day, activity timezone
	Start      time.Time // occurrence day + activity start time-of-day
	End        time.Time // occurrence day + activity end time-of-day
	Ordinal    int       // 1-based position within the series
	Total      int       // inclusive day count of the series
}

// Expand produces the ordered daily occurrence sessions for an activity.
// A multi-day activity is modeled as a daily recurrence at a fixed time:
// the activity's start/end time-of-day is replicated on every calendar date
// in the range, first and last day included. A same-day activity yields a
// single session carrying the activity's own window verbatim.
// PRE: a carries timezone-aware start/end instants
// POST: Returns sessions with 1 <= Ordinal <= Total; Total equals the
// inclusive day count
func Expand(a activity.Activity) ([]Session, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	startDate := a.StartDate()
	endDate := a.EndDate()

	if startDate.Equal(endDate) {
		return []Session{{
			ActivityID: a.ID,
			Date:       startDate,
			Start:      a.Start,
			End:        a.End,
			Ordinal:    1,
			Total:      1,
		}}, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: startDate,
		Until:   endDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", activity.ErrInvalidActivityWindow, err)
	}

	loc := a.Start.Location()
	endLocal := a.End.In(loc)

	days := rule.All()
	sessions := make([]Session, 0, len(days))
	for i, day := range days {
		sessions = append(sessions, Session{
			ActivityID: a.ID,
			Date:       day,
			Start:      atTimeOfDay(day, a.Start, loc),
			End:        atTimeOfDay(day, endLocal, loc),
			Ordinal:    i + 1,
			Total:      len(days),
		})
	}
	return sessions, nil
}

// atTimeOfDay combines a calendar date with the hour and minute of a
// reference instant.
func atTimeOfDay(day, ref time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), ref.Hour(), ref.Minute(), 0, 0, loc)
}
