package window

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the registration-gating state derived from wall-clock time.
// It has no lifecycle of its own; it is recomputed on every tick.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseOpen    Phase = "open"
	PhaseClosed  Phase = "closed"
)

// Fixed terminal messages.
const (
	MessageOpen   = "Inscripción abierta"
	MessageClosed = "Inscripción cerrada"
)

// Status is the derived state of a registration window at one instant.
// NextRefresh is the delay until the displayed value could go stale;
// zero means the status is terminal and needs no further refresh.
type Status struct {
	Phase       Phase
	Message     string
	NextRefresh time.Duration
}

// Resolve derives the phase for `now` against the window boundaries.
// Either boundary may be nil.
// PRE: none
// POST: Pending iff start is set and now < start; Closed iff deadline is
// set and now >= deadline; Open otherwise
func Resolve(now time.Time, start, deadline *time.Time) Phase {
	if start != nil && now.Before(*start) {
		return PhasePending
	}
	if deadline != nil && !now.Before(*deadline) {
		return PhaseClosed
	}
	return PhaseOpen
}

// At computes the full window status for `now`: phase, localized
// remaining-time message and the adaptive refresh delay.
func At(now time.Time, start, deadline *time.Time) Status {
	switch phase := Resolve(now, start, deadline); phase {
	case PhasePending:
		remaining := start.Sub(now)
		return Status{
			Phase:       phase,
			Message:     "La inscripción abre en " + Humanize(remaining),
			NextRefresh: RefreshDelay(remaining),
		}
	case PhaseClosed:
		return Status{Phase: phase, Message: MessageClosed}
	default:
		if deadline == nil {
			return Status{Phase: PhaseOpen, Message: MessageOpen}
		}
		remaining := deadline.Sub(now)
		return Status{
			Phase:       PhaseOpen,
			Message:     "La inscripción cierra en " + Humanize(remaining),
			NextRefresh: RefreshDelay(remaining),
		}
	}
}

// RefreshDelay picks the recomputation cadence from the magnitude of the
// remaining duration, so the displayed value is never visibly stale while
// long countdowns refresh coarsely.
func RefreshDelay(remaining time.Duration) time.Duration {
	if remaining < 0 {
		remaining = -remaining
	}
	switch {
	case remaining < time.Minute:
		return time.Second
	case remaining < time.Hour:
		return 15 * time.Second
	case remaining < 24*time.Hour:
		return time.Minute
	case remaining < 7*24*time.Hour:
		return 5 * time.Minute
	case remaining < 30*24*time.Hour:
		return time.Hour
	default:
		return 6 * time.Hour
	}
}

// humanUnit is one decomposition step of a duration.
type humanUnit struct {
	span     time.Duration
	singular string
	plural   string
}

var humanUnits = []humanUnit{
	{365 * 24 * time.Hour, "año", "años"},
	{30 * 24 * time.Hour, "mes", "meses"},
	{7 * 24 * time.Hour, "semana", "semanas"},
	{24 * time.Hour, "día", "días"},
	{time.Hour, "hora", "horas"},
	{time.Minute, "minuto", "minutos"},
	{time.Second, "segundo", "segundos"},
}

// Humanize renders a duration as the largest two non-zero units in
// Spanish, e.g. "2 días y 3 horas". Falls back to seconds-only phrasing
// when every larger unit is zero.
func Humanize(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	var parts []string
	remainder := d
	for _, u := range humanUnits {
		if len(parts) == 2 {
			break
		}
		qty := remainder / u.span
		remainder -= qty * u.span
		if qty == 0 {
			continue
		}
		name := u.plural
		if qty == 1 {
			name = u.singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", qty, name))
	}

	if len(parts) == 0 {
		return "0 segundos"
	}
	return strings.Join(parts, " y ")
}
