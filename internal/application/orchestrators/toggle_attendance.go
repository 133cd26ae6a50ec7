package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attendpanel/internal/adapters/api"
	"attendpanel/internal/application/listview"
	"attendpanel/internal/domain/audit"
	"attendpanel/internal/domain/registration"
	"attendpanel/internal/domain/window"
)

// Guard-level errors. These are resolved before any network call and
// leave the record untouched.
var (
	ErrWindowNotOpen    = errors.New("registration window is not open")
	ErrToggleInProgress = errors.New("a toggle is already in flight for this record")
	ErrRecordNotVisible = errors.New("record is not in the visible collection")
)

// ToggleAPI is the upstream primitive needed for attendance toggling.
type ToggleAPI interface {
	ConfirmAttendance(ctx context.Context, req api.ConfirmRequest) (*registration.Registration, error)
}

// AuditRecorder persists one audit event per terminal outcome.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// ToggleAttendanceInput carries input for the toggle orchestrator.
type ToggleAttendanceInput struct {
	RecordID string
	Checked  bool
}

// ToggleAttendanceDeps holds dependencies for ExecuteToggleAttendance.
type ToggleAttendanceDeps struct {
	View  *listview.View
	API   ToggleAPI
	Guard *InFlightGuard
	Phase func() window.Phase // current registration window phase
	Audit AuditRecorder       // optional
	Now   func() time.Time    // injectable for testing

	// RequestRefresh, when set, is invoked after every network attempt so
	// the caller can schedule a short-delayed wholesale reload.
	RequestRefresh func()
}

// ToggleAttendanceResult reports a confirmed toggle.
type ToggleAttendanceResult struct {
	Record  registration.Registration
	Message string
}

// ExecuteToggleAttendance confirms or unconfirms a record's attendance.
// The visible fields keep showing the previous committed state until the
// server answers; only the busy flag changes up front. On rejection or
// failure the record is left exactly as it was.
// PRE: input.RecordID is non-empty
// POST: The record's visible fields equal either the pre-call values or
// a state consistent with input.Checked
func ExecuteToggleAttendance(ctx context.Context, input ToggleAttendanceInput, deps ToggleAttendanceDeps) (ToggleAttendanceResult, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	if deps.Phase() != window.PhaseOpen {
		return ToggleAttendanceResult{}, ErrWindowNotOpen
	}
	if !deps.Guard.TryAcquire(input.RecordID) {
		return ToggleAttendanceResult{}, ErrToggleInProgress
	}
	defer deps.Guard.Release(input.RecordID)

	rec, ok := deps.View.Get(input.RecordID)
	if !ok {
		return ToggleAttendanceResult{}, ErrRecordNotVisible
	}

	deps.View.SetBusy(input.RecordID, true)
	defer deps.View.SetBusy(input.RecordID, false)

	updated, err := deps.API.ConfirmAttendance(ctx, api.ConfirmRequest{
		RecordID:         input.RecordID,
		Confirm:          input.Checked,
		CreateAttendance: input.Checked,
	})
	if deps.RequestRefresh != nil {
		defer deps.RequestRefresh()
	}
	if err != nil {
		// Nothing visible changed before the call, so rollback is a no-op.
		recordToggleAudit(ctx, deps, now(), rec, input.Checked, err)
		slog.Warn("attendance_event", "event", "toggle_failed", "record_id", input.RecordID, "err", err)
		return ToggleAttendanceResult{}, err
	}

	if updated != nil {
		deps.View.Set(*updated)
	} else {
		deps.View.Update(input.RecordID, func(r *registration.Registration) {
			r.ApplyConfirmation(input.Checked, now())
		})
	}

	final, _ := deps.View.Get(input.RecordID)
	result := ToggleAttendanceResult{Record: final, Message: toggleMessage(input.Checked)}
	recordToggleAudit(ctx, deps, now(), final, input.Checked, nil)
	slog.Info("attendance_event", "event", "toggle_confirmed", "record_id", input.RecordID, "checked", input.Checked)
	return result, nil
}

func toggleMessage(checked bool) string {
	if checked {
		return "Asistencia confirmada"
	}
	return "Asistencia desmarcada"
}

func recordToggleAudit(ctx context.Context, deps ToggleAttendanceDeps, now time.Time, rec registration.Registration, checked bool, cause error) {
	if deps.Audit == nil {
		return
	}
	action := audit.ActionConfirm
	if !checked {
		action = audit.ActionUnconfirm
	}
	outcome := audit.OutcomeSuccess
	msg := toggleMessage(checked)
	switch {
	case errors.Is(cause, api.ErrServerRejected):
		outcome = audit.OutcomeRejected
		msg = cause.Error()
	case cause != nil:
		outcome = audit.OutcomeNetworkError
		msg = cause.Error()
	}
	event := audit.NewEvent(now, audit.CategoryAttendance, action, outcome).
		WithRecord(rec.ID, rec.ActivityID).
		WithMessage(msg)
	if err := deps.Audit.Record(ctx, event); err != nil {
		slog.Warn("attendance_event", "event", "audit_write_failed", "err", err)
	}
}
