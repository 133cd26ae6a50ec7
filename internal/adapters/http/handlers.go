package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"attendpanel/internal/adapters/api"
	"attendpanel/internal/application/listview"
	"attendpanel/internal/application/orchestrators"
	"attendpanel/internal/domain/registration"
	"attendpanel/internal/domain/window"
)

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// upstreamError maps a failed upstream call to a response. Rejections
// carry the upstream message; transport failures carry the generic one.
func upstreamError(w http.ResponseWriter, err error) {
	msg := api.GenericFailureMessage
	if errors.Is(err, api.ErrServerRejected) {
		msg = err.Error()
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"message": msg})
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/panel/activities", handleActivities)
	mux.HandleFunc("/api/panel/activities/{id}", handleActivity)
	mux.HandleFunc("/api/panel/activities/{id}/registrations", handleRegistrations)
	mux.HandleFunc("/api/panel/attendance/toggle", handleToggleAttendance)
	mux.HandleFunc("/api/panel/deletions", handleDeletionRequest)
	mux.HandleFunc("/api/panel/deletions/cancel", handleDeletionCancel)
	mux.HandleFunc("/api/panel/deletions/pending", handleDeletionStatus)
	mux.HandleFunc("/api/panel/reload", handleReload)
	mux.HandleFunc("/api/panel/audit", handleAuditTrail)
	mux.HandleFunc("/api/panel/perf", handlePerf)
}

// windowView is the wire shape of a registration window status.
type windowView struct {
	Phase         window.Phase `json:"phase"`
	Message       string       `json:"message"`
	NextRefreshMs int64        `json:"next_refresh_ms"`
}

func newWindowView(st window.Status) windowView {
	return windowView{
		Phase:         st.Phase,
		Message:       st.Message,
		NextRefreshMs: st.NextRefresh.Milliseconds(),
	}
}

// sessionView is one expanded daily occurrence.
type sessionView struct {
	Date    string    `json:"date"` // YYYY-MM-DD in the activity's timezone
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Ordinal int       `json:"ordinal"`
	Total   int       `json:"total"`
}

// activityView is the list-level wire shape of an activity.
type activityView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Capacity        *int       `json:"capacity"`
	RegisteredCount int        `json:"registered_count"`
	Full            bool       `json:"full"`
	SessionCount    int        `json:"session_count"`
	Window          windowView `json:"window"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleActivities lists the catalog with live window statuses.
func handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activities := panel.Catalog.Activities()
	out := make([]activityView, 0, len(activities))
	for _, a := range activities {
		st, ok := panel.board.Status(a.ID)
		if !ok {
			start, deadline := a.Window()
			st = window.At(panel.Now(), start, deadline)
		}
		out = append(out, activityView{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			Start:           a.Start,
			End:             a.End,
			Capacity:        a.Capacity,
			RegisteredCount: a.RegisteredCount,
			Full:            a.IsFull(),
			SessionCount:    len(panel.Catalog.SessionsFor(a.ID)),
			Window:          newWindowView(st),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": out})
}

// handleActivity returns one activity with its full session schedule.
func handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	a, ok := panel.Catalog.Get(id)
	if !ok {
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	sessions := panel.Catalog.SessionsFor(id)
	sv := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		sv = append(sv, sessionView{
			Date:    s.Date.Format("2006-01-02"),
			Start:   s.Start,
			End:     s.End,
			Ordinal: s.Ordinal,
			Total:   s.Total,
		})
	}

	st, ok := panel.board.Status(id)
	if !ok {
		start, deadline := a.Window()
		st = window.At(panel.Now(), start, deadline)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": activityView{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			Start:           a.Start,
			End:             a.End,
			Capacity:        a.Capacity,
			RegisteredCount: a.RegisteredCount,
			Full:            a.IsFull(),
			SessionCount:    len(sessions),
			Window:          newWindowView(st),
		},
		"sessions": sv,
	})
}

// registrationRow is one visible row plus its transient panel state.
type registrationRow struct {
	registration.Registration
	Busy bool `json:"busy"`
}

// handleRegistrations returns a page of an activity's registrations,
// loading the view from upstream on first access.
func handleRegistrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if _, ok := panel.Catalog.Get(id); !ok {
		http.Error(w, "activity not found", http.StatusNotFound)
		return
	}

	view, err := panel.View(r.Context(), id)
	if err != nil {
		upstreamError(w, err)
		return
	}

	params := listview.ParsePageParams(r.URL.Query())
	rows, info := view.Page(params)

	out := make([]registrationRow, 0, len(rows))
	for _, rec := range rows {
		out = append(out, registrationRow{Registration: rec, Busy: view.IsBusy(rec.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registrations": out,
		"page_info":     info,
	})
}

// toggleRequest is the attendance toggle payload.
type toggleRequest struct {
	ActivityID string `json:"activityId"`
	RecordID   string `json:"recordId"`
	Checked    bool   `json:"checked"`
}

// handleToggleAttendance confirms or unconfirms one record's attendance
// against upstream. The row is not updated until upstream agrees.
func handleToggleAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	view, ok := panel.loadedView(req.ActivityID)
	if !ok {
		http.Error(w, "activity not loaded", http.StatusNotFound)
		return
	}

	result, err := orchestrators.ExecuteToggleAttendance(r.Context(),
		orchestrators.ToggleAttendanceInput{RecordID: req.RecordID, Checked: req.Checked},
		orchestrators.ToggleAttendanceDeps{
			View:           view,
			API:            panel.API,
			Guard:          panel.Guard,
			Phase:          func() window.Phase { return panel.board.Phase(req.ActivityID) },
			Audit:          panel.Audit,
			Now:            panel.Now,
			RequestRefresh: panel.scheduleRefresh,
		})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"record":  result.Record,
			"message": result.Message,
		})
	case errors.Is(err, orchestrators.ErrWindowNotOpen):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Inscripción cerrada"})
	case errors.Is(err, orchestrators.ErrToggleInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Operación en curso"})
	case errors.Is(err, orchestrators.ErrRecordNotVisible):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, api.ErrServerRejected), errors.Is(err, api.ErrNetworkError):
		upstreamError(w, err)
	default:
		internalError(w, err)
	}
}

// deletionRequest is the deferred-deletion payload.
type deletionRequest struct {
	ActivityID string `json:"activityId"`
	RecordID   string `json:"recordId"`
}

// handleDeletionRequest starts the undo countdown for one record. The
// row disappears from the view shortly after; upstream is only touched
// once the countdown expires.
func handleDeletionRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deletionRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	view, ok := panel.loadedView(req.ActivityID)
	if !ok {
		http.Error(w, "activity not loaded", http.StatusNotFound)
		return
	}

	switch err := panel.Deletions.RequestDelete(view, req.RecordID); {
	case err == nil:
		remaining, _ := panel.Deletions.Remaining()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"pending":      true,
			"remaining_ms": remaining.Milliseconds(),
		})
	case errors.Is(err, orchestrators.ErrDeletionAlreadyPending):
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Ya hay una eliminación pendiente"})
	case errors.Is(err, orchestrators.ErrRecordNotVisible):
		http.Error(w, "record not found", http.StatusNotFound)
	default:
		internalError(w, err)
	}
}

// handleDeletionCancel restores the pending deletion, if one is still
// inside its undo window.
func handleDeletionCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !panel.Deletions.Cancel() {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Nada que cancelar"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

// handleDeletionStatus reports the undo countdown.
func handleDeletionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	remaining, pending := panel.Deletions.Remaining()
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":      pending,
		"remaining_ms": remaining.Milliseconds(),
	})
}

// handleReload refreshes the catalog and all loaded views from upstream.
func handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := panel.Reload(r.Context()); err != nil {
		upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": len(panel.Catalog.Activities()),
	})
}

// handlePerf exposes aggregated timing stats for the panel and its
// upstream calls.
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if perfCollector == nil {
		http.Error(w, "perf collection disabled", http.StatusNotFound)
		return
	}

	minutes, _ := strconv.Atoi(r.URL.Query().Get("since_minutes"))
	if minutes <= 0 {
		minutes = 60
	}
	snap := perfCollector.Snapshot(time.Now().Add(-time.Duration(minutes)*time.Minute), 10)
	writeJSON(w, http.StatusOK, snap)
}
