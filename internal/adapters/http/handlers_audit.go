package web

import (
	"net/http"
	"strconv"

	auditStore "attendpanel/internal/adapters/storage/audit"
	auditDomain "attendpanel/internal/domain/audit"
)

// handleAuditTrail lists the locally recorded audit events, newest
// first (GET /api/panel/audit).
// POST: Returns events matching the optional filters
func handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if panel.AuditLog == nil {
		http.Error(w, "audit trail disabled", http.StatusNotFound)
		return
	}

	filter := auditStore.Filter{}
	if category := r.URL.Query().Get("category"); category != "" {
		cat := auditDomain.Category(category)
		filter.Category = &cat
	}
	if action := r.URL.Query().Get("action"); action != "" {
		act := auditDomain.Action(action)
		filter.Action = &act
	}
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		out := auditDomain.Outcome(outcome)
		filter.Outcome = &out
	}
	if recordID := r.URL.Query().Get("record_id"); recordID != "" {
		filter.RecordID = &recordID
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	events, err := panel.AuditLog.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  limit,
	})
}
