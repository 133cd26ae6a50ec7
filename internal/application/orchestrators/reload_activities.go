package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"attendpanel/internal/application/listview"
	"attendpanel/internal/domain/activity"
	"attendpanel/internal/domain/audit"
	"attendpanel/internal/domain/registration"
	"attendpanel/internal/domain/session"
)

// ReloadAPI is the upstream read surface for a wholesale refresh.
type ReloadAPI interface {
	FetchActivities(ctx context.Context) ([]activity.Activity, error)
	FetchRegistrations(ctx context.Context, activityID string) ([]registration.Registration, error)
}

// ReloadDeps holds dependencies for ExecuteReloadActivities.
type ReloadDeps struct {
	API     ReloadAPI
	Catalog *listview.Catalog
	Audit   AuditRecorder    // optional
	Now     func() time.Time // injectable for testing

	// Views maps an activity ID to the view owning its registrations.
	// Only loaded views are refreshed.
	Views map[string]*listview.View
}

// ExecuteReloadActivities refreshes the catalog wholesale from upstream
// and re-expands every activity into its daily sessions. The server is
// the source of truth; local state is replaced, not merged. Activities
// with malformed windows are skipped with a warning rather than failing
// the whole reload.
// POST: Catalog holds the fresh activities and sessions; each registered
// view holds its fresh registrations
func ExecuteReloadActivities(ctx context.Context, deps ReloadDeps) error {
	activities, err := deps.API.FetchActivities(ctx)
	if err != nil {
		return err
	}

	kept := make([]activity.Activity, 0, len(activities))
	sessions := make(map[string][]session.Session, len(activities))
	for _, a := range activities {
		expanded, err := session.Expand(a)
		if err != nil {
			slog.Warn("reload_event", "event", "activity_skipped", "activity_id", a.ID, "err", err)
			continue
		}
		kept = append(kept, a)
		sessions[a.ID] = expanded
	}
	deps.Catalog.ReplaceAll(kept, sessions)

	for activityID, view := range deps.Views {
		regs, err := deps.API.FetchRegistrations(ctx, activityID)
		if err != nil {
			slog.Warn("reload_event", "event", "registrations_skipped", "activity_id", activityID, "err", err)
			continue
		}
		view.Replace(regs)
	}

	if deps.Audit != nil {
		now := time.Now
		if deps.Now != nil {
			now = deps.Now
		}
		event := audit.NewEvent(now(), audit.CategorySystem, audit.ActionReload, audit.OutcomeSuccess).
			WithMessage(fmt.Sprintf("Catálogo recargado: %d actividades", len(kept)))
		if err := deps.Audit.Record(ctx, event); err != nil {
			slog.Warn("reload_event", "event", "audit_write_failed", "err", err)
		}
	}

	slog.Info("reload_event", "event", "catalog_reloaded", "activities", len(kept))
	return nil
}
