package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"attendpanel/internal/adapters/api"
	"attendpanel/internal/adapters/http/middleware"
	"attendpanel/internal/adapters/http/perf"
	auditstore "attendpanel/internal/adapters/storage/audit"
	"attendpanel/internal/application/listview"
	"attendpanel/internal/application/orchestrators"
	"attendpanel/internal/domain/registration"
)

// PanelDeps holds everything a Panel needs to operate.
type PanelDeps struct {
	API      *api.Client
	Audit    orchestrators.AuditRecorder // optional
	AuditLog auditstore.Store            // optional; read side of the audit trail

	// OnCommitFailure is the out-of-band surface for a failed deletion
	// commit. Optional.
	OnCommitFailure func(rec registration.Registration, err error)

	GracePeriod time.Duration // 0 means the queue default
	Now         func() time.Time
}

// Panel is the application state behind the HTTP surface: the activity
// catalog, one registration view per loaded activity, the shared toggle
// guard, the single deletion queue, and the window clocks.
type Panel struct {
	API       *api.Client
	Catalog   *listview.Catalog
	Audit     orchestrators.AuditRecorder
	AuditLog  auditstore.Store
	Guard     *orchestrators.InFlightGuard
	Deletions *orchestrators.DeletionQueue
	Now       func() time.Time

	board *windowBoard

	mu           sync.Mutex
	views        map[string]*listview.View
	refreshTimer *time.Timer
}

// refreshDelay is how long a post-toggle reload is deferred so bursts of
// toggles collapse into one upstream round trip.
const refreshDelay = 500 * time.Millisecond

// NewPanel wires a Panel. The deletion queue and window board are owned
// by the Panel for its whole lifetime.
func NewPanel(deps PanelDeps) *Panel {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	p := &Panel{
		API:      deps.API,
		Catalog:  listview.NewCatalog(),
		Audit:    deps.Audit,
		AuditLog: deps.AuditLog,
		Guard:    orchestrators.NewInFlightGuard(),
		Now:      now,
		board:    newWindowBoard(now),
		views:    make(map[string]*listview.View),
	}
	p.Deletions = orchestrators.NewDeletionQueue(orchestrators.DeletionQueueDeps{
		API:         deps.API,
		Audit:       deps.Audit,
		Now:         now,
		GracePeriod:     deps.GracePeriod,
		OnCommitFailure: deps.OnCommitFailure,
	})
	return p
}

// Reload refreshes the catalog and every loaded view from upstream, then
// reconciles the window clocks against the new catalog.
func (p *Panel) Reload(ctx context.Context) error {
	err := orchestrators.ExecuteReloadActivities(ctx, orchestrators.ReloadDeps{
		API:     p.API,
		Catalog: p.Catalog,
		Audit:   p.Audit,
		Now:     p.Now,
		Views:   p.loadedViews(),
	})
	if err != nil {
		return err
	}
	p.board.Sync(p.Catalog.Activities())
	return nil
}

// View returns the registration view for an activity, loading it from
// upstream on first access.
func (p *Panel) View(ctx context.Context, activityID string) (*listview.View, error) {
	p.mu.Lock()
	if v, ok := p.views[activityID]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	regs, err := p.API.FetchRegistrations(ctx, activityID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.views[activityID]; ok {
		// Lost the race; the winner's state stands.
		return v, nil
	}
	v := listview.NewView()
	v.Replace(regs)
	p.views[activityID] = v
	return v, nil
}

// loadedView returns an already-loaded view without touching upstream.
func (p *Panel) loadedView(activityID string) (*listview.View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.views[activityID]
	return v, ok
}

// loadedViews snapshots the view map for the reload orchestrator.
func (p *Panel) loadedViews() map[string]*listview.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*listview.View, len(p.views))
	for id, v := range p.views {
		out[id] = v
	}
	return out
}

// scheduleRefresh arms a deferred wholesale reload. Calls while a timer
// is already armed coalesce into it.
func (p *Panel) scheduleRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refreshTimer != nil {
		return
	}
	p.refreshTimer = time.AfterFunc(refreshDelay, func() {
		p.mu.Lock()
		p.refreshTimer = nil
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := p.Reload(ctx); err != nil {
			slog.Warn("refresh_event", "event", "reload_failed", "err", err)
		}
	})
}

// Close stops the Panel's background timers.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.refreshTimer != nil {
		p.refreshTimer.Stop()
		p.refreshTimer = nil
	}
	p.mu.Unlock()
	p.board.Stop()
	p.Deletions.Stop()
}

// loadCSRFKey decodes a hex CSRF secret (32 bytes), falling back to
// PANEL_CSRF_KEY and then, outside production, to a random per-startup
// key.
func loadCSRFKey(configured string) []byte {
	keyHex := configured
	if keyHex == "" {
		keyHex = os.Getenv("PANEL_CSRF_KEY")
	}
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("CSRF key must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("PANEL_ENV") == "production" {
		log.Fatal("PANEL_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set PANEL_CSRF_KEY for production.")
	return key
}

// Global panel instance (set by NewMux)
var panel *Panel

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// MuxOptions tunes NewMux.
type MuxOptions struct {
	StaticDir      string
	CSRFKey        string   // hex, 32 bytes once decoded
	TrustedOrigins []string // origins the CSRF layer accepts
}

// NewMux wires HTTP handlers for the panel.
func NewMux(p *Panel, collector *perf.Collector, opts MuxOptions) http.Handler {
	panel = p
	perfCollector = collector

	mux := http.NewServeMux()
	if opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}
	registerRoutes(mux)

	csrfKey := loadCSRFKey(opts.CSRFKey)
	trusted := opts.TrustedOrigins
	if len(trusted) == 0 {
		trusted = []string{"localhost:8085", "127.0.0.1:8085"}
	}

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> CSRF -> SecurityHeaders -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, trusted),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}
