package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	"attendpanel/internal/adapters/api"
	emailPkg "attendpanel/internal/adapters/email"
	web "attendpanel/internal/adapters/http"
	"attendpanel/internal/adapters/http/perf"
	"attendpanel/internal/adapters/storage"
	auditStore "attendpanel/internal/adapters/storage/audit"
	"attendpanel/internal/config"
	"attendpanel/internal/domain/registration"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfgPath := envOrDefault("PANEL_CONFIG", "attendpanel.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Audit trail database with WAL mode and busy timeout
	dsn := cfg.AuditDBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Performance instrumentation for requests and upstream calls
	collector := perf.NewCollector(perf.DefaultRingSize)

	upstream := api.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout())
	upstream.OnTiming = func(op string, d time.Duration, status int) {
		collector.Record(perf.Entry{
			Kind:       perf.KindUpstream,
			Path:       op,
			StatusCode: status,
			DurationMs: float64(d.Microseconds()) / 1000.0,
			Timestamp:  time.Now(),
		})
	}

	// Configure the out-of-band alert sender for failed deletion commits
	var sender emailPkg.Sender
	if cfg.Alert.APIKey != "" {
		sender = emailPkg.NewResendSender(cfg.Alert.APIKey, cfg.Alert.From)
		log.Println("Alert sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		log.Println("Alert sender configured (noop — set alert.api_key for real delivery)")
	}

	trail := auditStore.NewSQLiteStore(db)
	panel := web.NewPanel(web.PanelDeps{
		API:         upstream,
		Audit:       trail,
		AuditLog:    trail,
		GracePeriod: cfg.GracePeriod(),
		OnCommitFailure: func(rec registration.Registration, err error) {
			sendCommitFailureAlert(sender, cfg.Alert, rec, err)
		},
	})
	defer panel.Close()

	// Initial catalog load; a cold panel is still allowed to start when
	// upstream is down, it just serves an empty catalog until the next
	// scheduled reload.
	if err := panel.Reload(context.Background()); err != nil {
		slog.Warn("startup_event", "event", "initial_reload_failed", "err", err)
	}

	// Periodic wholesale reload
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout())
		defer cancel()
		if err := panel.Reload(ctx); err != nil {
			slog.Warn("reload_event", "event", "scheduled_reload_failed", "err", err)
		}
	}); err != nil {
		log.Fatalf("invalid refresh schedule %q: %v", cfg.RefreshCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	mux := web.NewMux(panel, collector, web.MuxOptions{
		StaticDir:      "static",
		CSRFKey:        cfg.CSRFKey,
		TrustedOrigins: []string{cfg.Listen},
	})

	log.Printf("attendpanel %s starting on %s (upstream=%s)", version, cfg.Listen, cfg.UpstreamURL)
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// sendCommitFailureAlert notifies operators that a deletion commit
// failed after its row already left every view. The row is never
// resurrected, so this mail is the only trace an operator gets.
func sendCommitFailureAlert(sender emailPkg.Sender, alert config.AlertConfig, rec registration.Registration, err error) {
	if len(alert.To) == 0 {
		slog.Error("deletion_event", "event", "commit_failed_unreported", "record_id", rec.ID, "err", err)
		return
	}
	body := fmt.Sprintf(
		"<p>La eliminación del registro <strong>%s</strong> (actividad %s) falló después de retirarlo de la vista.</p><p>Error: %s</p>",
		rec.ID, rec.ActivityID, err,
	)
	_, sendErr := sender.Send(context.Background(), emailPkg.SendRequest{
		From:    alert.From,
		To:      alert.To,
		Subject: "attendpanel: fallo al confirmar una eliminación",
		HTML:    body,
	})
	if sendErr != nil {
		slog.Error("deletion_event", "event", "alert_send_failed", "record_id", rec.ID, "err", sendErr)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
