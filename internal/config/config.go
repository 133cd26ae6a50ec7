package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertConfig holds the outbound email alert settings. Alerts stay
// disabled while APIKey is empty.
type AlertConfig struct {
	APIKey string   `yaml:"api_key"`
	From   string   `yaml:"from"`
	To     []string `yaml:"to"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the panel API.
	Listen string `yaml:"listen"`

	// UpstreamURL is the base URL of the attendance API that owns all
	// final state.
	UpstreamURL string `yaml:"upstream_url"`

	// UpstreamTimeoutSeconds bounds each upstream call.
	UpstreamTimeoutSeconds int `yaml:"upstream_timeout_seconds"`

	// RefreshCron is a cron-style schedule (e.g. "*/5 * * * *") for the
	// periodic wholesale reload from upstream.
	RefreshCron string `yaml:"refresh"`

	// GracePeriodSeconds is the undo window for deferred deletions.
	GracePeriodSeconds int `yaml:"grace_period_seconds"`

	// AuditDBPath is the SQLite file holding the local audit trail.
	AuditDBPath string `yaml:"audit_db_path"`

	// CSRFKey is the hex-encoded 32-byte CSRF secret. Empty generates a
	// per-startup random key (development only).
	CSRFKey string `yaml:"csrf_key"`

	// Alert configures operator alerts for failed deletion commits.
	Alert AlertConfig `yaml:"alert"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:8085",
		UpstreamURL:            "http://127.0.0.1:8080",
		UpstreamTimeoutSeconds: 15,
		RefreshCron:            "*/5 * * * *",
		GracePeriodSeconds:     8,
		AuditDBPath:            "attendpanel.db",
	}
}

// UpstreamTimeout returns the per-call timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// GracePeriod returns the undo window as a duration.
func (c *Config) GracePeriod() time.Duration {
	if c.GracePeriodSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Load reads the config file at path, creating it with defaults on first
// run. Environment variables PANEL_LISTEN and PANEL_UPSTREAM_URL
// override the file for containerized deployments.
// POST: Returns a config with defaults applied for missing fields
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if saveErr := Save(path, cfg); saveErr != nil {
			return nil, fmt.Errorf("config: first-run save failed: %w", saveErr)
		}
	case err != nil:
		return nil, fmt.Errorf("config: read failed: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse failed: %w", err)
		}
	}

	if v := os.Getenv("PANEL_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PANEL_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	return cfg, nil
}

// Save writes the config to path with restrictive permissions.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal failed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir failed: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write failed: %w", err)
	}
	return nil
}
