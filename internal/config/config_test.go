package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itsmrshow/teamsreport/internal/notification"
	"github.com/itsmrshow/teamsreport/internal/teams"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.HTTPTimeout())
	}
	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 5 || policy.Factor != 10*time.Second || policy.Base != 2 {
		t.Errorf("unexpected retry policy: %+v", policy)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("unexpected metrics addr: %s", cfg.Metrics.Addr)
	}
	if cfg.RetentionPeriod() != 720*time.Hour {
		t.Errorf("unexpected retention: %s", cfg.RetentionPeriod())
	}
	if cfg.JobTimeout() != 15*time.Minute {
		t.Errorf("unexpected job timeout: %s", cfg.JobTimeout())
	}
}

const yamlConfig = `
log:
  level: debug
  format: json
http:
  timeout: 5s
retry:
  max_attempts: 3
  factor: 2s
  jitter: true
state:
  path: /var/lib/teamsreport/history.db
jobs:
  - name: weekly-revenue
    schedule: "0 9 * * 1"
    title: Weekly revenue
    description: Revenue by region
    url: https://superset.example.com/r/42
    csv: /reports/revenue.csv
    targets:
      - https://example.webhook.office.com/a
      - https://example.webhook.office.com/b
`

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "teamsreport.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.HTTPTimeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.HTTPTimeout())
	}
	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 3 || policy.Factor != 2*time.Second || !policy.Jitter {
		t.Errorf("unexpected retry policy: %+v", policy)
	}
	if policy.Base != 2 {
		t.Errorf("expected default base to be kept, got %v", policy.Base)
	}
	if len(cfg.Jobs) != 1 || len(cfg.Jobs[0].Targets) != 2 {
		t.Fatalf("unexpected jobs: %+v", cfg.Jobs)
	}
}

const tomlConfig = `
[log]
level = "warn"

[retry]
max_attempts = 2

[[jobs]]
name = "daily-sessions"
schedule = "*/30 * * * *"
title = "Sessions"
screenshots = ["/reports/a.png", "/reports/b.png"]
targets = ["https://example.webhook.office.com/x"]
`

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "teamsreport.toml", tomlConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected warn level, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("expected default console format, got %s", cfg.Log.Format)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if len(cfg.Jobs) != 1 || len(cfg.Jobs[0].Screenshots) != 2 {
		t.Fatalf("unexpected jobs: %+v", cfg.Jobs)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "config.json", "{}")); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := Load(writeFile(t, "bad.yaml", "log: [")); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TEAMSREPORT_LOG_LEVEL", "error")
	t.Setenv("TEAMSREPORT_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("TEAMSREPORT_RETRY_JITTER", "yes")
	t.Setenv("TEAMSREPORT_STATE_DB", "/tmp/history.db")
	t.Setenv("TEAMSREPORT_HTTP_TIMEOUT", "12s")

	cfg, err := Load(writeFile(t, "teamsreport.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected env log level, got %s", cfg.Log.Level)
	}
	if cfg.Retry.MaxAttempts != 7 || !cfg.Retry.Jitter {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.State.Path != "/tmp/history.db" {
		t.Errorf("unexpected state path: %s", cfg.State.Path)
	}
	if cfg.HTTPTimeout() != 12*time.Second {
		t.Errorf("expected 12s timeout, got %s", cfg.HTTPTimeout())
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Jobs = []Job{{Name: "a", Schedule: "0 * * * *", Targets: []string{"https://x"}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error for valid config: %v", err)
	}

	tests := map[string]func(c *Config){
		"bad timeout":     func(c *Config) { c.HTTP.Timeout = "soon" },
		"zero timeout":    func(c *Config) { c.HTTP.Timeout = "0s" },
		"zero attempts":   func(c *Config) { c.Retry.MaxAttempts = 0 },
		"bad factor":      func(c *Config) { c.Retry.Factor = "ten" },
		"small base":      func(c *Config) { c.Retry.Base = 0.5 },
		"bad retention":   func(c *Config) { c.State.Retention = "forever" },
		"bad job timeout": func(c *Config) { c.Serve.JobTimeout = "-1m" },
		"job no name":     func(c *Config) { c.Jobs[0].Name = "" },
		"job bad cron":    func(c *Config) { c.Jobs[0].Schedule = "every monday" },
		"job no targets":  func(c *Config) { c.Jobs[0].Targets = nil },
		"duplicate names": func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) },
	}
	for name, mutate := range tests {
		cfg := Default()
		cfg.Jobs = []Job{{Name: "a", Schedule: "0 * * * *", Targets: []string{"https://x"}}}
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestJobContentAndRecipient(t *testing.T) {
	embedded := writeFile(t, "embedded.csv", "metric,value\nsessions,12\n")
	job := Job{
		Name:        "sessions",
		Schedule:    "0 * * * *",
		Description: "Hourly sessions",
		URL:         "https://superset.example.com/r/7",
		Screenshots: []string{"/reports/a.png"},
		Embedded:    embedded,
		Targets:     []string{"https://a", "https://b"},
	}

	content, err := job.Content()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Name != "sessions" {
		t.Errorf("expected job name as title fallback, got %q", content.Name)
	}
	if content.Kind() != notification.KindScreenshots {
		t.Errorf("expected screenshots to take precedence, got %s", content.Kind())
	}
	if content.EmbeddedData == nil || len(content.EmbeddedData.Rows) != 1 {
		t.Errorf("expected embedded data to be loaded, got %+v", content.EmbeddedData)
	}

	recipient, err := job.Recipient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls, err := teams.ResolveWebhookURLs(recipient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a" {
		t.Errorf("unexpected urls: %v", urls)
	}
}

func TestJobContentBadEmbedded(t *testing.T) {
	job := Job{Name: "x", Embedded: writeFile(t, "bad.csv", "a,b\n1\n")}
	if _, err := job.Content(); !errors.Is(err, notification.ErrUnprocessable) {
		t.Errorf("expected unprocessable error, got %v", err)
	}
	job.Embedded = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := job.Content(); err == nil {
		t.Error("expected error for missing embedded csv")
	}
}
