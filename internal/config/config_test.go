package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  host: "0.0.0.0"
  port: 8080
airtable:
  api_key: "pat-123"
  base_id: "appBASE"
  timeout: 5s
auth:
  webhook_key: "hook-key"
journal:
  driver: "sqlite"
  path: "/tmp/journal.db"
lock:
  redis:
    addr: "localhost:6379"
  ttl: 1m
mqtt:
  broker: "tcp://localhost:1883"
log:
  level: "debug"
  format: "json"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "HAETABLE_") || key == "PORT" || strings.HasPrefix(key, "AIRTABLE_") {
			t.Setenv(key, "")
		}
	}
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Airtable.APIKey != "pat-123" || cfg.Airtable.BaseID != "appBASE" {
		t.Errorf("airtable = %+v", cfg.Airtable)
	}
	if cfg.Airtable.Timeout != 5*time.Second {
		t.Errorf("airtable.timeout = %v", cfg.Airtable.Timeout)
	}
	if cfg.Airtable.BaseURL != "https://api.airtable.com/v0" {
		t.Errorf("airtable.base_url default lost: %q", cfg.Airtable.BaseURL)
	}
	if cfg.Auth.WebhookKey != "hook-key" {
		t.Errorf("auth.webhook_key = %q", cfg.Auth.WebhookKey)
	}
	if cfg.Lock.Redis.Addr != "localhost:6379" || cfg.Lock.TTL != time.Minute {
		t.Errorf("lock = %+v", cfg.Lock)
	}
	if cfg.MQTT.Topic != "haetable/deliveries" {
		t.Errorf("mqtt.topic default lost: %q", cfg.MQTT.Topic)
	}
}

// TestLoadMissingFileUsesEnv verifies the file is optional when the
// required values come from the environment.
func TestLoadMissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIRTABLE_API_KEY", "env-key")
	t.Setenv("AIRTABLE_BASE_ID", "appENV")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want default 3000", cfg.Server.Port)
	}
	if cfg.Airtable.Timeout != 30*time.Second {
		t.Errorf("airtable.timeout = %v, want 30s", cfg.Airtable.Timeout)
	}
	if cfg.Journal.Driver != JournalSQLite {
		t.Errorf("journal.driver = %q", cfg.Journal.Driver)
	}
}

// TestEnvOverride verifies that env vars take precedence over YAML values,
// and that the HAETABLE_ names win over the bare ones.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("HAETABLE_SERVER_PORT", "9999")
	t.Setenv("AIRTABLE_API_KEY", "bare")
	t.Setenv("HAETABLE_AIRTABLE_API_KEY", "prefixed")
	t.Setenv("HAETABLE_AIRTABLE_TIMEOUT", "45s")
	t.Setenv("HAETABLE_JOURNAL_DRIVER", "none")
	t.Setenv("HAETABLE_TAILSCALE_ENABLED", "true")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Airtable.APIKey != "prefixed" {
		t.Errorf("airtable.api_key = %q", cfg.Airtable.APIKey)
	}
	if cfg.Airtable.Timeout != 45*time.Second {
		t.Errorf("airtable.timeout = %v", cfg.Airtable.Timeout)
	}
	if cfg.Journal.Driver != JournalNone || !cfg.Tailscale.Enabled {
		t.Errorf("journal = %+v tailscale = %+v", cfg.Journal, cfg.Tailscale)
	}
}

// TestPortEnv verifies the bare PORT variable alone is honored.
func TestPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("server.port = %d, want 4000", cfg.Server.Port)
	}
}

// TestValidationErrors verifies that missing or inconsistent settings are caught.
func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing api key", "airtable:\n  base_id: appX\n", "airtable.api_key"},
		{"missing base id", "airtable:\n  api_key: k\n", "airtable.base_id"},
		{"bad journal driver", "airtable:\n  api_key: k\n  base_id: b\njournal:\n  driver: mongo\n", "journal.driver"},
		{"postgres without dsn", "airtable:\n  api_key: k\n  base_id: b\njournal:\n  driver: postgres\n", "journal.dsn"},
		{"bad port", "server:\n  port: 70000\nairtable:\n  api_key: k\n  base_id: b\n", "server.port"},
		{"bad level", "airtable:\n  api_key: k\n  base_id: b\nlog:\n  level: loud\n", "log.level"},
		{"bad format", "airtable:\n  api_key: k\n  base_id: b\nlog:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// TestLoadInvalidYAML verifies that malformed YAML returns an error.
func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeTemp(t, "server: [")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

// TestSlogLevel verifies level names parse case-insensitively.
func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError} {
		got, err := LogConfig{Level: in}.SlogLevel()
		if err != nil || got != want {
			t.Errorf("SlogLevel(%q) = %v, %v", in, got, err)
		}
	}
}
