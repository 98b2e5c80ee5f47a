package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8700 || cfg.Server.MetricsPort != 8701 {
		t.Fatalf("ports = %d, %d", cfg.Server.Port, cfg.Server.MetricsPort)
	}
	if cfg.Bus.URL != "nats://localhost:4222" {
		t.Fatalf("bus url = %s", cfg.Bus.URL)
	}
	if cfg.LockTTL() != 24*time.Hour {
		t.Fatalf("lock ttl = %v", cfg.LockTTL())
	}
	if cfg.DailyInterval() != 24*time.Hour || cfg.WeeklyInterval() != 168*time.Hour {
		t.Fatalf("intervals = %v, %v", cfg.DailyInterval(), cfg.WeeklyInterval())
	}
}

func TestLimitsFor(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	nanda := cfg.LimitsFor("Nanda")
	if nanda["pull_requests"] != 4 || nanda["projects"] != 2 || nanda["deployments"] != 1 {
		t.Fatalf("nanda limits = %+v", nanda)
	}

	fallback := cfg.LimitsFor("Skunkworks")
	if fallback["projects"] != 2 || fallback["pull_requests"] != 3 {
		t.Fatalf("default limits = %+v", fallback)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9900
wip:
  lock_ttl_hours: 48
  limits:
    Ratio:
      projects: 10
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9900 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.LockTTL() != 48*time.Hour {
		t.Fatalf("ttl = %v", cfg.LockTTL())
	}
	if cfg.LimitsFor("Ratio")["projects"] != 10 {
		t.Fatalf("ratio limits = %+v", cfg.LimitsFor("Ratio"))
	}
	// Defaults not overridden by the file survive.
	if cfg.Server.MetricsPort != 8701 {
		t.Fatalf("metrics port = %d", cfg.Server.MetricsPort)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %s", cfg.Logging.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLOWGATE_PORT", "9100")
	t.Setenv("FLOWGATE_GITHUB_SECRET", "shh")
	t.Setenv("FLOWGATE_LOCK_TTL_HOURS", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Webhook.GitHubSecret != "shh" {
		t.Fatalf("secret = %s", cfg.Webhook.GitHubSecret)
	}
	if cfg.LockTTL() != 12*time.Hour {
		t.Fatalf("ttl = %v", cfg.LockTTL())
	}
}

func TestValidationRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
