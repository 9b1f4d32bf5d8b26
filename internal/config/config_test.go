package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9090"
log:
  level: debug
postgres:
  url: postgres://quiz@localhost/quiz
redis:
  addr: localhost:6379
  ttl: 5m
pool:
  ttl: 30s
client:
  base_url: http://quiz.example
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected server/log config: %+v", cfg)
	}
	if cfg.Storage.Engine != EnginePgx {
		t.Fatalf("expected pgx engine when postgres url is set, got %q", cfg.Storage.Engine)
	}
	if cfg.Client.BaseURL != "http://quiz.example" {
		t.Fatalf("unexpected base url %q", cfg.Client.BaseURL)
	}
	if got := TTLDuration(cfg.Pool.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s pool ttl, got %v", got)
	}
}

func TestLoadOptionalDefaults(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Storage.Engine != EngineGorm || cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN == "" {
		t.Fatalf("expected sqlite defaults, got %+v", cfg.Storage)
	}
	if cfg.Client.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected default base url %q", cfg.Client.BaseURL)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid, got %v", got)
	}
}
