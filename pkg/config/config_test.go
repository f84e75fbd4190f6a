package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.RateLimit.PermitsPerSecond != 100 {
		t.Errorf("RateLimit.PermitsPerSecond = %v, want 100", cfg.RateLimit.PermitsPerSecond)
	}
	if cfg.Backend.Type != BackendElasticsearch {
		t.Errorf("Backend.Type = %q, want elasticsearch", cfg.Backend.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
auth:
  secret: file-secret
  tokenTTL: 1h
rateLimit:
  permitsPerSecond: 25
backend:
  type: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Auth.Secret != "file-secret" {
		t.Errorf("Auth.Secret = %q", cfg.Auth.Secret)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.RateLimit.PermitsPerSecond != 25 {
		t.Errorf("PermitsPerSecond = %v, want 25", cfg.RateLimit.PermitsPerSecond)
	}
	if cfg.Backend.Type != BackendMemory {
		t.Errorf("Backend.Type = %q, want memory", cfg.Backend.Type)
	}
	// Untouched sections keep their defaults.
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Metrics.Port = %d, want default 9090", cfg.Metrics.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DSE_SERVER_PORT", "7070")
	t.Setenv("DSE_AUTH_SECRET", "env-secret")
	t.Setenv("DSE_BACKEND_TYPE", "memory")
	t.Setenv("DSE_RATE_LIMIT_PERMITS_PER_SECOND", "42.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("Auth.Secret = %q, want env-secret", cfg.Auth.Secret)
	}
	if cfg.Backend.Type != BackendMemory {
		t.Errorf("Backend.Type = %q, want memory", cfg.Backend.Type)
	}
	if cfg.RateLimit.PermitsPerSecond != 42.5 {
		t.Errorf("PermitsPerSecond = %v, want 42.5", cfg.RateLimit.PermitsPerSecond)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty secret", "auth:\n  secret: \"\"\n"},
		{"zero rate", "rateLimit:\n  permitsPerSecond: 0\n"},
		{"negative rate", "rateLimit:\n  permitsPerSecond: -5\n"},
		{"unknown backend", "backend:\n  type: cassandra\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config: %s", tt.yaml)
			}
		})
	}
}

func TestElasticsearchURL(t *testing.T) {
	es := ElasticsearchConfig{Host: "es.internal", Port: 9200, Scheme: "https"}
	if got := es.URL(); got != "https://es.internal:9200" {
		t.Errorf("URL = %q", got)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
