package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quill.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "quill.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Hooks.Timeout != 30*time.Second {
		t.Errorf("hook timeout = %v", cfg.Hooks.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8090" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  dsn: /tmp/data.db
webhooks:
  - name: audit
    url: https://hooks.example.com/audit
    on_operation: [create, delete]
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
	if cfg.Database.DSN != "/tmp/data.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	// Unset hook timeout keeps the default.
	if cfg.Hooks.Timeout != 30*time.Second {
		t.Errorf("hook timeout = %v", cfg.Hooks.Timeout)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Name != "audit" {
		t.Errorf("webhooks = %v", cfg.Webhooks)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUILL_SERVER_PORT", "7000")
	t.Setenv("QUILL_DATABASE_DSN", "/data/env.db")
	t.Setenv("QUILL_LOG_LEVEL", "warn")
	t.Setenv("QUILL_HOOK_TIMEOUT", "10s")

	if !HasEnvConfig() {
		t.Fatal("HasEnvConfig = false")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "/data/env.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Hooks.Timeout != 10*time.Second {
		t.Errorf("hook timeout = %v", cfg.Hooks.Timeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("QUILL_SERVER_PORT", "7500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7500 {
		t.Errorf("port = %d, env should win over file", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"unsupported driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"empty collections dir", func(c *Config) { c.Collections.Dir = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"webhook without url", func(c *Config) {
			c.Webhooks = []WebhookConfig{{Name: "x"}}
		}},
		{"webhook bad operation", func(c *Config) {
			c.Webhooks = []WebhookConfig{{Name: "x", URL: "https://x", OnOperation: []string{"upsert"}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
