// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Collections CollectionsRef  `yaml:"collections"`
	Hooks       HooksConfig     `yaml:"hooks"`
	Webhooks    []WebhookConfig `yaml:"webhooks"`
	Logging     LoggingConfig   `yaml:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// CollectionsRef points at the declarative collection definitions.
// Collections are loaded once at boot; changing them requires a restart.
type CollectionsRef struct {
	Dir string `yaml:"dir"`
}

// HooksConfig configures hook execution.
type HooksConfig struct {
	// Timeout bounds each hook call. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`
}

// WebhookConfig declares a globally registered webhook, unioned with every
// collection's own webhooks.
type WebhookConfig struct {
	Name        string            `yaml:"name"`
	URL         string            `yaml:"url"`
	OnOperation []string          `yaml:"on_operation"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Secret      string            `yaml:"secret,omitempty"`
	TimeoutMS   int               `yaml:"timeout_ms,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "quill.db",
		},
		Collections: CollectionsRef{
			Dir: "collections",
		},
		Hooks: HooksConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file, applying defaults first and
// environment overrides last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds a configuration from defaults plus QUILL_* environment
// variables only (no config file).
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasEnvConfig reports whether any QUILL_* override is set.
func HasEnvConfig() bool {
	for _, key := range []string{
		"QUILL_SERVER_HOST", "QUILL_SERVER_PORT",
		"QUILL_DATABASE_DSN", "QUILL_COLLECTIONS_DIR",
		"QUILL_LOG_LEVEL",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// applyEnv overrides configuration from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QUILL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("QUILL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QUILL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QUILL_COLLECTIONS_DIR"); v != "" {
		cfg.Collections.Dir = v
	}
	if v := os.Getenv("QUILL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUILL_HOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Hooks.Timeout = d
		}
	}
}

// Validate checks the configuration for coherence.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver %q not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Collections.Dir == "" {
		return fmt.Errorf("collections.dir is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not recognized", c.Logging.Level)
	}
	for i, wh := range c.Webhooks {
		if wh.Name == "" || wh.URL == "" {
			return fmt.Errorf("webhooks[%d]: name and url are required", i)
		}
		for _, op := range wh.OnOperation {
			switch op {
			case "create", "read", "update", "delete":
			default:
				return fmt.Errorf("webhooks[%d]: unknown operation %q", i, op)
			}
		}
	}
	return nil
}

// Addr returns the host:port the server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
