// Package config provides unified configuration for the vortice gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (VORTICE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/transer/vortice/pkg/identity"
	"github.com/transer/vortice/pkg/ratelimit"
)

// Config holds all configuration for the vortice gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Token         TokenConfig         `yaml:"token"`
	RateLimit     ratelimit.Config    `yaml:"rate_limit"`
	Storage       StorageConfig       `yaml:"storage"`
	Identity      IdentityConfig      `yaml:"identity"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s
}

// TokenConfig holds the token codec settings.
type TokenConfig struct {
	Secret     string        `yaml:"secret"`      // required, min 32 bytes
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	AccessTTL  time.Duration `yaml:"access_ttl"`  // default: 15m
	RefreshTTL time.Duration `yaml:"refresh_ttl"` // default: 168h
}

// StorageConfig holds tenant-scoped storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`          // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 25
	MinConns        int32         `yaml:"min_conns"`         // default: 5
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: 5m
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: false
}

// IdentityConfig holds the user account store settings. With storage.type
// "memory" the Users seeds populate the in-memory store; with "postgres"
// the users table is used and the seeds are ignored.
type IdentityConfig struct {
	Users []identity.Seed `yaml:"users"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		RateLimit: ratelimit.Defaults(),
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:        25,
				MinConns:        5,
				MaxConnLifetime: 5 * time.Minute,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
