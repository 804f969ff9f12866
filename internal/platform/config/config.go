// Package config loads application configuration from environment variables.
// All variables use the PROGRESS_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Roster source kinds.
const (
	SourceXLSX     = "xlsx"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Roster   RosterConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Catalog  CatalogConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// Metrics exposes GET /metrics.
	Metrics bool
}

// RosterConfig selects where the student table is read from.
type RosterConfig struct {
	Source string // "xlsx", "csv" or "postgres"
	Path   string
	Sheet  string
	// ReloadInterval is how often the source is polled for changes.
	// Zero disables live reload.
	ReloadInterval time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables the cache.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// CatalogConfig points at an assessment catalog file. Empty uses the
// catalog compiled into the binary.
type CatalogConfig struct {
	Path string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with PROGRESS_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:    envInt("PROGRESS_SERVER_PORT", 8080),
			Host:    envStr("PROGRESS_SERVER_HOST", "0.0.0.0"),
			Metrics: envBool("PROGRESS_SERVER_METRICS", true),
		},
		Roster: RosterConfig{
			Source:         strings.ToLower(envStr("PROGRESS_ROSTER_SOURCE", SourceXLSX)),
			Path:           envStr("PROGRESS_ROSTER_PATH", "SMEI Student Progression.xlsx"),
			Sheet:          envStr("PROGRESS_ROSTER_SHEET", "SMEI"),
			ReloadInterval: envDuration("PROGRESS_ROSTER_RELOAD_INTERVAL", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("PROGRESS_DATABASE_URL", ""),
			MaxConns: envInt("PROGRESS_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("PROGRESS_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("PROGRESS_CACHE_URL", ""),
			TTL: envDuration("PROGRESS_CACHE_TTL", 10*time.Minute),
		},
		Catalog: CatalogConfig{
			Path: envStr("PROGRESS_CATALOG_PATH", ""),
		},
		Log: LogConfig{
			Level:  envStr("PROGRESS_LOG_LEVEL", "info"),
			Format: envStr("PROGRESS_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Roster.Source {
	case SourceXLSX, SourceCSV:
		if c.Roster.Path == "" {
			return fmt.Errorf("PROGRESS_ROSTER_PATH is required for the %s source", c.Roster.Source)
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("PROGRESS_DATABASE_URL is required for the postgres source")
		}
	default:
		return fmt.Errorf("PROGRESS_ROSTER_SOURCE must be 'xlsx', 'csv' or 'postgres', got %q", c.Roster.Source)
	}

	if c.Roster.Source == SourceXLSX && c.Roster.Sheet == "" {
		return fmt.Errorf("PROGRESS_ROSTER_SHEET is required for the xlsx source")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PROGRESS_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Roster.ReloadInterval < 0 {
		return fmt.Errorf("PROGRESS_ROSTER_RELOAD_INTERVAL must not be negative")
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("PROGRESS_DATABASE_MIN_CONNS (%d) exceeds PROGRESS_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	return nil
}

// CacheEnabled reports whether a cache URL is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
