// Package config provides centralized configuration management for the exporter.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Source kinds.
const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Database DatabaseConfig
	Export   ExportConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// SourceConfig selects and configures the row source.
type SourceConfig struct {
	// Kind is the row source: rest, postgres or sqlite (default: rest)
	Kind string `env:"SOURCE_KIND" default:"rest"`

	// URL is the project URL of the REST backend, without /rest/v1
	URL string `env:"SUPABASE_URL" envAlt:"VITE_SUPABASE_URL"`

	// APIKey is sent as both apikey and bearer token. Use a key that can read every table.
	APIKey string `env:"SUPABASE_SERVICE_ROLE_KEY" envAlt:"SUPABASE_ANON_KEY"`

	// Schema selects a non-public schema via Accept-Profile (default: public)
	Schema string `env:"SUPABASE_SCHEMA"`

	// Timeout is the per-request timeout for the REST source (default: 30s)
	Timeout time.Duration `env:"SOURCE_TIMEOUT" default:"30s"`

	// MaxRetries is the number of retries after a transient failure (default: 3)
	MaxRetries int `env:"SOURCE_MAX_RETRIES" default:"3"`

	// InitialBackoff is the first retry delay, doubled per retry (default: 200ms)
	InitialBackoff time.Duration `env:"SOURCE_INITIAL_BACKOFF" default:"200ms"`

	// MaxBackoff caps the retry delay (default: 5s)
	MaxBackoff time.Duration `env:"SOURCE_MAX_BACKOFF" default:"5s"`

	// SQLitePath is the database file for the sqlite source
	SQLitePath string `env:"SQLITE_PATH"`
}

// DatabaseConfig holds settings for the postgres source.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ExportConfig holds settings for the export run.
type ExportConfig struct {
	// OutputPath is where the artifact is written; "-" writes to stdout (default: seed-data.sql)
	OutputPath string `env:"OUTPUT_PATH" default:"seed-data.sql"`

	// RegistryFile is an optional YAML table registry replacing the built-in tables
	RegistryFile string `env:"REGISTRY_FILE"`

	// Timeout bounds a whole run (default: 5m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"5m"`

	// TimestampSuffixes mark string columns cast to timestamptz (default: _at,_time)
	TimestampSuffixes []string `env:"TIMESTAMP_SUFFIXES" default:"_at,_time"`

	// TimestampNames are exact column names cast to timestamptz (default: timestamp,last_updated)
	TimestampNames []string `env:"TIMESTAMP_NAMES" default:"timestamp,last_updated"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 6m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"6m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// APIKeys, when set, are required in X-API-Key on /api routes
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// HistorySize is the number of export runs kept for /api/runs (default: 50)
	HistorySize int `env:"SERVER_HISTORY_SIZE" default:"50"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
