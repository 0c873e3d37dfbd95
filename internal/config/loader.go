package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup, so tests and callers can
// supply values without touching the process environment.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.Source.Kind = strings.ToLower(strings.TrimSpace(cfg.Source.Kind))
	cfg.Source.URL = strings.TrimRight(cfg.Source.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, getenv); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := strings.TrimSpace(getenv(envName))
		if value == "" && envAlt != "" {
			value = strings.TrimSpace(getenv(envAlt))
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Source validation
	switch strings.ToLower(c.Source.Kind) {
	case SourceREST:
		if c.Source.URL == "" {
			errs = append(errs, "SUPABASE_URL is required when SOURCE_KIND=rest")
		} else if u, err := url.Parse(c.Source.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("SUPABASE_URL (%q) must be an absolute URL", c.Source.URL))
		}
		if c.Source.APIKey == "" {
			errs = append(errs, "SUPABASE_SERVICE_ROLE_KEY is required when SOURCE_KIND=rest")
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when SOURCE_KIND=postgres")
		}
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required when SOURCE_KIND=sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE_KIND (%q) must be one of: rest, postgres, sqlite", c.Source.Kind))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, "SOURCE_TIMEOUT must be positive")
	}
	if c.Source.MaxRetries < 0 {
		errs = append(errs, "SOURCE_MAX_RETRIES must be non-negative")
	}
	if c.Source.InitialBackoff <= 0 {
		errs = append(errs, "SOURCE_INITIAL_BACKOFF must be positive")
	}
	if c.Source.MaxBackoff < c.Source.InitialBackoff {
		errs = append(errs, "SOURCE_MAX_BACKOFF must be >= SOURCE_INITIAL_BACKOFF")
	}

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Export validation
	if c.Export.OutputPath == "" {
		errs = append(errs, "OUTPUT_PATH must not be empty")
	}
	if c.Export.Timeout <= 0 {
		errs = append(errs, "EXPORT_TIMEOUT must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.HistorySize < 0 {
		errs = append(errs, "SERVER_HISTORY_SIZE must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {Kind: %q, URL: %q, APIKey: %s, SQLitePath: %q}, ",
		c.Source.Kind, c.Source.URL, mask(c.Source.APIKey), c.Source.SQLitePath))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Export: {OutputPath: %q, RegistryFile: %q, Timeout: %s}, ",
		c.Export.OutputPath, c.Export.RegistryFile, c.Export.Timeout))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d configured}, ",
		c.Server.Host, c.Server.Port, len(c.Server.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
