package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// populate fills the tagged fields of the struct v, descending into
// nested section structs.
func populate(v reflect.Value) error {
	for i := range v.NumField() {
		field, sf := v.Field(i), v.Type().Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := populate(field); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}

		raw, ok := lookup(name, sf.Tag.Get("envAlt"))
		switch {
		case ok:
		case sf.Tag.Get("required") == "true":
			return fmt.Errorf("required environment variable %s is not set", name)
		default:
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		if err := assign(field, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookup returns the first non-empty value among the named variables.
func lookup(names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// problems accumulates validation failures so all are reported at once.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func oneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, strings.ToLower(v))
}

// Validate reports every invalid setting in a single error.
func (c *Config) Validate() error {
	var p problems

	db := c.Database
	p.check(db.URL != "", "DATABASE_URL is required")
	p.check(oneOf(db.Driver, "postgres", "sqlite"), "DATABASE_DRIVER (%q) must be one of: postgres, sqlite", db.Driver)
	p.check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)

	srv := c.Server
	p.check(srv.Port > 0 && srv.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", srv.Port)
	p.check(srv.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(srv.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.check(srv.RequestTimeout > 0, "SERVER_REQUEST_TIMEOUT must be positive")

	up := c.Upload
	p.check(up.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")
	p.check(up.MaxConcurrent > 0, "UPLOAD_MAX_CONCURRENT must be positive")
	p.check(up.MaxWaitTime > 0, "UPLOAD_MAX_WAIT_TIME must be positive")
	p.check(up.Timeout > 0, "UPLOAD_TIMEOUT must be positive")

	if c.Rate.Enabled {
		p.check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		p.check(c.Rate.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	p.check(oneOf(c.Logging.Level, "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	p.check(oneOf(c.Logging.Format, "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String renders the config for logs with the database URL masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config{Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.Driver, c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.Timeout)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}}", c.Logging.Level, c.Logging.Format)
	return b.String()
}
