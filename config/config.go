// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all runtime configuration
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"licitacoes.db"`
	UseHTTPS     bool   `env:"USE_HTTPS" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	OIDC  OIDCConfig  `envPrefix:"OIDC_"`
	Audit AuditConfig `envPrefix:"AUDIT_"`
}

// OIDCConfig holds the identity provider settings. Authentication is
// disabled when Domain is empty.
type OIDCConfig struct {
	Domain       string `env:"DOMAIN"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether login is configured
func (c OIDCConfig) Enabled() bool {
	return c.Domain != ""
}

// AuditConfig tunes the audit engine
type AuditConfig struct {
	RetentionDays     int           `env:"RETENTION_DAYS" envDefault:"365"`
	RetentionSchedule string        `env:"RETENTION_SCHEDULE" envDefault:"0 3 * * *"`
	QueueSize         int           `env:"QUEUE_SIZE" envDefault:"1024"`
	Workers           int           `env:"WORKERS" envDefault:"2"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	ExportMaxRows     int           `env:"EXPORT_MAX_ROWS" envDefault:"50000"`
	ExportRate        float64       `env:"EXPORT_RATE" envDefault:"1"`
	ExportBurst       int           `env:"EXPORT_BURST" envDefault:"3"`
	DisplayTimezone   string        `env:"DISPLAY_TIMEZONE" envDefault:"UTC"`
	FieldRulesPath    string        `env:"FIELD_RULES_PATH"`
}

// Location returns the time zone used to format exported timestamps
func (c AuditConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads .env when present and parses the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot
func (c *Config) Validate() error {
	var errs []error

	if c.Audit.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_DAYS must be positive, got %d", c.Audit.RetentionDays))
	}
	if c.Audit.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_QUEUE_SIZE must be positive, got %d", c.Audit.QueueSize))
	}
	if c.Audit.Workers <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_WORKERS must be positive, got %d", c.Audit.Workers))
	}
	if c.Audit.ExportMaxRows <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_EXPORT_MAX_ROWS must be positive, got %d", c.Audit.ExportMaxRows))
	}
	if c.Audit.ExportRate <= 0 || c.Audit.ExportBurst <= 0 {
		errs = append(errs, errors.New("AUDIT_EXPORT_RATE and AUDIT_EXPORT_BURST must be positive"))
	}
	if _, err := cron.ParseStandard(c.Audit.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_SCHEDULE %q: %w", c.Audit.RetentionSchedule, err))
	}
	if _, err := time.LoadLocation(c.Audit.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("AUDIT_DISPLAY_TIMEZONE %q: %w", c.Audit.DisplayTimezone, err))
	}
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" || c.OIDC.CallbackURL == "") {
		errs = append(errs, errors.New("OIDC_CLIENT_ID, OIDC_CLIENT_SECRET and OIDC_CALLBACK_URL are required when OIDC_DOMAIN is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
