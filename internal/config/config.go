// Package config loads the server configuration from a YAML file, an optional
// .env file and HORARIO_* environment variables, in increasing precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// AdminConfig seeds the first admin account.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// NotifyConfig controls the publish notification email.
type NotifyConfig struct {
	Recipients []string `yaml:"recipients"`
	From       string   `yaml:"from"`
	ResendKey  string   `yaml:"resend_key"`
}

// Config is the top-level server configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	DatabasePath    string        `yaml:"database_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Timezone        string        `yaml:"timezone"`
	PublishCooldown time.Duration `yaml:"publish_cooldown"`
	SlowQuery       time.Duration `yaml:"slow_query"`
	SlowRequest     time.Duration `yaml:"slow_request"`
	// WeekRolloverCron is a five-field cron spec; empty disables the rollover job.
	WeekRolloverCron string       `yaml:"week_rollover_cron"`
	CSRFKey          string       `yaml:"csrf_key"`
	Admin            AdminConfig  `yaml:"admin"`
	Notify           NotifyConfig `yaml:"notify"`
}

// Defaults
const (
	DefaultListen          = ":8080"
	DefaultDatabasePath    = "horario.db"
	DefaultPublishCooldown = 2 * time.Second
	DefaultSlowQuery       = 50 * time.Millisecond
	DefaultSlowRequest     = 200 * time.Millisecond
	DefaultFrom            = "Horario <horario@localhost>"
)

// Default returns the configuration written on first run.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.PublishCooldown == 0 {
		c.PublishCooldown = DefaultPublishCooldown
	}
	if c.SlowQuery == 0 {
		c.SlowQuery = DefaultSlowQuery
	}
	if c.SlowRequest == 0 {
		c.SlowRequest = DefaultSlowRequest
	}
	if c.Notify.From == "" {
		c.Notify.From = DefaultFrom
	}
	if c.Notify.Recipients == nil {
		c.Notify.Recipients = []string{}
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PublishCooldown < 0 {
		errs = append(errs, errors.New("publish_cooldown must not be negative"))
	}
	if c.SlowQuery < 0 {
		errs = append(errs, errors.New("slow_query must not be negative"))
	}
	if c.SlowRequest < 0 {
		errs = append(errs, errors.New("slow_request must not be negative"))
	}
	if c.WeekRolloverCron != "" {
		if _, err := cron.ParseStandard(c.WeekRolloverCron); err != nil {
			errs = append(errs, fmt.Errorf("week_rollover_cron: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.IsProduction() && c.CSRFKey == "" {
		errs = append(errs, errors.New("csrf_key is required in production"))
	}
	if c.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CSRFKeyBytes decodes csrf_key, 64 hex characters.
// An empty key returns nil, nil.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("csrf_key must be 64 hex characters")
	}
	return key, nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads path, writing a default file on first run, then applies .env and environment overrides.
// PRE: path is non-empty
// POST: the returned config is normalized and validated
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = *Default()
		if err := Save(path, &cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is normal; the process environment still applies.
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from HORARIO_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("HORARIO_ADDR", &c.Listen)
	str("HORARIO_DB", &c.DatabasePath)
	str("HORARIO_ENV", &c.Env)
	str("HORARIO_LOG_LEVEL", &c.LogLevel)
	str("HORARIO_LOG_FORMAT", &c.LogFormat)
	str("HORARIO_TZ", &c.Timezone)
	str("HORARIO_WEEK_ROLLOVER_CRON", &c.WeekRolloverCron)
	str("HORARIO_CSRF_KEY", &c.CSRFKey)
	str("HORARIO_ADMIN_EMAIL", &c.Admin.Email)
	str("HORARIO_ADMIN_PASSWORD", &c.Admin.Password)
	str("HORARIO_RESEND_KEY", &c.Notify.ResendKey)
	str("HORARIO_RESEND_FROM", &c.Notify.From)
	if v, ok := lookup("HORARIO_NOTIFY_RECIPIENTS"); ok && v != "" {
		c.Notify.Recipients = splitList(v)
	}
	if err := dur("HORARIO_PUBLISH_COOLDOWN", &c.PublishCooldown); err != nil {
		return err
	}
	if err := dur("HORARIO_SLOW_QUERY", &c.SlowQuery); err != nil {
		return err
	}
	return dur("HORARIO_SLOW_REQUEST", &c.SlowRequest)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".horario-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
