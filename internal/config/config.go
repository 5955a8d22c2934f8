// Package config loads the application configuration from the environment
// and exposes it both as a typed struct and as the flat option map the rest
// of the application reads.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"dev"`
	Port   string `env:"PORT" default:"8080"`
	// BaseURL is the public origin used for links in outgoing mail.
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080"`

	SecretKey      string `env:"SECRET_KEY"`
	DevDatabaseURI string `env:"DEV_DATABASE_URI"`
	// DatabaseURI is read but never used to open the store.
	DatabaseURI string `env:"DATABASE_URI"`

	MailServer        string `env:"MAIL_SERVER"`
	MailPort          string `env:"MAIL_PORT"`
	MailDefaultSender string `env:"MAIL_DEFAULT_SENDER"`
	MailUsername      string `env:"MAIL_USERNAME"`
	MailPassword      string `env:"MAIL_PASSWORD"`
	MailMaxEmails     int    `env:"MAIL_MAX_EMAILS" default:"0"`

	// MetricsAPIKey lets scrapers read /admin/metrics without a session.
	MetricsAPIKey string `env:"METRICS_API_KEY"`

	LogFile       string `env:"LOG_FILE" default:"application_error.log"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" default:"28"`

	// Fixed options, never read from the environment.
	Debug                          bool
	Testing                        bool
	TrackModifications             bool
	SQLEcho                        bool
	DebugToolbarEnabled            bool
	DebugToolbarInterceptRedirects bool
	DebugToolbarTemplateEditor     bool
	MailUseTLS                     bool
	MailUseSSL                     bool
	MailDebug                      bool
	MailSuppressSend               bool
	MailASCIIAttachments           bool
}

// Load reads .env (when present) and the process environment. Missing
// variables are left empty; call Validate before using the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.applyFixed()

	return &cfg, nil
}

func (c *Config) applyFixed() {
	c.Debug = true
	c.Testing = false
	c.TrackModifications = false
	c.SQLEcho = false
	c.DebugToolbarEnabled = false
	c.DebugToolbarInterceptRedirects = false
	c.DebugToolbarTemplateEditor = false
	c.MailUseTLS = true
	c.MailUseSSL = false
	c.MailDebug = true
	c.MailSuppressSend = true
	c.MailASCIIAttachments = true
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Missing reports whether name was reported as a missing required option.
func (e *ValidationError) Missing(name string) bool {
	for _, p := range e.Problems {
		if p == name+" is required" {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	var problems []string

	required := []struct{ name, value string }{
		{"SECRET_KEY", c.SecretKey},
		{"DEV_DATABASE_URI", c.DevDatabaseURI},
	}
	if !c.MailSuppressSend && !c.Testing {
		required = append(required,
			struct{ name, value string }{"MAIL_SERVER", c.MailServer},
			struct{ name, value string }{"MAIL_PORT", c.MailPort},
			struct{ name, value string }{"MAIL_DEFAULT_SENDER", c.MailDefaultSender},
		)
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, r.name+" is required")
		}
	}

	if c.MailPort != "" {
		if _, err := c.MailPortNumber(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "BASE_URL must be an absolute http or https URL")
	}
	if c.MailUseTLS && c.MailUseSSL {
		problems = append(problems, "MAIL_USE_TLS and MAIL_USE_SSL are mutually exclusive")
	}
	if c.MailMaxEmails < 0 {
		problems = append(problems, "MAIL_MAX_EMAILS must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

var errBadPort = errors.New("MAIL_PORT must be a number between 1 and 65535")

// MailPortNumber parses MAIL_PORT. An unset port yields 0.
func (c *Config) MailPortNumber() (int, error) {
	if c.MailPort == "" {
		return 0, nil
	}
	port, err := cast.ToIntE(c.MailPort)
	if err != nil || port < 1 || port > 65535 {
		return 0, errBadPort
	}
	return port, nil
}

// IsDev reports whether destructive development helpers are allowed.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// Default returns a configuration carrying the fixed options and the
// ambient defaults, with every environment-backed value empty.
func Default() *Config {
	cfg := &Config{
		AppEnv:        "dev",
		Port:          "8080",
		BaseURL:       "http://localhost:8080",
		LogFile:       "application_error.log",
		LogMaxSizeMB:  10,
		LogMaxBackups: 5,
		LogMaxAgeDays: 28,
	}
	cfg.applyFixed()
	return cfg
}
