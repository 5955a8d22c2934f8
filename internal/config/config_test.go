package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SECRET_KEY", "DEV_DATABASE_URI", "DATABASE_URI",
	"MAIL_SERVER", "MAIL_PORT", "MAIL_DEFAULT_SENDER", "MAIL_MAX_EMAILS", "MAIL_USERNAME", "MAIL_PASSWORD", "METRICS_API_KEY",
	"BASE_URL",
}

func unsetEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.SecretKey = "secret"
	cfg.DevDatabaseURI = "postgres://forum@localhost/forum?sslmode=disable"
	return cfg
}

func TestLoad_MissingEnvBecomesNil(t *testing.T) {
	unsetEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.SecretKey)
	assert.Empty(t, cfg.DevDatabaseURI)

	s := cfg.Settings()
	for _, key := range []string{"SECRET_KEY", "SQLALCHEMY_DATABASE_URI", "MAIL_SERVER", "MAIL_PORT", "MAIL_DEFAULT_SENDER"} {
		assert.Contains(t, s, key)
		assert.Nil(t, s[key], key)
		assert.False(t, s.IsSet(key), key)
	}
}

func TestLoad_FixedOptions(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("DEV_DATABASE_URI", "postgres://localhost/dev")
	t.Setenv("DATABASE_URI", "postgres://localhost/prod")
	t.Setenv("MAIL_PORT", "587")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings()
	assert.True(t, s.Bool("DEBUG"))
	assert.False(t, s.Bool("TESTING"))
	assert.False(t, s.Bool("SQLALCHEMY_TRACK_MODIFICATIONS"))
	assert.False(t, s.Bool("SQLALCHEMY_ECHO"))
	assert.False(t, s.Bool("DEBUG_TB_ENABLED"))
	assert.False(t, s.Bool("DEBUG_TB_INTERCEPT_REDIRECTS"))
	assert.False(t, s.Bool("DEBUG_TB_TEMPLATE_EDITOR_ENABLED"))
	assert.True(t, s.Bool("MAIL_USE_TLS"))
	assert.False(t, s.Bool("MAIL_USE_SSL"))
	assert.True(t, s.Bool("MAIL_DEBUG"))
	assert.True(t, s.Bool("MAIL_SUPPRESS_SEND"))
	assert.True(t, s.Bool("MAIL_ASCII_ATTACHMENTS"))

	assert.Equal(t, "s3cret", s.String("SECRET_KEY"))
	assert.Equal(t, "postgres://localhost/dev", s.String("SQLALCHEMY_DATABASE_URI"))
	assert.Equal(t, 587, s.Int("MAIL_PORT"))
	assert.Equal(t, "postgres://localhost/prod", cfg.DatabaseURI)
	assert.Equal(t, "http://localhost:8080", s.String("BASE_URL"))
}

func TestLoad_BaseURL(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BASE_URL", "https://forum.example.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://forum.example.org", cfg.Settings().String("BASE_URL"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing []string
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing secret and database",
			mutate:  func(c *Config) { c.SecretKey = ""; c.DevDatabaseURI = "" },
			missing: []string{"SECRET_KEY", "DEV_DATABASE_URI"},
			wantErr: true,
		},
		{
			name:    "bad mail port",
			mutate:  func(c *Config) { c.MailPort = "smtp" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.MailPort = "70000" },
			wantErr: true,
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.BaseURL = "/forum" },
			wantErr: true,
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.BaseURL = "forum.example.org" },
			wantErr: true,
		},
		{
			name:    "tls and ssl",
			mutate:  func(c *Config) { c.MailUseSSL = true },
			wantErr: true,
		},
		{
			name:    "mail transport required when sending",
			mutate:  func(c *Config) { c.MailSuppressSend = false },
			missing: []string{"MAIL_SERVER", "MAIL_PORT", "MAIL_DEFAULT_SENDER"},
			wantErr: true,
		},
		{
			name:   "testing suppresses mail requirements",
			mutate: func(c *Config) { c.MailSuppressSend = false; c.Testing = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want *ValidationError, got %v", err)
			for _, name := range tt.missing {
				assert.True(t, verr.Missing(name), "expected %s to be reported missing", name)
			}
		})
	}
}

func TestSettings_CloneIsIndependent(t *testing.T) {
	s := validConfig().Settings()
	c := s.Clone()
	c["DEBUG"] = false

	assert.True(t, s.Bool("DEBUG"))
	assert.Equal(t, s.Keys(), c.Keys())
}
