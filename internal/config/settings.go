package config

import (
	"maps"
	"slices"

	"github.com/spf13/cast"
)

// Settings is the flat option map applied to an application instance.
// Environment-backed options that were not set hold nil.
type Settings map[string]any

func (c *Config) Settings() Settings {
	s := Settings{
		"DEBUG":                            c.Debug,
		"SECRET_KEY":                       nilIfEmpty(c.SecretKey),
		"SQLALCHEMY_TRACK_MODIFICATIONS":   c.TrackModifications,
		"SQLALCHEMY_ECHO":                  c.SQLEcho,
		"SQLALCHEMY_DATABASE_URI":          nilIfEmpty(c.DevDatabaseURI),
		"DEBUG_TB_ENABLED":                 c.DebugToolbarEnabled,
		"DEBUG_TB_INTERCEPT_REDIRECTS":     c.DebugToolbarInterceptRedirects,
		"DEBUG_TB_TEMPLATE_EDITOR_ENABLED": c.DebugToolbarTemplateEditor,
		"MAIL_SERVER":                      nilIfEmpty(c.MailServer),
		"MAIL_PORT":                        nilIfEmpty(c.MailPort),
		"MAIL_USE_TLS":                     c.MailUseTLS,
		"MAIL_DEFAULT_SENDER":              nilIfEmpty(c.MailDefaultSender),
		"MAIL_USE_SSL":                     c.MailUseSSL,
		"MAIL_USERNAME":                    nilIfEmpty(c.MailUsername),
		"MAIL_PASSWORD":                    nilIfEmpty(c.MailPassword),
		"MAIL_DEBUG":                       c.MailDebug,
		"MAIL_MAX_EMAILS":                  c.MailMaxEmails,
		"MAIL_SUPPRESS_SEND":               c.MailSuppressSend,
		"MAIL_ASCII_ATTACHMENTS":           c.MailASCIIAttachments,
		"TESTING":                          c.Testing,
		"METRICS_API_KEY":                  nilIfEmpty(c.MetricsAPIKey),
		"BASE_URL":                         nilIfEmpty(c.BaseURL),
	}
	return s
}

func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s Settings) String(key string) string {
	return cast.ToString(s[key])
}

func (s Settings) Bool(key string) bool {
	return cast.ToBool(s[key])
}

func (s Settings) Int(key string) int {
	return cast.ToInt(s[key])
}

// IsSet reports whether key holds a non-nil value.
func (s Settings) IsSet(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Keys returns the option names in sorted order.
func (s Settings) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns an independent copy.
func (s Settings) Clone() Settings {
	return maps.Clone(s)
}
