// Package mail is the outbound mail extension. It speaks SMTP through
// net/smtp. When sending is suppressed it only logs, unless a recorder is
// attached, in which case messages are kept in an outbox for inspection.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"
)

var (
	ErrNoRecipients = errors.New("message has no recipients")
	ErrNoSender     = errors.New("message has no sender and no default sender is configured")
	ErrBadHeader    = errors.New("header value contains a line break")
)

type Config struct {
	Server        string
	Port          int
	Username      string
	Password      string
	DefaultSender string

	UseTLS bool
	UseSSL bool
	Debug  bool
	// SuppressSend and Testing both skip the SMTP connection. Testing also
	// records suppressed messages in the outbox.
	SuppressSend     bool
	Testing          bool
	ASCIIAttachments bool
	// MaxEmails caps how many messages share one connection. Zero means no cap.
	MaxEmails int

	DialTimeout time.Duration
}

// Client is the subset of *smtp.Client the mailer drives.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// DialFunc opens an authenticated SMTP session.
type DialFunc func(ctx context.Context, cfg Config) (Client, error)

type Mailer struct {
	cfg  Config
	log  *slog.Logger
	dial DialFunc
	now  func() time.Time

	mu     sync.Mutex
	record bool
	outbox []Message
}

type Option func(*Mailer)

// WithDialer replaces the SMTP dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Mailer) { m.dial = d }
}

// WithOutbox records suppressed messages so tests can read them back
// with Outbox.
func WithOutbox() Option {
	return func(m *Mailer) { m.record = true }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailer) { m.now = now }
}

func New(cfg Config, log *slog.Logger, opts ...Option) *Mailer {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	m := &Mailer{cfg: cfg, log: log, dial: dialSMTP, now: time.Now, record: cfg.Testing}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Suppressed reports whether sends skip the SMTP server.
func (m *Mailer) Suppressed() bool {
	return m.cfg.SuppressSend || m.cfg.Testing
}

func (m *Mailer) DefaultSender() string {
	return m.cfg.DefaultSender
}

// Outbox returns a copy of the messages recorded while suppressed. It is
// always empty unless Testing is set or WithOutbox was given.
func (m *Mailer) Outbox() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.outbox...)
}

func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	return m.SendAll(ctx, []*Message{msg})
}

// SendAll delivers msgs over as few connections as MaxEmails allows.
func (m *Mailer) SendAll(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := m.prepare(msg); err != nil {
			return err
		}
	}

	if m.Suppressed() {
		if m.record {
			m.mu.Lock()
			for _, msg := range msgs {
				m.outbox = append(m.outbox, *msg)
			}
			m.mu.Unlock()
		}
		for _, msg := range msgs {
			m.log.Info("Mail suppressed", "subject", msg.Subject, "to", msg.Recipients())
		}
		return nil
	}

	var client Client
	sent := 0
	defer func() {
		if client != nil {
			_ = client.Close()
		}
	}()

	for _, msg := range msgs {
		if client != nil && m.cfg.MaxEmails > 0 && sent == m.cfg.MaxEmails {
			m.debug("Reconnecting after max emails", "max_emails", m.cfg.MaxEmails)
			if err := client.Quit(); err != nil {
				m.log.Warn("SMTP quit failed", "error", err)
			}
			client = nil
			sent = 0
		}
		if client == nil {
			c, err := m.dial(ctx, m.cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to mail server: %w", err)
			}
			client = c
		}
		if err := m.deliver(client, msg); err != nil {
			return err
		}
		sent++
	}

	if client != nil {
		err := client.Quit()
		client = nil
		if err != nil {
			m.log.Warn("SMTP quit failed", "error", err)
		}
	}
	return nil
}

func (m *Mailer) prepare(msg *Message) error {
	if msg.From == "" {
		msg.From = m.cfg.DefaultSender
	}
	if msg.From == "" {
		return ErrNoSender
	}
	if len(msg.Recipients()) == 0 {
		return ErrNoRecipients
	}
	if msg.Date.IsZero() {
		msg.Date = m.now()
	}
	return msg.validateHeaders()
}

func (m *Mailer) deliver(c Client, msg *Message) error {
	m.debug("MAIL FROM", "from", msg.From)
	if err := c.Mail(msg.From); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range msg.Recipients() {
		m.debug("RCPT TO", "to", rcpt)
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if err := msg.Render(w, m.cfg.ASCIIAttachments); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message not accepted: %w", err)
	}
	m.log.Info("Mail sent", "subject", msg.Subject, "to", msg.Recipients())
	return nil
}

func (m *Mailer) debug(msg string, args ...any) {
	if m.cfg.Debug {
		m.log.Debug(msg, args...)
	}
}

func dialSMTP(ctx context.Context, cfg Config) (Client, error) {
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	tlsConfig := &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12}

	d := &net.Dialer{Timeout: cfg.DialTimeout}
	var conn net.Conn
	var err error
	if cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: d, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	c, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			_ = c.Close()
			return nil, errors.New("server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Server)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("SMTP auth failed: %w", err)
		}
	}
	return c, nil
}
