// Package session is the login manager: it keeps the signed-in user in a
// signed cookie, loads that user for each request and redirects anonymous
// visitors to the login view.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jacobshu/forum/internal/types"
)

const (
	sessionName    = "forum_session"
	sessionKeyUser = "user_id"

	DefaultMaxAge = 86400 * 7
)

var ErrLoginViewUnresolved = errors.New("login view is not a registered endpoint")

// UserLoader fetches the user stored in a session.
type UserLoader func(ctx context.Context, id uuid.UUID) (types.User, error)

type Config struct {
	SecretKey string
	Secure    bool
	MaxAge    int
	// LoginView is the endpoint name anonymous users are sent to.
	LoginView string
}

type Manager struct {
	store     *sessions.CookieStore
	loginView string
	loginURL  string
	loader    UserLoader
	log       *slog.Logger
}

func NewManager(cfg Config, log *slog.Logger) *Manager {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultMaxAge
	}

	store := sessions.NewCookieStore([]byte(cfg.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, loginView: cfg.LoginView, log: log}
}

func (m *Manager) LoginView() string {
	return m.loginView
}

// Resolve looks the login view up through urlFor. It must succeed before
// RequireLogin can redirect anywhere.
func (m *Manager) Resolve(urlFor func(endpoint string) (string, error)) error {
	if m.loginView == "" {
		return fmt.Errorf("%w: no login view configured", ErrLoginViewUnresolved)
	}
	u, err := urlFor(m.loginView)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoginViewUnresolved, m.loginView, err)
	}
	m.loginURL = u
	return nil
}

func (m *Manager) LoginURL() string {
	return m.loginURL
}

// SetUserLoader installs the function used to turn a session into a user.
func (m *Manager) SetUserLoader(fn UserLoader) {
	m.loader = fn
}

func (m *Manager) get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, sessionName)
	if err != nil {
		// A tampered or stale cookie yields a fresh session.
		m.log.Debug("Discarding unreadable session", "error", err)
	}
	return s
}

func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	s := m.get(r)
	s.Values[sessionKeyUser] = userID.String()
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	delete(s.Values, sessionKeyUser)
	s.Options.MaxAge = -1
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// CurrentUserID returns the user id stored in the request's session.
func (m *Manager) CurrentUserID(r *http.Request) (uuid.UUID, bool) {
	raw, ok := m.get(r).Values[sessionKeyUser].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, msg string) {
	s := m.get(r)
	s.AddFlash(msg)
	if err := s.Save(r, w); err != nil {
		m.log.Warn("Failed to save flash message", "error", err)
	}
}

// Flashes pops the pending flash messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(r, w); err != nil {
		m.log.Warn("Failed to clear flash messages", "error", err)
	}

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

type ctxKey struct{}

func WithUser(ctx context.Context, u types.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (types.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(types.User)
	return u, ok
}

// Middleware loads the signed-in user, if any, into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.CurrentUserID(r)
		if ok && m.loader != nil {
			u, err := m.loader(r.Context(), id)
			if err == nil {
				r = r.WithContext(WithUser(r.Context(), u))
			} else {
				m.log.Debug("Session user could not be loaded", "user_id", id, "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin sends anonymous visitors to the login view with a next
// parameter pointing back at the requested page.
func (m *Manager) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			target := m.loginURL
			if target == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, target+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects signed-in users without the admin flag.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		if !u.IsAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// SafeNext returns next when it is a local path and fallback otherwise.
func SafeNext(next, fallback string) string {
	if next == "" || next[0] != '/' || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
