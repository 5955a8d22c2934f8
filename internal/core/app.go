// Package core holds the application instance: every extension handle bound
// to it, the router and the table of named endpoints.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/internal/auth"
	"github.com/jacobshu/forum/internal/config"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/debugbar"
	"github.com/jacobshu/forum/internal/mail"
	"github.com/jacobshu/forum/internal/metrics"
	"github.com/jacobshu/forum/internal/session"
	"github.com/jonboulle/clockwork"
)

var (
	ErrPrefixCollision = errors.New("route prefix already mounted")
	ErrDuplicateGroup  = errors.New("route group already mounted")
	ErrDuplicateRoute  = errors.New("endpoint name already registered")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrMissingParam    = errors.New("missing url parameter")
)

// Endpoint is a named route. Pattern is relative to its group's prefix.
type Endpoint struct {
	Name    string
	Methods []string
	Pattern string
}

// RouteGroup is a set of endpoints mounted under one prefix.
type RouteGroup interface {
	Name() string
	Prefix() string
	Endpoints() []Endpoint
	Routes(r chi.Router)
}

type App struct {
	Config   *config.Config
	Settings config.Settings
	Log      *slog.Logger
	Clock    clockwork.Clock

	DB       *database.DB
	Store    database.Store
	Migrator *database.Migrator
	Auth     *auth.Service
	Login    *session.Manager
	Mail     *mail.Mailer
	Toolbar  *debugbar.Toolbar
	Metrics  *metrics.Metrics

	router    *chi.Mux
	groups    []RouteGroup
	endpoints map[string]string
}

func New(cfg *config.Config, log *slog.Logger) *App {
	return &App{
		Config:    cfg,
		Log:       log,
		Clock:     clockwork.NewRealClock(),
		router:    chi.NewRouter(),
		endpoints: map[string]string{},
	}
}

// Use appends middleware to the root router. It must be called before any
// route is registered.
func (a *App) Use(mw ...func(http.Handler) http.Handler) {
	a.router.Use(mw...)
}

// Handle registers a root level endpoint under name.
func (a *App) Handle(name, method, pattern string, h http.Handler) error {
	if err := a.register(name, pattern); err != nil {
		return err
	}
	a.router.Method(method, pattern, h)
	return nil
}

func (a *App) register(name, path string) error {
	if _, ok := a.endpoints[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, name)
	}
	a.endpoints[name] = path
	return nil
}

// Mount attaches g under its prefix and adds its endpoints to the table as
// "<group>.<endpoint>".
func (a *App) Mount(g RouteGroup) error {
	prefix := normalizePrefix(g.Prefix())
	if prefix == "" {
		return fmt.Errorf("group %q: prefix must be a non-root absolute path", g.Name())
	}

	for _, existing := range a.groups {
		if existing.Name() == g.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateGroup, g.Name())
		}
		if overlaps(normalizePrefix(existing.Prefix()), prefix) {
			return fmt.Errorf("%w: %s (group %s) overlaps %s (group %s)",
				ErrPrefixCollision, prefix, g.Name(), existing.Prefix(), existing.Name())
		}
	}

	staged := map[string]string{}
	for _, ep := range g.Endpoints() {
		name := g.Name() + "." + ep.Name
		if _, ok := a.endpoints[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, name)
		}
		if _, ok := staged[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, name)
		}
		staged[name] = joinPath(prefix, ep.Pattern)
	}

	sub := chi.NewRouter()
	g.Routes(sub)
	a.router.Mount(prefix, sub)

	maps.Copy(a.endpoints, staged)
	a.groups = append(a.groups, g)
	a.Log.Debug("Mounted route group", "group", g.Name(), "prefix", prefix, "endpoints", len(staged))
	return nil
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}

// overlaps reports whether one prefix equals or contains the other on a
// path segment boundary.
func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

func joinPath(prefix, pattern string) string {
	if pattern == "" || pattern == "/" {
		return prefix + "/"
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	return prefix + pattern
}

func (a *App) Groups() []RouteGroup {
	return append([]RouteGroup(nil), a.groups...)
}

// Endpoints returns a copy of the endpoint table, name to path pattern.
func (a *App) Endpoints() map[string]string {
	return maps.Clone(a.endpoints)
}

// URLFor builds the path of a named endpoint. params are key/value pairs
// filling the {key} placeholders of its pattern.
func (a *App) URLFor(endpoint string, params ...string) (string, error) {
	pattern, ok := a.endpoints[endpoint]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}
	if len(params)%2 != 0 {
		return "", fmt.Errorf("url for %s: odd number of params", endpoint)
	}
	for i := 0; i < len(params); i += 2 {
		pattern = strings.ReplaceAll(pattern, "{"+params[i]+"}", params[i+1])
	}
	if i := strings.Index(pattern, "{"); i >= 0 {
		return "", fmt.Errorf("%w: %s needs %s", ErrMissingParam, endpoint, pattern[i:])
	}
	return pattern, nil
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
