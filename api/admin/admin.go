// Package admin is the route group for forum administrators.
package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/internal/core"
	"github.com/jacobshu/forum/internal/session"
)

type Group struct {
	app    *core.App
	h      *handler.Service
	routes handler.Table
}

var _ core.RouteGroup = (*Group)(nil)

func New(app *core.App) (*Group, error) {
	h, err := handler.ForApp(app, "admin")
	if err != nil {
		return nil, err
	}
	g := &Group{app: app, h: h}

	admin := func(fn http.HandlerFunc) http.Handler { return app.Login.RequireAdmin(fn) }
	g.routes = handler.Table{
		{Name: "dashboard_route", Method: http.MethodGet, Pattern: "/", Handler: admin(g.dashboard)},
		{Name: "users_route", Method: http.MethodGet, Pattern: "/users", Handler: admin(g.users)},
		{Name: "toggle_admin_route", Method: http.MethodPost, Pattern: "/users/{userID}/admin", Handler: admin(g.toggleAdmin)},
		{Name: "delete_user_route", Method: http.MethodPost, Pattern: "/users/{userID}/delete", Handler: admin(g.deleteUser)},
		{Name: "metrics_route", Method: http.MethodGet, Pattern: "/metrics", Handler: g.metricsAuth(app.Metrics.Handler())},
		{Name: "reset_route", Method: http.MethodPost, Pattern: "/reset", Handler: admin(g.reset)},
	}
	return g, nil
}

func (g *Group) Name() string   { return "admin" }
func (g *Group) Prefix() string { return "/admin" }

func (g *Group) Endpoints() []core.Endpoint {
	return g.routes.Endpoints()
}

func (g *Group) Routes(r chi.Router) {
	g.routes.Register(r)
}

// metricsAuth admits admins, and scrapers presenting METRICS_API_KEY.
func (g *Group) metricsAuth(next http.Handler) http.Handler {
	requireAdmin := g.app.Login.RequireAdmin(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := g.app.Config.MetricsAPIKey
		if key, err := g.app.Auth.GetAPIKey(r.Header); err == nil && want != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(want)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			g.h.Log().Warn("Metrics request with wrong API key", "remote", r.RemoteAddr)
			g.h.Respond(w, http.StatusUnauthorized, nil)
			return
		}
		requireAdmin.ServeHTTP(w, r)
	})
}

func (g *Group) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := g.app.Store.Stats(r.Context())
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	hits, err := g.app.Metrics.Hits()
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	static, err := g.app.Metrics.Total("forum_static_hits_total")
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}

	g.h.Render(w, r, http.StatusOK, "admin_dashboard.html", "Dashboard", map[string]any{
		"Stats":      stats,
		"Hits":       hits,
		"StaticHits": static,
		"CanReset":   g.app.Config.IsDev(),
	})
}

func (g *Group) users(w http.ResponseWriter, r *http.Request) {
	users, err := g.app.Store.ListUsers(r.Context())
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Render(w, r, http.StatusOK, "admin_users.html", "Users", map[string]any{"Users": users})
}

// target parses the userID path parameter and refuses the signed-in admin's
// own account.
func (g *Group) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		g.h.RenderError(w, r, http.StatusNotFound)
		return uuid.Nil, false
	}
	if me, _ := session.UserFromContext(r.Context()); me.ID == id {
		g.h.Flash(w, r, "You cannot change your own account here.")
		g.h.Redirect(w, r, "admin.users_route")
		return uuid.Nil, false
	}
	return id, true
}

func (g *Group) toggleAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := g.target(w, r)
	if !ok {
		return
	}
	user, err := g.app.Store.GetUser(r.Context(), id)
	if err != nil {
		g.h.Fail(w, r, err)
		return
	}
	if err := g.app.Store.SetAdmin(r.Context(), id, !user.IsAdmin); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("Admin flag changed", "user_id", id, "admin", !user.IsAdmin)
	g.h.Redirect(w, r, "admin.users_route")
}

func (g *Group) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := g.target(w, r)
	if !ok {
		return
	}
	if err := g.app.Store.DeleteUser(r.Context(), id); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Info("User deleted", "user_id", id)
	g.h.Flash(w, r, "User deleted.")
	g.h.Redirect(w, r, "admin.users_route")
}

// reset wipes every table. Only the dev environment allows it.
func (g *Group) reset(w http.ResponseWriter, r *http.Request) {
	if !g.app.Config.IsDev() {
		g.h.Log().Warn("Refused database reset outside dev", "env", g.app.Config.AppEnv)
		g.h.RenderError(w, r, http.StatusForbidden)
		return
	}
	if err := g.app.Store.Reset(r.Context()); err != nil {
		g.h.Fail(w, r, err)
		return
	}
	g.h.Log().Warn("Database reset")

	if err := g.app.Login.Logout(w, r); err != nil {
		g.h.Log().Error("Failed to clear session after reset", "error", err)
	}
	g.h.Redirect(w, r, "forum.index_route")
}
