// Package auth is the route group for signing in and out, registration,
// password resets and API tokens.
package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/api/handler"
	"github.com/jacobshu/forum/internal/core"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 60 * 24 * time.Hour
	resetTokenTTL   = 30 * time.Minute
)

type Group struct {
	app    *core.App
	h      *handler.Service
	routes handler.Table
}

var _ core.RouteGroup = (*Group)(nil)

func New(app *core.App) (*Group, error) {
	h, err := handler.ForApp(app, "auth")
	if err != nil {
		return nil, err
	}
	g := &Group{app: app, h: h}
	g.routes = handler.Table{
		{Name: "login_route", Method: http.MethodGet, Pattern: "/login", Handler: http.HandlerFunc(g.loginForm)},
		{Name: "login_route", Method: http.MethodPost, Pattern: "/login", Handler: http.HandlerFunc(g.login)},
		{Name: "register_route", Method: http.MethodGet, Pattern: "/register", Handler: http.HandlerFunc(g.registerForm)},
		{Name: "register_route", Method: http.MethodPost, Pattern: "/register", Handler: http.HandlerFunc(g.register)},
		{Name: "logout_route", Method: http.MethodPost, Pattern: "/logout", Handler: http.HandlerFunc(g.logout)},
		{Name: "reset_request_route", Method: http.MethodGet, Pattern: "/reset", Handler: http.HandlerFunc(g.resetRequestForm)},
		{Name: "reset_request_route", Method: http.MethodPost, Pattern: "/reset", Handler: http.HandlerFunc(g.resetRequest)},
		{Name: "reset_token_route", Method: http.MethodGet, Pattern: "/reset/{token}", Handler: http.HandlerFunc(g.resetTokenForm)},
		{Name: "reset_token_route", Method: http.MethodPost, Pattern: "/reset/{token}", Handler: http.HandlerFunc(g.resetToken)},
		{Name: "token_route", Method: http.MethodPost, Pattern: "/token", Handler: http.HandlerFunc(g.token)},
		{Name: "refresh_route", Method: http.MethodPost, Pattern: "/token/refresh", Handler: http.HandlerFunc(g.refresh)},
		{Name: "revoke_route", Method: http.MethodPost, Pattern: "/token/revoke", Handler: http.HandlerFunc(g.revoke)},
	}
	return g, nil
}

func (g *Group) Name() string   { return "auth" }
func (g *Group) Prefix() string { return "/auth" }

func (g *Group) Endpoints() []core.Endpoint {
	return g.routes.Endpoints()
}

func (g *Group) Routes(r chi.Router) {
	g.routes.Register(r)
}
