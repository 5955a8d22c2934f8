// Package apitest runs a fully wired application on an in-memory store for
// route group tests.
package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jacobshu/forum/internal/bootstrap"
	"github.com/jacobshu/forum/internal/config"
	"github.com/jacobshu/forum/internal/core"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/database/databasetest"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/jacobshu/forum/internal/mail"
	"github.com/jacobshu/forum/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type Env struct {
	App   *core.App
	Store *databasetest.MemStore
	Clock *clockwork.FakeClock
}

// New creates an application. mutate, when given, adjusts the
// configuration first.
func New(t *testing.T, mutate ...func(*config.Config)) *Env {
	t.Helper()
	cfg := config.Default()
	cfg.SecretKey = "apitest-secret-key"
	cfg.DevDatabaseURI = "postgres://forum@127.0.0.1:1/forum?sslmode=disable"
	cfg.MailDefaultSender = "forum@example.com"
	cfg.BaseURL = "https://forum.example.org"
	for _, fn := range mutate {
		fn(cfg)
	}

	store := databasetest.NewMemStore()
	clock := clockwork.NewFakeClock()
	app, err := bootstrap.CreateApp(cfg, logger.Discard(), bootstrap.WithStore(store), bootstrap.WithClock(clock),
		bootstrap.WithMailOptions(mail.WithOutbox()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return &Env{App: app, Store: store, Clock: clock}
}

func (e *Env) CreateUser(t *testing.T, username, email, password string, admin bool) types.User {
	t.Helper()
	hash, err := e.App.Auth.HashPassword(password)
	require.NoError(t, err)
	u, err := e.Store.CreateUser(context.Background(), database.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      admin,
	})
	require.NoError(t, err)
	return u
}

// Client is a browser: it keeps the cookies the application sets.
type Client struct {
	env     *Env
	cookies map[string]*http.Cookie
}

func (e *Env) Client() *Client {
	return &Client{env: e, cookies: map[string]*http.Cookie{}}
}

func (c *Client) Do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.env.App.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *Client) Get(target string) *httptest.ResponseRecorder {
	return c.Do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *Client) PostForm(target string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

func (c *Client) PostJSON(target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.Do(req)
}

// Login signs the client in through the login form.
func (c *Client) Login(t *testing.T, email, password string) {
	t.Helper()
	rec := c.PostForm("/auth/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}
