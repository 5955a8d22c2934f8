package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/debugbar"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/jacobshu/forum/internal/session"
	"github.com/jacobshu/forum/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubURLFor(endpoint string, params ...string) (string, error) {
	if endpoint == "missing" {
		return "", errors.New("unknown endpoint")
	}
	return "/" + strings.ReplaceAll(endpoint, ".", "/") + strings.Join(params, "/"), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewHandlerService(Config{
		Log:      logger.Discard(),
		Sessions: session.NewManager(session.Config{SecretKey: "test-secret"}, logger.Discard()),
		URLFor:   stubURLFor,
	})
	require.NoError(t, err)
	return s
}

func TestRespond(t *testing.T) {
	s := newTestService(t)

	rec := httptest.NewRecorder()
	s.Respond(rec, http.StatusCreated, map[string]string{"ok": "yes"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Respond(rec, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	s.RespondWithError(rec, http.StatusUnauthorized, "incorrect email or password")
	assert.JSONEq(t, `{"error":"incorrect email or password"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("get: %w", database.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(database.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestRenderPage(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/forum/", nil)
	req = req.WithContext(session.WithUser(req.Context(), types.User{ID: uuid.New(), Username: "ana", IsAdmin: true}))

	rec := httptest.NewRecorder()
	s.Render(rec, req, http.StatusOK, "forum_index.html", "Forum", map[string]any{
		"Categories": []types.Category{{ID: uuid.New(), Title: "General <chat>"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "General &lt;chat&gt;")
	assert.Contains(t, body, "/admin/dashboard_route")
	assert.Contains(t, body, "New category")
	assert.Contains(t, body, "ana")
}

func TestRenderErrorPage(t *testing.T) {
	s := newTestService(t)
	rec := httptest.NewRecorder()
	s.Fail(rec, httptest.NewRequest(http.MethodGet, "/forum/t/x", nil), database.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
	assert.Contains(t, rec.Body.String(), "/auth/login_route")
}

func TestRedirect(t *testing.T) {
	s := newTestService(t)

	rec := httptest.NewRecorder()
	s.Redirect(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "forum.index_route")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/forum/index_route", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.Redirect(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "missing")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTemplatesRegisteredWithToolbar(t *testing.T) {
	tb := debugbar.New(debugbar.Config{}, nil, nil)
	_, err := NewHandlerService(Config{Log: logger.Discard(), Toolbar: tb, URLFor: stubURLFor})
	require.NoError(t, err)

	assert.Contains(t, tb.Templates(), "forum_thread.html")
	assert.NotContains(t, tb.Templates(), "layout.html")
}

func TestStatic(t *testing.T) {
	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/js/script.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toggle-theme")
}

func TestRenderErrorJSON(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/forum/t/x", nil)
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	s.RenderError(rec, req, http.StatusForbidden)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}
