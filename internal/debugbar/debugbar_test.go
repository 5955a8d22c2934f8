package debugbar

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacobshu/forum/internal/config"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageHandler struct{ body string }

func (h *pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(h.body))
}

var testSettings = config.Settings{
	"DEBUG":                   true,
	"SECRET_KEY":              "hunter2-hunter2",
	"SQLALCHEMY_DATABASE_URI": "postgres://u:p@db/forum",
	"MAIL_SERVER":             nil,
}

func TestDisabledIsInert(t *testing.T) {
	next := &pageHandler{body: "<html><body>hi</body></html>"}
	tb := New(Config{}, testSettings, clockwork.NewFakeClock())

	assert.False(t, tb.Enabled())
	assert.Same(t, next, tb.Middleware(next))
}

func TestPanelInjected(t *testing.T) {
	tb := New(Config{Enabled: true, TemplateEditorEnabled: true}, testSettings, clockwork.NewFakeClock())
	tb.RegisterTemplates("layout.html", "forum_index.html", "layout.html")
	h := tb.Middleware(&pageHandler{body: "<html><body><p>hi</p></body></html>"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forum/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div id="debugbar"`)
	assert.Contains(t, body, "GET /forum/")
	assert.Contains(t, body, "forum_index.html")
	assert.Contains(t, body, masked)
	assert.NotContains(t, body, "hunter2")
	assert.NotContains(t, body, "u:p@db")
	assert.Regexp(t, `MAIL_SERVER</td><td>None`, body)
	assert.Less(t, strings.Index(body, "debugbar"), strings.Index(body, "</body>"))
	assert.Equal(t, []string{"forum_index.html", "layout.html"}, tb.Templates())
}

func TestNonHTMLUntouched(t *testing.T) {
	tb := New(Config{Enabled: true}, testSettings, nil)
	h := tb.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}</body>`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/token", nil))
	assert.Equal(t, `{"ok":true}</body>`, rec.Body.String())
}

func TestInterceptRedirects(t *testing.T) {
	redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/forum/", http.StatusSeeOther)
	})

	t.Run("intercepted", func(t *testing.T) {
		h := New(Config{Enabled: true, InterceptRedirects: true}, testSettings, nil).Middleware(redirect)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
		assert.Contains(t, rec.Body.String(), `<a href="/forum/">`)
	})

	t.Run("passed through", func(t *testing.T) {
		h := New(Config{Enabled: true}, testSettings, nil).Middleware(redirect)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/forum/", rec.Header().Get("Location"))
	})
}
