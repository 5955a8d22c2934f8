package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/jacobshu/forum/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := NewRequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forum/?page=2", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "bytes=15")
	assert.Contains(t, buf.String(), `path="/forum/?page=2"`)
}

func TestRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	t.Run("quiet", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Recoverer(logger.Discard(), false)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "kaboom")
	})

	t.Run("verbose", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Recoverer(logger.Discard(), true)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "panic: kaboom")
		assert.Contains(t, rec.Body.String(), "goroutine")
	})
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m, "/admin/metrics"))
	r.Get("/forum/t/{threadID}", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/admin/metrics", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/forum/t/1", "/forum/t/2", "/admin/metrics", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/forum/t/{threadID}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))

	hits, err := m.Hits()
	assert.NoError(t, err)
	assert.NotContains(t, hits, "/admin/metrics")
}

func TestMetricsInc(t *testing.T) {
	m := metrics.New()
	h := MetricsInc(m.StaticHits)(http.NotFoundHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/x.css", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/y.css", nil))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StaticHits))
}
