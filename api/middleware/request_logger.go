package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type RequestLogger struct {
	handler http.Handler
	log     *slog.Logger
}

func (l *RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := wrap(w)
	l.handler.ServeHTTP(sw, r)
	l.log.Info("Request",
		"method", r.Method,
		"path", r.URL.String(),
		"status", sw.status,
		"bytes", sw.bytes,
		"duration", time.Since(start),
	)
}

func NewRequestLogger(handlerToWrap http.Handler, log *slog.Logger) *RequestLogger {
	return &RequestLogger{handler: handlerToWrap, log: log}
}

// Logger adapts NewRequestLogger to router middleware.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return NewRequestLogger(next, log)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
