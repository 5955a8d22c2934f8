package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a panic into a 500. With verbose set the response carries
// the panic value and stack trace.
func Recoverer(log *slog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrap(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				log.Error("Panic serving request", "method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(stack))
				if sw.wroteHeader {
					return
				}

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				sw.WriteHeader(http.StatusInternalServerError)
				if verbose {
					_, _ = fmt.Fprintf(sw, "panic: %v\n\n%s", rec, stack)
					return
				}
				_, _ = sw.Write([]byte(http.StatusText(http.StatusInternalServerError) + "\n"))
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
