// Package handler holds what the route groups share: JSON and HTML
// responders, the embedded templates and the static assets.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jacobshu/forum/internal/core"
	"github.com/jacobshu/forum/internal/database"
	"github.com/jacobshu/forum/internal/debugbar"
	"github.com/jacobshu/forum/internal/logger"
	"github.com/jacobshu/forum/internal/session"
)

// URLFunc builds the path of a named endpoint.
type URLFunc func(endpoint string, params ...string) (string, error)

type Config struct {
	Log      *slog.Logger
	Sessions *session.Manager
	Toolbar  *debugbar.Toolbar
	URLFor   URLFunc
}

type Service struct {
	config    Config
	log       *slog.Logger
	templates map[string]*templateSet
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHandlerService(cfg Config) (*Service, error) {
	s := &Service{config: cfg, log: cfg.Log}
	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Log() *slog.Logger {
	return s.log
}

func (s *Service) URLFor(endpoint string, params ...string) (string, error) {
	return s.config.URLFor(endpoint, params...)
}

func (s *Service) RespondWithError(w http.ResponseWriter, code int, msg string) {
	s.Respond(w, code, ErrorResponse{Error: msg})
}

func (s *Service) RespondInternalServerError(w http.ResponseWriter) {
	s.RespondWithError(w, http.StatusInternalServerError, "something went wrong")
}

// Respond writes payload as JSON. A nil payload writes only the status.
func (s *Service) Respond(w http.ResponseWriter, code int, payload any) {
	if payload == nil {
		w.WriteHeader(code)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Error serializing data for response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"something went wrong"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// Decode reads a JSON request body into dst.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
}

// StatusFor maps storage errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail renders an error page for err, logging anything that is not a
// client error.
func (s *Service) Fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.RenderError(w, r, code)
}

// Redirect sends a 303 to a named endpoint.
func (s *Service) Redirect(w http.ResponseWriter, r *http.Request, endpoint string, params ...string) {
	u, err := s.URLFor(endpoint, params...)
	if err != nil {
		s.log.Error("Redirect target unresolved", "endpoint", endpoint, "error", err)
		s.RenderError(w, r, http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, u, http.StatusSeeOther)
}

func (s *Service) Flash(w http.ResponseWriter, r *http.Request, msg string) {
	s.config.Sessions.Flash(w, r, msg)
}

// ForApp builds the service a route group of app uses.
func ForApp(app *core.App, group string) (*Service, error) {
	return NewHandlerService(Config{
		Log:      logger.Named(app.Log, group),
		Sessions: app.Login,
		Toolbar:  app.Toolbar,
		URLFor:   app.URLFor,
	})
}
