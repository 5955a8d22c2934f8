package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jacobshu/forum/internal/session"
	"github.com/jacobshu/forum/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutFile = "templates/layout.html"

type templateSet struct {
	tmpl *template.Template
}

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *types.User
	Flashes []string
	Data    map[string]any
}

func (s *Service) funcs() template.FuncMap {
	return template.FuncMap{
		"url_for": func(endpoint string, params ...any) (string, error) {
			strs := make([]string, len(params))
			for i, p := range params {
				strs[i] = fmt.Sprint(p)
			}
			return s.URLFor(endpoint, strs...)
		},
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
	}
}

func (s *Service) loadTemplates() error {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return err
	}

	s.templates = map[string]*templateSet{}
	for _, p := range pages {
		if p == layoutFile {
			continue
		}
		name := path.Base(p)
		t, err := template.New(name).Funcs(s.funcs()).ParseFS(templateFS, layoutFile, p)
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		s.templates[name] = &templateSet{tmpl: t}
		if s.config.Toolbar != nil {
			s.config.Toolbar.RegisterTemplates(name)
		}
	}
	return nil
}

// Render executes the named page inside the layout.
func (s *Service) Render(w http.ResponseWriter, r *http.Request, code int, name, title string, data map[string]any) {
	set, ok := s.templates[name]
	if !ok {
		s.log.Error("Unknown template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	page := Page{Title: title, Data: data}
	if u, ok := session.UserFromContext(r.Context()); ok {
		page.User = &u
	}
	if s.config.Sessions != nil {
		page.Flashes = s.config.Sessions.Flashes(w, r)
	}

	var buf bytes.Buffer
	if err := set.tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		s.log.Error("Error rendering template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// RenderError answers with an error page, or a JSON error body when the
// client asked for JSON.
func (s *Service) RenderError(w http.ResponseWriter, r *http.Request, code int) {
	if WantsJSON(r) {
		s.RespondWithError(w, code, strings.ToLower(http.StatusText(code)))
		return
	}
	s.Render(w, r, code, "error.html", http.StatusText(code), map[string]any{"Code": code})
}

// WantsJSON reports whether the client asked for a JSON response.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// Static serves the embedded assets. Mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
