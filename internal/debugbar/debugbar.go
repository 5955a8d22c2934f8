// Package debugbar renders a diagnostic panel into HTML pages. A disabled
// toolbar adds nothing to the handler chain.
package debugbar

import (
	"bytes"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jacobshu/forum/internal/config"
	"github.com/jonboulle/clockwork"
)

const masked = "********"

type Config struct {
	Enabled               bool
	InterceptRedirects    bool
	TemplateEditorEnabled bool
}

type Toolbar struct {
	cfg      Config
	settings config.Settings
	clock    clockwork.Clock

	mu        sync.RWMutex
	templates []string
}

func New(cfg Config, settings config.Settings, clock clockwork.Clock) *Toolbar {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Toolbar{cfg: cfg, settings: settings.Clone(), clock: clock}
}

func (t *Toolbar) Enabled() bool {
	return t.cfg.Enabled
}

// RegisterTemplates records template names for the panel's template list.
func (t *Toolbar) RegisterTemplates(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		if !slices.Contains(t.templates, n) {
			t.templates = append(t.templates, n)
		}
	}
	slices.Sort(t.templates)
}

func (t *Toolbar) Templates() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.templates)
}

func (t *Toolbar) Middleware(next http.Handler) http.Handler {
	if !t.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := t.clock.Now()
		rec := &bufferedWriter{header: http.Header{}, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if t.cfg.InterceptRedirects && isRedirect(rec.status) && rec.header.Get("Location") != "" {
			t.writeRedirectPage(w, rec)
			return
		}

		body := rec.body.Bytes()
		if isHTML(rec.header) {
			if i := bytes.LastIndex(body, []byte("</body>")); i >= 0 {
				var panel bytes.Buffer
				t.renderPanel(&panel, r, rec.status, t.clock.Since(start))
				body = slices.Concat(body[:i], panel.Bytes(), body[i:])
			}
		}

		copyHeader(w.Header(), rec.header)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(rec.status)
		_, _ = w.Write(body)
	})
}

type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	if b.header.Get("Content-Type") == "" {
		b.header.Set("Content-Type", http.DetectContentType(p))
	}
	return b.body.Write(p)
}

func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = slices.Clone(v)
	}
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400 && code != http.StatusNotModified
}

func isHTML(h http.Header) bool {
	return strings.HasPrefix(h.Get("Content-Type"), "text/html")
}

type setting struct {
	Key, Value string
}

func (t *Toolbar) maskedSettings() []setting {
	out := make([]setting, 0, len(t.settings))
	for _, k := range t.settings.Keys() {
		v := t.settings.String(k)
		if !t.settings.IsSet(k) {
			v = "None"
		} else if isSecret(k) {
			v = masked
		}
		out = append(out, setting{Key: k, Value: v})
	}
	return out
}

func isSecret(key string) bool {
	for _, s := range []string{"SECRET", "PASSWORD", "DATABASE_URI", "TOKEN", "API_KEY"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

var panelTmpl = template.Must(template.New("panel").Parse(`
<div id="debugbar" style="position:fixed;bottom:0;right:0;max-height:50vh;overflow:auto;background:#222;color:#eee;font:12px monospace;padding:8px;z-index:9999">
<strong>{{.Method}} {{.Path}}</strong> status {{.Status}} in {{.Elapsed}}
<table>{{range .Settings}}<tr><td>{{.Key}}</td><td>{{.Value}}</td></tr>{{end}}</table>
{{if .Templates}}<p>Templates:</p><ul>{{range .Templates}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>
`))

func (t *Toolbar) renderPanel(buf *bytes.Buffer, r *http.Request, status int, elapsed time.Duration) {
	data := struct {
		Method, Path string
		Status       int
		Elapsed      time.Duration
		Settings     []setting
		Templates    []string
	}{
		Method:   r.Method,
		Path:     r.URL.Path,
		Status:   status,
		Elapsed:  elapsed,
		Settings: t.maskedSettings(),
	}
	if t.cfg.TemplateEditorEnabled {
		data.Templates = t.Templates()
	}
	_ = panelTmpl.Execute(buf, data)
}

var redirectTmpl = template.Must(template.New("redirect").Parse(`<!doctype html>
<html><head><title>Redirect intercepted</title></head>
<body><h1>Redirect ({{.Status}})</h1>
<p>The handler redirected to <a href="{{.Location}}">{{.Location}}</a>.</p>
</body></html>
`))

func (t *Toolbar) writeRedirectPage(w http.ResponseWriter, rec *bufferedWriter) {
	for _, c := range rec.header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", c)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = redirectTmpl.Execute(w, struct {
		Status   int
		Location string
	}{rec.status, rec.header.Get("Location")})
}
