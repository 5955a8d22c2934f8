package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// TimeLayout is the timestamp layout of file sink lines.
const TimeLayout = "2006-01-02 15:04:05,000"

// FileHandler writes one line per record:
//
//	<timestamp>: <level>: <logger-name>: <message> key=value...
type FileHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	name   string
	prefix string
	attrs  []string
}

func NewFileHandler(w io.Writer, name string) *FileHandler {
	return &FileHandler{mu: &sync.Mutex{}, w: w, name: name}
}

func (h *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelDebug
}

func (h *FileHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(TimeLayout))
	b.WriteString(": ")
	b.WriteString(r.Level.String())
	b.WriteString(": ")
	b.WriteString(h.name)
	b.WriteString(": ")
	writeMessage(&b, r.Message)

	for _, a := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == NameKey {
			return true
		}
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == NameKey {
			c.name = a.Value.String()
			continue
		}
		var b strings.Builder
		appendAttr(&b, h.prefix, a)
		c.attrs = append(c.attrs, strings.TrimPrefix(b.String(), " "))
	}
	return c
}

func (h *FileHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *FileHandler) clone() *FileHandler {
	c := *h
	c.attrs = append([]string(nil), h.attrs...)
	return &c
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \"=") || strings.IndexFunc(v, unicode.IsControl) >= 0 {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

// writeMessage escapes control characters so a record never spans lines.
func writeMessage(b *strings.Builder, msg string) {
	if strings.IndexFunc(msg, unicode.IsControl) < 0 {
		b.WriteString(msg)
		return
	}
	for _, r := range msg {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
			continue
		}
		q := strconv.QuoteRune(r)
		b.WriteString(q[1 : len(q)-1])
	}
}
