package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type LogColors struct {
	Base      *color.Color
	Debug     *color.Color
	Info      *color.Color
	Warn      *color.Color
	WarnText  *color.Color
	Error     *color.Color
	ErrorText *color.Color
	Name      *color.Color
}

func DefaultColors() LogColors {
	return LogColors{
		Base:      color.New(color.FgWhite),
		Debug:     color.New(color.Bold, color.FgHiBlack),
		Info:      color.New(color.Bold, color.FgWhite),
		Warn:      color.New(color.Bold, color.FgYellow),
		WarnText:  color.New(color.FgYellow),
		Error:     color.New(color.Bold, color.FgRed),
		ErrorText: color.New(color.FgRed),
		Name:      color.New(color.FgCyan),
	}
}

// ConsoleHandler prints records as colored single lines.
type ConsoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	colors LogColors
	name   string
	prefix string
	attrs  []string
}

func NewConsoleHandler(w io.Writer, level slog.Level) *ConsoleHandler {
	if w == nil {
		w = color.Output
	}
	return &ConsoleHandler{mu: &sync.Mutex{}, w: w, level: level, colors: DefaultColors()}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var str strings.Builder
	c := h.colors

	switch {
	case r.Level < slog.LevelInfo:
		str.WriteString(c.Debug.Sprint("DEBUG "))
		str.WriteString(c.Base.Sprint(r.Message))
	case r.Level < slog.LevelWarn:
		str.WriteString(c.Info.Sprint("INFO "))
		str.WriteString(c.Base.Sprint(r.Message))
	case r.Level < slog.LevelError:
		str.WriteString(c.Warn.Sprint("WARN "))
		str.WriteString(c.WarnText.Sprint(r.Message))
	default:
		str.WriteString(c.Error.Sprint("ERROR "))
		str.WriteString(c.ErrorText.Sprint(r.Message))
	}

	var attrs strings.Builder
	for _, a := range h.attrs {
		attrs.WriteByte(' ')
		attrs.WriteString(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != NameKey {
			appendAttr(&attrs, h.prefix, a)
		}
		return true
	})
	if attrs.Len() > 0 {
		str.WriteString(c.Base.Sprint(attrs.String()))
	}
	if h.name != "" {
		str.WriteString(c.Name.Sprintf(" [%s]", h.name))
	}
	str.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprint(h.w, str.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]string(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == NameKey {
			c.name = a.Value.String()
			continue
		}
		var b strings.Builder
		appendAttr(&b, h.prefix, a)
		c.attrs = append(c.attrs, strings.TrimPrefix(b.String(), " "))
	}
	return &c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}
