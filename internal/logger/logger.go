// Package logger builds the application's structured logger: a colored
// console handler for humans and an append-only, rotated log file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NameKey is the attribute key that carries the logger name.
const NameKey = "logger"

const DefaultName = "application"

type Options struct {
	Name string

	// File sink. Rotation kicks in once the file exceeds MaxSizeMB.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	ConsoleLevel slog.Level
	// Console defaults to the colorable stdout when nil.
	Console io.Writer
}

// New returns a logger writing DEBUG and above to the file sink and
// ConsoleLevel and above to the console. The returned Closer releases the
// file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.File == "" {
		return nil, nil, errors.New("log file path cannot be empty")
	}
	if dir := filepath.Dir(opts.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	h := fanout{
		NewFileHandler(sink, name),
		NewConsoleHandler(opts.Console, opts.ConsoleLevel),
	}
	return slog.New(h).With(slog.String(NameKey, name)), sink, nil
}

// Named returns a child logger reporting under name.
func Named(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String(NameKey, name))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
