package logger

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}: (DEBUG|INFO|WARN|ERROR): [\w.]+: .+$`)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func newTestLogger(t *testing.T, path string) (*slog.Logger, func()) {
	t.Helper()
	l, closer, err := New(Options{File: path, MaxSizeMB: 1, ConsoleLevel: slog.LevelInfo, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	return l, func() { require.NoError(t, closer.Close()) }
}

func TestFileSink_FormatAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application_error.log")
	l, done := newTestLogger(t, path)

	l.Debug("first")
	l.Info("second", "user", "ana")
	l.Warn("third")
	Named(l, "application.mail").Error("fourth", "error", "boom now")
	done()

	lines := readLines(t, path)
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Regexp(t, lineRe, line)
	}

	assert.Contains(t, lines[0], ": DEBUG: application: first")
	assert.Contains(t, lines[1], ": INFO: application: second user=ana")
	assert.Contains(t, lines[2], ": WARN: application: third")
	assert.Contains(t, lines[3], `: ERROR: application.mail: fourth error="boom now"`)
}

func TestFileSink_AppendsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, done := newTestLogger(t, path)
	l.Info("before restart")
	done()

	l, done = newTestLogger(t, path)
	l.Info("after restart")
	done()

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "before restart")
	assert.Contains(t, lines[1], "after restart")
}

func TestConsoleHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, slog.LevelInfo)
	l := slog.New(h)

	l.Debug("hidden")
	l.Info("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "k=v")
}

func TestFileHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	h := NewFileHandler(&buf, "application")
	r := slog.NewRecord(time.Date(2024, 5, 1, 12, 30, 0, 123e6, time.UTC), slog.LevelInfo, "grouped", 0)
	r.AddAttrs(slog.Int("n", 1))

	require.NoError(t, h.WithGroup("req").Handle(context.Background(), r))
	assert.Equal(t, "2024-05-01 12:30:00,123: INFO: application: grouped req.n=1\n", buf.String())
}

func TestNew_RequiresPath(t *testing.T) {
	_, _, err := New(Options{})
	assert.Error(t, err)
}

func TestFileHandler_EscapesControlCharacters(t *testing.T) {
	var buf bytes.Buffer
	h := NewFileHandler(&buf, "application")
	r := slog.NewRecord(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), slog.LevelInfo, "login failed\nFAKE: ERROR: application: forged", 0)
	r.AddAttrs(slog.String("user", "ana\rbob"))

	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t,
		"2024-05-01 12:30:00,000: INFO: application: login failed\\nFAKE: ERROR: application: forged user=\"ana\\rbob\"\n",
		buf.String())
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
