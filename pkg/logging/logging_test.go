package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelWarn},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		assert.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestFilteringHandlerSuppressesForeignLogsAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	h := &filteringHandler{handler: base, minLevel: slog.LevelInfo}

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello from elsewhere", 0)
	err := h.Handle(context.Background(), rec)
	assert.NoError(t, err)
	assert.Empty(t, buf.String(), "a record with no caller PC must be treated as foreign and suppressed above DEBUG")
}

func TestGetLoggerLazyInit(t *testing.T) {
	defaultLogger = nil
	l := GetLogger()
	assert.NotNil(t, l)
	assert.Same(t, l, GetLogger())
}

func TestOpenLogFile(t *testing.T) {
	path := t.TempDir() + "/out.log"
	f, cleanup, err := OpenLogFile(path)
	assert.NoError(t, err)
	defer cleanup()
	_, err = f.WriteString("line\n")
	assert.NoError(t, err)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
