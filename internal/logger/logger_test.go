package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_FansOutToBothHandlers(t *testing.T) {
	var file, console bytes.Buffer
	log := New(&file, &console, slog.LevelInfo).With("component", "test")

	log.Debug("hidden")
	log.Warn("denying connection", "ip", "203.0.113.9")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "denying connection", rec["msg"])
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, "203.0.113.9", rec["ip"])

	assert.Contains(t, console.String(), "level=WARN")
	assert.Contains(t, console.String(), "ip=203.0.113.9")
	assert.NotContains(t, console.String(), "hidden")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandler_ContinuesAfterError(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{text}, text)

	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "still written", 0))
	assert.ErrorContains(t, err, "disk full")
	assert.Contains(t, buf.String(), "still written")
}

func TestSetup_CreatesLogDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	require.NoError(t, Setup(dir, "debug"))
	assert.DirExists(t, dir+"/logs")

	assert.Error(t, Setup(dir, "loud"))
}
