package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logger.New(&buf, "warn", true)

	log.Info("dropped")
	log.Warn("kept", "chat_id", int64(5))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.EqualValues(t, 5, line["chat_id"])
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "hello", max: 10, want: "hello"},
		{name: "exact", in: "hello", max: 5, want: "hello"},
		{name: "cut", in: "hello world", max: 8, want: "hello..."},
		{name: "tiny limit", in: "hello", max: 2, want: "..."},
		{name: "multibyte", in: "ééééééé", max: 5, want: "éé..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logger.Truncate(tt.in, tt.max))
		})
	}
}

func TestUpdateAttrs(t *testing.T) {
	t.Parallel()

	update := &models.Update{
		ID: 9,
		Message: &models.Message{
			ID:   77,
			Chat: models.Chat{ID: -100, Type: models.ChatTypeSupergroup},
			From: &models.User{ID: 3},
			Text: "hi there",
		},
	}
	attrs := logger.UpdateAttrs(update)
	got := map[string]any{}
	for i := 0; i+1 < len(attrs); i += 2 {
		got[attrs[i].(string)] = attrs[i+1]
	}
	assert.Equal(t, "message", got["update_type"])
	assert.Equal(t, int64(-100), got["chat_id"])
	assert.Equal(t, int64(3), got["user_id"])
	assert.Equal(t, "hi there", got["text_preview"])

	other := logger.UpdateAttrs(&models.Update{ID: 1})
	assert.Contains(t, other, "other")
}
