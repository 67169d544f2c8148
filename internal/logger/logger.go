// Package logger builds the process-wide slog logger and the go-telegram update
// logging middleware.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const previewLen = 50

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a stdout logger with the given level and format and installs it
// as the slog default.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := New(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

// New creates a logger writing to w without touching the slog default.
func New(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Middleware logs every incoming update before and after it is handled. Message text
// is reduced to a short preview.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()
			entry := log.With(UpdateAttrs(update)...)

			entry.DebugContext(ctx, "Processing update")
			next(ctx, b, update)
			entry.DebugContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// UpdateAttrs extracts the logging attributes of an update.
func UpdateAttrs(update *models.Update) []any {
	if update == nil {
		return []any{"update_type", "nil"}
	}
	attrs := []any{"update_id", update.ID}

	msg, kind := update.Message, "message"
	if msg == nil && update.EditedMessage != nil {
		msg, kind = update.EditedMessage, "edited_message"
	}
	if msg == nil {
		return append(attrs, "update_type", "other")
	}

	attrs = append(attrs,
		"update_type", kind,
		"chat_id", msg.Chat.ID,
		"chat_type", string(msg.Chat.Type),
		"message_id", msg.ID,
		"entities", len(msg.Entities)+len(msg.CaptionEntities),
	)
	if msg.From != nil {
		attrs = append(attrs, "user_id", msg.From.ID)
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text != "" {
		attrs = append(attrs, "text_preview", Truncate(text, previewLen))
	}
	return attrs
}

// Truncate shortens s to at most maxRunes runes, ending with "..." when cut.
func Truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return "..."
	}
	runes := []rune(s)
	return string(runes[:maxRunes-3]) + "..."
}
