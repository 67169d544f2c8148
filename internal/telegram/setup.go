// Package telegram adapts the go-telegram Bot API to chatpulse: bot construction,
// handler registration, conversion of updates into ingestion messages, message
// permalinks, and display-name resolution.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler is a handler with its match rule, middleware and the menu entry
// it publishes through setMyCommands.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
	Description string
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps a handler function with a slice of middleware.
// The first middleware in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command handlers with the bot, wrapping each in its own
// middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registered) == 0 {
		log.Warn("No handlers provided for registration")
		return nil
	}

	for _, h := range registered {
		if h.Handler == nil {
			log.Warn("Skipping registration for nil handler", "pattern", h.Pattern)
			continue
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, applyMiddleware(h.Handler, h.Middleware))
		log.Debug("Registered handler", "pattern", h.Pattern, "match_type", h.MatchType, "middleware_count", len(h.Middleware))
	}

	log.Info("Registered Telegram handlers", "count", len(registered))
	return nil
}

// MenuCommands lists the registered commands that have a description, sorted by name.
func MenuCommands(registered map[string]RegisteredHandler) []models.BotCommand {
	out := make([]models.BotCommand, 0, len(registered))
	for _, h := range registered {
		if h.Description == "" || h.Pattern == "" {
			continue
		}
		out = append(out, models.BotCommand{Command: h.Pattern, Description: h.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// PublishCommands sets the bot's command menu. A failure only degrades the client menu.
func PublishCommands(ctx context.Context, b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) {
	if logger == nil {
		logger = slog.Default()
	}
	cmds := MenuCommands(registered)
	if len(cmds) == 0 {
		return
	}
	if _, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: cmds}); err != nil {
		logger.WarnContext(ctx, "Failed to publish bot commands", "error", err)
		return
	}
	logger.InfoContext(ctx, "Published bot commands", "count", len(cmds))
}
