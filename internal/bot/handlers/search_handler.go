package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/analytics"
	"github.com/edgard/chatpulse/internal/database"
)

// NewSearchHandler returns a handler for /search: one random archived message
// matching the words. Replying to someone limits the search to their messages.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return searchHandler{deps}.Handle
}

type searchHandler struct {
	deps HandlerDeps
}

func (h searchHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "search")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Search handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := msg.Chat.ID

	query := commandArgs(msg.Text)
	if database.SanitizeFTSQuery(query) == "" {
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.SearchUsage))
		return
	}

	var sender *int64
	if target := replyTarget(msg); target != 0 {
		sender = &target
	}
	log.InfoContext(ctx, "Handling /search command", "chat_id", chatID, "user_id", msg.From.ID, "scoped", sender != nil)

	queryCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	hit, err := h.deps.Analytics.Search(queryCtx, chatID, query, sender)
	switch {
	case errors.Is(err, analytics.ErrSearchDisabled):
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.SearchDisabled))
	case err != nil:
		log.ErrorContext(ctx, "Search failed", "error", err, "chat_id", chatID)
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.GeneralError))
	case hit == nil:
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.SearchNoMatch))
	default:
		reply(ctx, b, log, msg, formatHit(*hit, msg.Chat.Username))
	}
}
