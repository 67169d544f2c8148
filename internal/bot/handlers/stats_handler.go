package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/analytics"
)

// NewStatsHandler returns a handler for /stats: today's message share per user.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps: deps, global: false}.Handle
}

// NewGlobalStatsHandler returns a handler for /gstats: all-time message share per user.
func NewGlobalStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps: deps, global: true}.Handle
}

type statsHandler struct {
	deps   HandlerDeps
	global bool
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	name := "stats"
	if h.global {
		name = "gstats"
	}
	log := h.deps.Logger.With("handler", name)

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Stats handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := msg.Chat.ID
	log.InfoContext(ctx, "Handling stats command", "chat_id", chatID, "user_id", msg.From.ID)

	queryCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	var (
		text  string
		title = "Today's top talkers"
		empty = h.deps.Config.Messages.NoMessagesToday
	)
	if h.global {
		title, empty = "All-time top talkers", h.deps.Config.Messages.NoMessagesEver
	}

	var (
		activity analytics.Activity
		err      error
	)
	if h.global {
		activity, err = h.deps.Analytics.GlobalStats(queryCtx, chatID)
	} else {
		activity, err = h.deps.Analytics.TodayStats(queryCtx, chatID)
	}
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to compute stats", "error", err, "chat_id", chatID)
		text = escape(h.deps.Config.Messages.GeneralError)
	case activity.Total == 0:
		text = escape(empty)
	default:
		text = formatActivity(title, activity)
	}
	reply(ctx, b, log, msg, text)
}
