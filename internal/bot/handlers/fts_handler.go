package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewEnableFTSHandler returns a handler for /enable_fts. Messages written from now
// on are archived for /search; earlier ones stay unsearchable.
func NewEnableFTSHandler(deps HandlerDeps) bot.HandlerFunc {
	return ftsHandler{deps: deps, enable: true}.Handle
}

// NewDisableFTSHandler returns a handler for /disable_fts. Already archived
// messages remain searchable.
func NewDisableFTSHandler(deps HandlerDeps) bot.HandlerFunc {
	return ftsHandler{deps: deps, enable: false}.Handle
}

type ftsHandler struct {
	deps   HandlerDeps
	enable bool
}

func (h ftsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "fts", "enable", h.enable)

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "FTS handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := msg.Chat.ID

	queryCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	changed, err := h.deps.Analytics.SetFTS(queryCtx, chatID, h.enable, msg.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to update full-text setting", "error", err, "chat_id", chatID)
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.GeneralError))
		return
	}

	m := h.deps.Config.Messages
	var text string
	switch {
	case h.enable && changed:
		text = m.FTSEnabled
	case h.enable:
		text = m.FTSAlreadyEnabled
	case changed:
		text = m.FTSDisabled
	default:
		text = m.FTSAlreadyOff
	}
	reply(ctx, b, log, msg, escape(text))
}
