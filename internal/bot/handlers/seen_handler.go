package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/analytics"
)

// NewSeenHandler returns a handler for /seen: when a user last wrote, with a link to
// the message. The user is the author of the replied-to message or the argument.
func NewSeenHandler(deps HandlerDeps) bot.HandlerFunc {
	return seenHandler{deps}.Handle
}

type seenHandler struct {
	deps HandlerDeps
}

func (h seenHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "seen")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Seen handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID := msg.Chat.ID

	ref, ok := analytics.ParseUserRef(commandArgs(msg.Text))
	if target := replyTarget(msg); target != 0 {
		ref, ok = analytics.UserRef{UserID: target}, true
	}
	if !ok {
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.SeenUsage))
		return
	}
	log.InfoContext(ctx, "Handling /seen command", "chat_id", chatID, "user_id", msg.From.ID,
		"target_id", ref.UserID, "target_handle", ref.Handle)

	queryCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	sighting, err := h.deps.Analytics.Seen(queryCtx, chatID, ref)
	switch {
	case errors.Is(err, analytics.ErrNoData):
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.SeenUnknown))
	case err != nil:
		log.ErrorContext(ctx, "Failed to look up last sighting", "error", err, "chat_id", chatID)
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.GeneralError))
	default:
		reply(ctx, b, log, msg, formatSeen(sighting, chatID, msg.Chat.Username))
	}
}

// replyTarget returns the author of the message msg replies to, ignoring the
// service message that opens a forum topic.
func replyTarget(msg *models.Message) int64 {
	r := msg.ReplyToMessage
	if r == nil || r.From == nil || r.ForumTopicCreated != nil {
		return 0
	}
	return r.From.ID
}
