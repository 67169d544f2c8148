package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/analytics"
)

// NewFriendsHandler returns a handler for /friends.
func NewFriendsHandler(deps HandlerDeps) bot.HandlerFunc {
	return friendsHandler{deps}.Handle
}

type friendsHandler struct {
	deps HandlerDeps
}

func (h friendsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "friends")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.WarnContext(ctx, "Friends handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	log.InfoContext(ctx, "Handling /friends command", "chat_id", chatID, "user_id", userID)

	queryCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	friends, err := h.deps.Analytics.Friends(queryCtx, chatID, userID)
	switch {
	case errors.Is(err, analytics.ErrNoChatGraph):
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.FriendsNoneInChat))
	case errors.Is(err, analytics.ErrNoUserGraph):
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.FriendsNoneForYou))
	case err != nil:
		log.ErrorContext(ctx, "Failed to load mention graph", "error", err, "chat_id", chatID)
		reply(ctx, b, log, msg, escape(h.deps.Config.Messages.GeneralError))
	default:
		reply(ctx, b, log, msg, formatFriends(friends))
	}
}
