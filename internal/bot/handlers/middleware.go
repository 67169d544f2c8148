// Package handlers contains Telegram bot command handlers, the ingestion
// middleware, and their registration table.
package handlers

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/telegram"
)

// IngestMiddleware hands every new message, commands included, to the ingestion
// pipeline before routing continues. Submit never blocks.
func IngestMiddleware(deps HandlerDeps) tgbot.Middleware {
	log := deps.Logger.With("middleware", "ingest")
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if deps.Ingestor != nil && update.Message != nil {
				if msg, ok := telegram.ToInbound(update.Message); ok {
					if err := deps.Ingestor.Submit(ctx, msg); err != nil {
						log.WarnContext(ctx, "Message not queued for ingestion",
							"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
					}
				}
			}
			next(ctx, b, update)
		}
	}
}

// GroupOnly rejects commands sent outside group chats.
func GroupOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil {
				return
			}
			if !isGroup(msg.Chat.Type) {
				reply(ctx, b, deps.Logger, msg, escape(deps.Config.Messages.GroupOnly))
				return
			}
			next(ctx, b, update)
		}
	}
}

// ModeratorOnly lets through the configured admin, the chat owner and chat
// administrators, including administrators posting anonymously as the chat.
func ModeratorOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil || msg.From == nil {
				return
			}
			log := deps.Logger.With("middleware", "ModeratorOnly")

			if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
				next(ctx, b, update)
				return
			}
			if admin := deps.Config.Telegram.AdminUserID; admin != 0 && msg.From.ID == admin {
				next(ctx, b, update)
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			member, err := b.GetChatMember(callCtx, &tgbot.GetChatMemberParams{ChatID: msg.Chat.ID, UserID: msg.From.ID})
			cancel()
			if err != nil {
				log.ErrorContext(ctx, "Failed to check chat member status", "error", err,
					"chat_id", msg.Chat.ID, "user_id", msg.From.ID)
				reply(ctx, b, deps.Logger, msg, escape(deps.Config.Messages.GeneralError))
				return
			}
			if !telegram.IsModerator(member) {
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", msg.From.ID, "chat_id", msg.Chat.ID)
				reply(ctx, b, deps.Logger, msg, escape(deps.Config.Messages.Unauthorized))
				return
			}
			next(ctx, b, update)
		}
	}
}

func isGroup(t models.ChatType) bool {
	return t == models.ChatTypeGroup || t == models.ChatTypeSupergroup
}
