package telegram

import (
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/ingest"
)

// ToInbound converts a Telegram message into an ingestion message. It returns false
// for messages that cannot be attributed to a user, such as channel posts.
func ToInbound(msg *models.Message) (ingest.Message, bool) {
	if msg == nil || msg.From == nil || msg.From.ID == 0 || msg.Chat.ID == 0 {
		return ingest.Message{}, false
	}

	text, entities := msg.Text, msg.Entities
	if text == "" {
		text, entities = msg.Caption, msg.CaptionEntities
	}

	in := ingest.Message{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: int64(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Text:      text,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		IsBot:     msg.From.IsBot,
	}

	var units []uint16
	for _, e := range entities {
		switch e.Type {
		case models.MessageEntityTypeTextMention:
			if e.User == nil || e.User.ID == 0 {
				continue
			}
			in.Entities = append(in.Entities, ingest.Entity{
				Type:         ingest.EntityTextMention,
				TargetUserID: e.User.ID,
				Offset:       e.Offset,
				Length:       e.Length,
			})
		case models.MessageEntityTypeMention:
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			handle := sliceUTF16(units, e.Offset, e.Length)
			handle = strings.TrimPrefix(handle, "@")
			if handle == "" {
				continue
			}
			in.Entities = append(in.Entities, ingest.Entity{
				Type:   ingest.EntityMention,
				Handle: handle,
				Offset: e.Offset,
				Length: e.Length,
			})
		}
	}

	if author := replyAuthor(msg); author != 0 {
		in.Entities = append(in.Entities, ingest.Entity{Type: ingest.EntityReply, TargetUserID: author})
	}

	return in, true
}

// replyAuthor returns the author of the message msg replies to. Messages in forum
// topics carry the topic's opening service message as their reply target; that is
// not a reply to a person.
func replyAuthor(msg *models.Message) int64 {
	r := msg.ReplyToMessage
	if r == nil || r.From == nil {
		return 0
	}
	if r.ForumTopicCreated != nil {
		return 0
	}
	return r.From.ID
}

// sliceUTF16 cuts text the way Telegram entity offsets address it.
func sliceUTF16(units []uint16, offset, length int) string {
	if offset < 0 || length <= 0 || offset >= len(units) {
		return ""
	}
	end := min(offset+length, len(units))
	return string(utf16.Decode(units[offset:end]))
}
