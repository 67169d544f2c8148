package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Permalink builds a t.me link to a message. Public chats with a username get the
// public form; supergroups get the members-only /c/ form. Basic groups and private
// chats have no message links and return "".
func Permalink(chatID, messageID int64, chatUsername string) string {
	if messageID <= 0 {
		return ""
	}
	if chatUsername != "" {
		return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(chatUsername, "@"), messageID)
	}
	s := strconv.FormatInt(chatID, 10)
	if !strings.HasPrefix(s, "-100") || len(s) == len("-100") {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", s[len("-100"):], messageID)
}
