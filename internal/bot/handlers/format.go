package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/edgard/chatpulse/internal/analytics"
	"github.com/edgard/chatpulse/internal/logger"
	"github.com/edgard/chatpulse/internal/telegram"
)

const maxQuoteRunes = 700

func formatActivity(title string, a analytics.Activity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b> (%d %s)\n", escape(title), a.Total, plural(a.Total, "message", "messages"))
	for i, s := range a.Shares {
		fmt.Fprintf(&sb, "%d. %s: %d (%.1f%%)\n", i+1, escape(s.Name), s.Count, s.Percent)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatSeen renders a sighting. The message link is only shown when the last
// message was in the chat asking.
func formatSeen(s analytics.Sighting, chatID int64, chatUsername string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b> was last seen %s", escape(s.Name), humanizeAgo(s.Ago))
	if s.ChatID != chatID {
		sb.WriteString(" in another chat.")
		return sb.String()
	}
	sb.WriteString(".")
	if link := telegram.Permalink(s.ChatID, s.MessageID, chatUsername); link != "" {
		fmt.Fprintf(&sb, "\n<a href=\"%s\">Go to message</a>", escape(link))
	}
	return sb.String()
}

func formatHit(h analytics.Hit, chatUsername string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>, %s:\n", escape(h.Name), h.SentAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "<i>%s</i>", escape(logger.Truncate(h.Text, maxQuoteRunes)))
	if link := telegram.Permalink(h.ChatID, h.MessageID, chatUsername); link != "" {
		fmt.Fprintf(&sb, "\n<a href=\"%s\">Go to message</a>", escape(link))
	}
	return sb.String()
}

func formatFriends(f analytics.Friends) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", escape(f.Name))
	sb.WriteString("Mentions most:\n")
	writeFriendList(&sb, f.Outgoing)
	sb.WriteString("\nMentioned most by:\n")
	writeFriendList(&sb, f.Incoming)
	return strings.TrimRight(sb.String(), "\n")
}

func writeFriendList(sb *strings.Builder, list []analytics.Friend) {
	if len(list) == 0 {
		sb.WriteString("nobody yet\n")
		return
	}
	for i, fr := range list {
		fmt.Fprintf(sb, "%d. %s (%d)\n", i+1, escape(fr.Name), fr.Weight)
	}
}

// agoMagnitudes are go-humanize's default steps with everything under a minute
// collapsed into "just now".
var agoMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: humanize.Month, Format: "%d days %s", DivBy: humanize.Day},
	{D: 2 * humanize.Month, Format: "1 month %s", DivBy: 1},
	{D: humanize.Year, Format: "%d months %s", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "1 year %s", DivBy: 1},
	{D: humanize.LongTime, Format: "%d years %s", DivBy: humanize.Year},
}

func humanizeAgo(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	var epoch time.Time
	return humanize.CustomRelTime(epoch, epoch.Add(d), "ago", "from now", agoMagnitudes)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
