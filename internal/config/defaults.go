package config

import (
	"time"

	"github.com/spf13/viper"
)

// Task names known to the scheduler.
const (
	TaskTotalsRollup    = "totals_rollup"
	TaskSQLMaintenance  = "sql_maintenance"
	TaskDeadLetterPrune = "dead_letter_prune"
)

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"database.path":              "chatpulse.db",
	"database.reader_conns":      4,
	"database.busy_timeout":      5 * time.Second,
	"database.operation_timeout": 5 * time.Second,
	"database.rollup_batch_size": 5000,

	"telegram.token":         "",
	"telegram.admin_user_id": 0,

	"ingest.workers":               4,
	"ingest.queue_size":            1024,
	"ingest.step_timeout":          5 * time.Second,
	"ingest.dead_letter_retention": 14 * 24 * time.Hour,

	"stats.top_limit":     10,
	"stats.friends_limit": 3,
	"stats.timezone":      "UTC",

	"scheduler.tasks." + TaskTotalsRollup + ".enabled":     true,
	"scheduler.tasks." + TaskTotalsRollup + ".schedule":    "0 */5 * * * *",
	"scheduler.tasks." + TaskSQLMaintenance + ".enabled":   true,
	"scheduler.tasks." + TaskSQLMaintenance + ".schedule":  "0 0 4 * * 0",
	"scheduler.tasks." + TaskDeadLetterPrune + ".enabled":  true,
	"scheduler.tasks." + TaskDeadLetterPrune + ".schedule": "0 30 3 * * *",

	"messages.welcome":              "👋 I keep track of who talks, who mentions whom, and (if you opt in) what was said. Try /help.",
	"messages.help":                 "Commands:\n/stats - today's top talkers\n/gstats - all-time top talkers\n/seen @user - when someone last spoke\n/search <words> - a random matching message (reply to someone to search only their messages)\n/friends - who you mention and who mentions you\n/enable_fts - start archiving text for /search (admins)\n/disable_fts - stop archiving text (admins)",
	"messages.unauthorized":         "🚫 Only chat admins can do that.",
	"messages.general_error":        "❌ Something went wrong. Please try again later.",
	"messages.group_only":           "This command only works in groups.",
	"messages.no_messages_today":    "Nobody has said anything today.",
	"messages.no_messages_ever":     "I have not seen any messages here yet.",
	"messages.seen_usage":           "Usage: /seen @username (or reply to someone's message).",
	"messages.seen_unknown":         "I have never seen that user.",
	"messages.search_usage":         "Usage: /search <words>",
	"messages.search_disabled":      "Search is off in this chat. An admin can turn it on with /enable_fts.",
	"messages.search_no_match":      "No matching messages.",
	"messages.friends_none_in_chat": "Nobody here has mentioned or replied to anyone yet.",
	"messages.friends_none_for_you": "You have not mentioned or replied to anyone yet, and nobody has mentioned you.",
	"messages.fts_enabled":          "🔎 Search enabled. Messages from now on will be searchable; earlier ones will not.",
	"messages.fts_already_enabled":  "Search is already enabled in this chat.",
	"messages.fts_disabled":         "Search disabled. New messages will not be archived.",
	"messages.fts_already_off":      "Search is already off in this chat.",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
