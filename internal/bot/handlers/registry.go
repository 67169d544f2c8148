package handlers

import (
	"sort"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/chatpulse/internal/telegram"
)

// Command is a bot command the command layer dispatches.
type Command int

const (
	CommandStart Command = iota + 1
	CommandHelp
	CommandStats
	CommandGlobalStats
	CommandSeen
	CommandSearch
	CommandFriends
	CommandEnableFTS
	CommandDisableFTS
)

// access is the gate a command sits behind.
type access int

const (
	accessAnyone access = iota
	accessGroup
	accessModerator
)

type commandEntry struct {
	name        string
	description string
	access      access
	handler     func(HandlerDeps) tgbot.HandlerFunc
}

var commandTable = map[Command]commandEntry{
	CommandStart:       {"start", "", accessAnyone, NewStartHandler},
	CommandHelp:        {"help", "How to use the bot", accessAnyone, NewHelpHandler},
	CommandStats:       {"stats", "Today's top talkers", accessGroup, NewStatsHandler},
	CommandGlobalStats: {"gstats", "All-time top talkers", accessGroup, NewGlobalStatsHandler},
	CommandSeen:        {"seen", "When someone last wrote", accessGroup, NewSeenHandler},
	CommandSearch:      {"search", "A random message matching some words", accessGroup, NewSearchHandler},
	CommandFriends:     {"friends", "Who you mention and who mentions you", accessGroup, NewFriendsHandler},
	CommandEnableFTS:   {"enable_fts", "Archive messages for /search (admins)", accessModerator, NewEnableFTSHandler},
	CommandDisableFTS:  {"disable_fts", "Stop archiving messages (admins)", accessModerator, NewDisableFTSHandler},
}

func (c Command) String() string {
	if entry, ok := commandTable[c]; ok {
		return entry.name
	}
	return "unknown"
}

// LookupCommand finds a command by its name, without the leading slash.
func LookupCommand(name string) (Command, bool) {
	for c, entry := range commandTable {
		if entry.name == name {
			return c, true
		}
	}
	return 0, false
}

// AllCommands returns every command in declaration order.
func AllCommands() []Command {
	out := make([]Command, 0, len(commandTable))
	for c := range commandTable {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RegisterAllCommands builds the handler registrations for the command table.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler, len(commandTable))

	for _, c := range AllCommands() {
		entry := commandTable[c]

		var mw []tgbot.Middleware
		switch entry.access {
		case accessGroup:
			mw = []tgbot.Middleware{GroupOnly(deps)}
		case accessModerator:
			mw = []tgbot.Middleware{GroupOnly(deps), ModeratorOnly(deps)}
		}

		handlers["/"+entry.name] = telegram.RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     entry.name,
			Handler:     entry.handler(deps),
			Middleware:  mw,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Description: entry.description,
		}
	}

	return handlers
}
