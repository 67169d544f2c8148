package handlers

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/telegram"
)

func TestCommandTable(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range AllCommands() {
		entry, ok := commandTable[c]
		require.True(t, ok, c)
		assert.NotEmpty(t, entry.name)
		assert.NotNil(t, entry.handler, entry.name)
		assert.False(t, names[entry.name], "duplicate command %s", entry.name)
		names[entry.name] = true

		found, ok := LookupCommand(entry.name)
		require.True(t, ok)
		assert.Equal(t, c, found)
		assert.Equal(t, entry.name, c.String())
	}
	assert.Len(t, names, 9)

	_, ok := LookupCommand("mrl_reset")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Command(0).String())
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	deps := HandlerDeps{Logger: slog.Default(), Config: &config.Config{}}
	registered := RegisterAllCommands(deps)
	require.Len(t, registered, len(commandTable))

	assert.Empty(t, registered["/start"].Middleware)
	assert.Len(t, registered["/stats"].Middleware, 1)
	assert.Len(t, registered["/enable_fts"].Middleware, 2)
	assert.Len(t, registered["/disable_fts"].Middleware, 2)

	menu := telegram.MenuCommands(registered)
	var cmds []string
	for _, c := range menu {
		cmds = append(cmds, c.Command)
	}
	assert.Equal(t, []string{"disable_fts", "enable_fts", "friends", "gstats", "help", "search", "seen", "stats"}, cmds)
}
