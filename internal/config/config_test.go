package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "chatpulse.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.ReaderConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 1024, cfg.Ingest.QueueSize)
	assert.Equal(t, 3, cfg.Stats.FriendsLimit)
	assert.Equal(t, time.UTC, cfg.Stats.Location())
	assert.NotEmpty(t, cfg.Messages.Help)

	require.Contains(t, cfg.Scheduler.Tasks, config.TaskTotalsRollup)
	assert.True(t, cfg.Scheduler.Tasks[config.TaskTotalsRollup].Enabled)
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.Tasks[config.TaskTotalsRollup].Schedule)
	assert.Contains(t, cfg.Scheduler.Tasks, config.TaskSQLMaintenance)
	assert.Contains(t, cfg.Scheduler.Tasks, config.TaskDeadLetterPrune)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  json: true
database:
  path: /var/lib/chatpulse/data.db
  busy_timeout: 2s
ingest:
  workers: 8
  step_timeout: 1500ms
stats:
  timezone: Europe/Lisbon
  top_limit: 5
telegram:
  token: "t"
  admin_user_id: 42
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
messages:
  search_no_match: "nada"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, "/var/lib/chatpulse/data.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Ingest.StepTimeout)
	assert.Equal(t, 5, cfg.Stats.TopLimit)
	assert.Equal(t, "Europe/Lisbon", cfg.Stats.Location().String())
	assert.EqualValues(t, 42, cfg.Telegram.AdminUserID)
	assert.False(t, cfg.Scheduler.Tasks[config.TaskSQLMaintenance].Enabled)
	assert.True(t, cfg.Scheduler.Tasks[config.TaskTotalsRollup].Enabled)
	assert.Equal(t, "nada", cfg.Messages.SearchNoMatch)
	assert.NotEmpty(t, cfg.Messages.SearchUsage, "unset messages keep their defaults")
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHATPULSE_TELEGRAM_TOKEN", "env-token")
	t.Setenv("CHATPULSE_INGEST_QUEUE_SIZE", "64")
	t.Setenv("CHATPULSE_TELEGRAM_ADMIN_USER_ID", "7")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 64, cfg.Ingest.QueueSize)
	assert.EqualValues(t, 7, cfg.Telegram.AdminUserID)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing token", body: "logger:\n  level: info\n"},
		{name: "bad log level", body: "telegram:\n  token: t\nlogger:\n  level: loud\n"},
		{name: "bad timezone", body: "telegram:\n  token: t\nstats:\n  timezone: Mars/Olympus\n"},
		{name: "no workers", body: "telegram:\n  token: t\ningest:\n  workers: 0\n"},
		{name: "enabled task without schedule", body: "telegram:\n  token: t\nscheduler:\n  tasks:\n    custom:\n      enabled: true\n"},
		{name: "blank message", body: "telegram:\n  token: t\nmessages:\n  help: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrConfiguration))
		})
	}
}

func TestStatsLocationFallsBackToUTC(t *testing.T) {
	t.Parallel()
	assert.Equal(t, time.UTC, config.StatsConfig{Timezone: "Nowhere/Special"}.Location())
	assert.Equal(t, "America/Sao_Paulo", config.StatsConfig{Timezone: "America/Sao_Paulo"}.Location().String())
}
