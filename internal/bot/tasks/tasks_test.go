package tasks_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/bot/tasks"
	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/database"
)

func newDeps(t *testing.T) tasks.TaskDeps {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "tasks.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	cfg := &config.Config{}
	cfg.Database.RollupBatchSize = 2
	cfg.Ingest.DeadLetterRetention = 24 * time.Hour
	return tasks.TaskDeps{Logger: slog.Default(), Store: database.NewStore(db, nil), Config: cfg}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()
	registered := tasks.RegisterAllTasks(newDeps(t))
	assert.Len(t, registered, 3)
	for _, name := range []string{config.TaskTotalsRollup, config.TaskSQLMaintenance, config.TaskDeadLetterPrune} {
		assert.NotNil(t, registered[name], name)
	}
}

func TestTotalsRollupTask(t *testing.T) {
	t.Parallel()
	deps := newDeps(t)
	ctx := context.Background()
	now := time.Now().Unix()

	for i := int64(1); i <= 5; i++ {
		_, err := deps.Store.RecordMessage(ctx, &database.MessageEvent{ChatID: -7, UserID: i%2 + 1, MessageID: i, CreatedAt: now})
		require.NoError(t, err)
	}

	run := tasks.NewTotalsRollupTask(deps)
	require.NoError(t, run(ctx))
	require.NoError(t, run(ctx), "a second run with nothing new is a no-op")

	res, err := deps.Store.RollupTotals(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Events)

	total, _, err := deps.Store.GlobalActivity(ctx, -7, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
}

func TestDeadLetterPruneTask(t *testing.T) {
	t.Parallel()
	deps := newDeps(t)
	ctx := context.Background()

	old := &database.IngestFailure{ID: "old", ChatID: -7, Stage: "event", Error: "x", CreatedAt: time.Now().Add(-48 * time.Hour).Unix()}
	fresh := &database.IngestFailure{ID: "fresh", ChatID: -7, Stage: "event", Error: "x", CreatedAt: time.Now().Unix()}
	require.NoError(t, deps.Store.SaveIngestFailure(ctx, old))
	require.NoError(t, deps.Store.SaveIngestFailure(ctx, fresh))

	require.NoError(t, tasks.RegisterAllTasks(deps)[config.TaskDeadLetterPrune](ctx))

	left, err := deps.Store.RecentIngestFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "fresh", left[0].ID)
}
