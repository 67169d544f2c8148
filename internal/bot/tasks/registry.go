package tasks

import (
	"context"

	"github.com/edgard/chatpulse/internal/config"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used in the scheduler
// section of the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskTotalsRollup:    NewTotalsRollupTask(deps),
		config.TaskSQLMaintenance:  newSQLMaintenanceTask(deps),
		config.TaskDeadLetterPrune: newDeadLetterPruneTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
