// Package tasks implements the scheduled background jobs: totals rollup, SQL
// maintenance and dead-letter pruning.
package tasks

import (
	"log/slog"

	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
