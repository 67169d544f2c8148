package tasks

import (
	"context"
	"fmt"
	"time"
)

const defaultDeadLetterRetention = 14 * 24 * time.Hour

// newDeadLetterPruneTask deletes dead-lettered ingestion steps older than the
// configured retention.
func newDeadLetterPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "dead_letter_prune")

	return func(ctx context.Context) error {
		retention := defaultDeadLetterRetention
		if deps.Config != nil && deps.Config.Ingest.DeadLetterRetention > 0 {
			retention = deps.Config.Ingest.DeadLetterRetention
		}
		before := time.Now().Add(-retention)

		n, err := deps.Store.PruneIngestFailures(ctx, before)
		if err != nil {
			log.ErrorContext(ctx, "Dead-letter pruning failed", "error", err)
			return fmt.Errorf("dead-letter pruning failed: %w", err)
		}
		log.InfoContext(ctx, "Pruned dead letters", "deleted", n, "before", before.Format(time.RFC3339))
		return nil
	}
}
