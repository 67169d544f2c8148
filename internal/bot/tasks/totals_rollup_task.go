package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NewTotalsRollupTask folds new message events into the all-time per-user totals.
// Exported so the CLI can run a single rollup outside the scheduler.
func NewTotalsRollupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "totals_rollup")

	return func(ctx context.Context) error {
		startTime := time.Now()
		batchSize := 0
		if deps.Config != nil {
			batchSize = deps.Config.Database.RollupBatchSize
		}

		res, err := deps.Store.RollupTotals(ctx, batchSize)
		duration := time.Since(startTime)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				log.WarnContext(ctx, "Totals rollup interrupted", "error", err,
					"events", res.Events, "batches", res.Batches, "duration", duration)
			} else {
				log.ErrorContext(ctx, "Totals rollup failed", "error", err,
					"events", res.Events, "batches", res.Batches, "duration", duration)
			}
			return fmt.Errorf("totals rollup failed: %w", err)
		}

		if res.Events == 0 {
			log.DebugContext(ctx, "Totals rollup found no new events", "duration", duration)
			return nil
		}
		log.InfoContext(ctx, "Totals rollup completed",
			"events", res.Events, "batches", res.Batches, "last_event_id", res.LastEventID, "duration", duration)
		return nil
	}
}
