package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const defaultRollupBatch = 5000

// RollupTotals folds events above the watermark into chat_user_totals. Each batch adds
// its counts and advances the watermark in one write transaction, so a reader sees
// either both or neither. Events are never moved or deleted. Rollup shares the single
// writer connection with ingestion, so no event below the new watermark can still be
// uncommitted.
func (s *sqlxStore) RollupTotals(ctx context.Context, batchSize int) (RollupResult, error) {
	if batchSize <= 0 {
		batchSize = defaultRollupBatch
	}
	var result RollupResult

	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		var folded int64
		err := s.inTx(ctx, "rollup_totals", func(tx *sqlx.Tx) error {
			var from int64
			if err := tx.GetContext(ctx, &from, `SELECT last_event_id FROM rollup_state WHERE id = 1`); err != nil {
				return fmt.Errorf("failed to read watermark: %w", err)
			}

			var upto struct {
				MaxID int64 `db:"max_id"`
				N     int64 `db:"n"`
			}
			if err := tx.GetContext(ctx, &upto, `
				SELECT COALESCE(MAX(id), 0) AS max_id, COUNT(*) AS n
				FROM (SELECT id FROM messages WHERE id > ? ORDER BY id LIMIT ?)`, from, batchSize); err != nil {
				return fmt.Errorf("failed to size rollup batch: %w", err)
			}
			if upto.N == 0 {
				result.LastEventID = from
				return nil
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_user_totals (chat_id, user_id, message_count, first_event_id)
				SELECT chat_id, user_id, COUNT(*), MIN(id)
				FROM messages
				WHERE id > ? AND id <= ?
				GROUP BY chat_id, user_id
				ON CONFLICT (chat_id, user_id) DO UPDATE SET
					message_count = message_count + excluded.message_count`, from, upto.MaxID); err != nil {
				return fmt.Errorf("failed to add batch totals: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `UPDATE rollup_state SET last_event_id = ? WHERE id = 1`, upto.MaxID); err != nil {
				return fmt.Errorf("failed to advance watermark: %w", err)
			}

			folded = upto.N
			result.LastEventID = upto.MaxID
			return nil
		})
		if err != nil {
			s.logQueryError(ctx, "Totals rollup batch failed", err, "batches_done", result.Batches)
			return result, fmt.Errorf("failed to roll up totals: %w", err)
		}
		if folded == 0 {
			break
		}

		result.Events += folded
		result.Batches++
		s.logger.DebugContext(ctx, "Totals rollup batch committed", "events", folded, "last_event_id", result.LastEventID)

		if folded < int64(batchSize) {
			break
		}
	}

	if result.Events > 0 {
		s.logger.InfoContext(ctx, "Totals rollup finished", "events", result.Events,
			"batches", result.Batches, "last_event_id", result.LastEventID)
	}
	return result, nil
}

// globalActivityQuery reads live events by rowid range above the watermark. The unary
// plus keeps the planner off the chat indexes, which would walk the chat's whole history.
const globalActivityQuery = `
	WITH watermark AS (
		SELECT last_event_id FROM rollup_state WHERE id = 1
	),
	combined AS (
		SELECT user_id, message_count AS cnt, first_event_id AS first_id
		FROM chat_user_totals
		WHERE chat_id = ?
		UNION ALL
		SELECT user_id, COUNT(*) AS cnt, MIN(id) AS first_id
		FROM messages
		WHERE id > (SELECT last_event_id FROM watermark) AND +chat_id = ?
		GROUP BY user_id
	),
	per_user AS (
		SELECT user_id, SUM(cnt) AS cnt, MIN(first_id) AS first_id
		FROM combined
		GROUP BY user_id
	)
	SELECT user_id, cnt, (SELECT SUM(cnt) FROM per_user) AS total
	FROM per_user
	ORDER BY cnt DESC, first_id ASC
	LIMIT ?`

// GlobalActivity returns the all-time total and ranking of a chat. Rolled-up totals
// and live events above the watermark are read in a single statement, so the result
// is one consistent snapshot and never misses events a concurrent rollup is folding.
// Ties are broken by each user's first event.
func (s *sqlxStore) GlobalActivity(ctx context.Context, chatID int64, limit int) (int64, []SenderCount, error) {
	if chatID == 0 {
		return 0, nil, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	if ctx.Err() != nil {
		return 0, nil, ctx.Err()
	}
	limit = clampLimit(limit, defaultTopLimit, maxTopLimit)

	var rows []struct {
		UserID int64 `db:"user_id"`
		Count  int64 `db:"cnt"`
		Total  int64 `db:"total"`
	}
	err := s.reader.SelectContext(ctx, &rows, globalActivityQuery, chatID, chatID, limit)
	if err != nil {
		s.logQueryError(ctx, "Failed to read global activity", err, "chat_id", chatID)
		return 0, nil, fmt.Errorf("failed to read global activity of chat %d: %w", chatID, err)
	}

	if len(rows) == 0 {
		return 0, []SenderCount{}, nil
	}
	top := make([]SenderCount, 0, len(rows))
	for _, r := range rows {
		top = append(top, SenderCount{UserID: r.UserID, Count: r.Count})
	}
	return rows[0].Total, top, nil
}
