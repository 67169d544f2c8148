package database

import (
	"context"
	"fmt"
	"time"
)

// SaveIngestFailure persists one dropped ingestion step.
func (s *sqlxStore) SaveIngestFailure(ctx context.Context, failure *IngestFailure) error {
	if failure == nil || failure.ID == "" {
		return fmt.Errorf("%w: failure needs an id", ErrInvalidArgument)
	}
	if failure.CreatedAt == 0 {
		failure.CreatedAt = s.now().Unix()
	}
	_, err := s.writer.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO ingest_failures (id, chat_id, user_id, message_id, stage, error, created_at)
		VALUES (:id, :chat_id, :user_id, :message_id, :stage, :error, :created_at)`, failure)
	if err != nil {
		s.logQueryError(ctx, "Failed to save ingest failure", err, "chat_id", failure.ChatID, "stage", failure.Stage)
		return fmt.Errorf("failed to save ingest failure %s: %w", failure.ID, err)
	}
	return nil
}

// RecentIngestFailures lists the newest failures first.
func (s *sqlxStore) RecentIngestFailures(ctx context.Context, limit int) ([]IngestFailure, error) {
	limit = clampLimit(limit, 20, 500)
	failures := []IngestFailure{}
	err := s.reader.SelectContext(ctx, &failures, `
		SELECT id, chat_id, user_id, message_id, stage, error, created_at
		FROM ingest_failures
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		s.logQueryError(ctx, "Failed to list ingest failures", err)
		return nil, fmt.Errorf("failed to list ingest failures: %w", err)
	}
	return failures, nil
}

// PruneIngestFailures deletes failures recorded before the cutoff.
func (s *sqlxStore) PruneIngestFailures(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, fmt.Errorf("%w: prune cutoff cannot be zero", ErrInvalidArgument)
	}
	res, err := s.writer.ExecContext(ctx, `DELETE FROM ingest_failures WHERE created_at < ?`, before.Unix())
	if err != nil {
		s.logQueryError(ctx, "Failed to prune ingest failures", err)
		return 0, fmt.Errorf("failed to prune ingest failures: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned rows: %w", err)
	}
	s.logger.DebugContext(ctx, "Pruned ingest failures", "deleted", n, "before", before)
	return n, nil
}
