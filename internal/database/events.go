package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// RecordMessage inserts an event idempotently. The chat's full-text settings are read
// inside the same write transaction, and an event is indexed only when indexing is on
// and the message was sent after it was switched on. Queued messages from before the
// switch, the switching command included, stay unsearchable. A failed index write is
// rolled back to a savepoint and the event still commits.
func (s *sqlxStore) RecordMessage(ctx context.Context, event *MessageEvent) (RecordResult, error) {
	if event == nil {
		return RecordResult{}, fmt.Errorf("%w: cannot record nil event", ErrInvalidArgument)
	}
	if event.ChatID == 0 || event.UserID == 0 || event.MessageID == 0 {
		return RecordResult{}, fmt.Errorf("%w: event needs chat_id, user_id and message_id (got %d, %d, %d)",
			ErrInvalidArgument, event.ChatID, event.UserID, event.MessageID)
	}
	if event.CreatedAt <= 0 {
		return RecordResult{}, fmt.Errorf("%w: event must have a timestamp", ErrInvalidArgument)
	}

	log := s.logger.With("chat_id", event.ChatID, "user_id", event.UserID, "message_id", event.MessageID)
	var result RecordResult

	err := s.inTx(ctx, "record_message", func(tx *sqlx.Tx) error {
		var settings ChatSettings
		err := tx.GetContext(ctx, &settings, `
			SELECT fts_enabled, fts_enabled_at FROM chat_settings WHERE chat_id = ?`, event.ChatID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read chat settings: %w", err)
		}

		text := strings.TrimSpace(event.Text.String)
		indexText := settings.indexes(event.CreatedAt) && event.Text.Valid && text != ""
		row := *event
		if indexText {
			row.Text = sql.NullString{String: event.Text.String, Valid: true}
		} else {
			row.Text = sql.NullString{}
		}

		res, err := tx.NamedExecContext(ctx, `
			INSERT OR IGNORE INTO messages (chat_id, user_id, message_id, created_at, text)
			VALUES (:chat_id, :user_id, :message_id, :created_at, :text)`, &row)
		if err != nil {
			return fmt.Errorf("failed to insert message event: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			result.Status = StatusDuplicate
			if err := tx.GetContext(ctx, &result.EventID, `
				SELECT id FROM messages WHERE chat_id = ? AND user_id = ? AND message_id = ?`,
				event.ChatID, event.UserID, event.MessageID); err != nil {
				return fmt.Errorf("failed to look up duplicate event: %w", err)
			}
			return nil
		}

		result.Status = StatusRecorded
		result.EventID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read event id: %w", err)
		}

		if indexText {
			result.Indexed = s.indexText(ctx, tx, log, result.EventID, &row)
		}
		return nil
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to record message event", err,
			"chat_id", event.ChatID, "user_id", event.UserID, "message_id", event.MessageID)
		return RecordResult{}, fmt.Errorf("failed to record message (chat %d, message %d): %w",
			event.ChatID, event.MessageID, err)
	}

	event.ID = result.EventID
	log.DebugContext(ctx, "Message event stored", "status", result.Status, "event_id", result.EventID, "indexed", result.Indexed)
	return result, nil
}

// indexText writes the full-text row for an event under a savepoint. It never fails the
// surrounding transaction: on error the savepoint is rolled back and false is returned.
func (s *sqlxStore) indexText(ctx context.Context, tx *sqlx.Tx, log *slog.Logger, eventID int64, row *MessageEvent) bool {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT fts_write`); err != nil {
		log.WarnContext(ctx, "Could not open savepoint for full-text write", "error", err)
		return false
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO message_fts (rowid, text, chat_id, user_id) VALUES (?, ?, ?, ?)`,
		eventID, row.Text.String, row.ChatID, row.UserID)
	if err != nil {
		log.WarnContext(ctx, "Full-text write failed, event kept without index", "event_id", eventID, "error", err)
		if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO fts_write`); rbErr != nil {
			log.WarnContext(ctx, "Failed to roll back full-text savepoint", "error", rbErr)
		}
	}
	if _, relErr := tx.ExecContext(ctx, `RELEASE fts_write`); relErr != nil {
		log.WarnContext(ctx, "Failed to release full-text savepoint", "error", relErr)
	}
	return err == nil
}

// windowClause appends the time bounds of w to a WHERE clause.
func windowClause(where string, args []any, w Window) (string, []any) {
	if !w.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, w.Since.Unix())
	}
	if !w.Until.IsZero() {
		where += " AND created_at < ?"
		args = append(args, w.Until.Unix())
	}
	return where, args
}

// CountMessages counts a chat's events inside window.
func (s *sqlxStore) CountMessages(ctx context.Context, chatID int64, window Window) (int64, error) {
	if chatID == 0 {
		return 0, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	var count int64
	err := s.inReadTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		count, err = countMessages(ctx, tx, chatID, window)
		return err
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to count messages", err, "chat_id", chatID)
		return 0, fmt.Errorf("failed to count messages for chat %d: %w", chatID, err)
	}
	return count, nil
}

// TopSenders ranks a chat's senders inside window. Ties are broken by who posted
// first in the window.
func (s *sqlxStore) TopSenders(ctx context.Context, chatID int64, window Window, limit int) ([]SenderCount, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	var top []SenderCount
	err := s.inReadTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		top, err = topSenders(ctx, tx, chatID, window, limit)
		return err
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to rank senders", err, "chat_id", chatID)
		return nil, fmt.Errorf("failed to rank senders for chat %d: %w", chatID, err)
	}
	return top, nil
}

// ChatActivity returns the total and the ranking of window from one read snapshot, so
// the shares computed from them always add up.
func (s *sqlxStore) ChatActivity(ctx context.Context, chatID int64, window Window, limit int) (int64, []SenderCount, error) {
	if chatID == 0 {
		return 0, nil, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	var (
		total int64
		top   []SenderCount
	)
	err := s.inReadTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if total, err = countMessages(ctx, tx, chatID, window); err != nil {
			return err
		}
		if total == 0 {
			return nil
		}
		top, err = topSenders(ctx, tx, chatID, window, limit)
		return err
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to read chat activity", err, "chat_id", chatID)
		return 0, nil, fmt.Errorf("failed to read activity for chat %d: %w", chatID, err)
	}
	return total, top, nil
}

func countMessages(ctx context.Context, q sqlx.QueryerContext, chatID int64, window Window) (int64, error) {
	where, args := windowClause("chat_id = ?", []any{chatID}, window)
	var count int64
	if err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM messages WHERE `+where, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func topSenders(ctx context.Context, q sqlx.QueryerContext, chatID int64, window Window, limit int) ([]SenderCount, error) {
	limit = clampLimit(limit, defaultTopLimit, maxTopLimit)
	where, args := windowClause("chat_id = ?", []any{chatID}, window)
	args = append(args, limit)

	top := []SenderCount{}
	err := sqlx.SelectContext(ctx, q, &top, `
		SELECT user_id, COUNT(*) AS cnt
		FROM messages
		WHERE `+where+`
		GROUP BY user_id
		ORDER BY cnt DESC, MIN(id) ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	return top, nil
}
