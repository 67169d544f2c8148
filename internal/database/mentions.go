package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	defaultConnectionLimit = 3
	maxConnectionLimit     = 50
)

// RecordMention stores one edge. The same (message, from, to) triple is only stored
// once, so replaying a message does not add weight. It reports whether a row was added.
// The source event must already exist.
func (s *sqlxStore) RecordMention(ctx context.Context, edge *MentionEdge) (bool, error) {
	if edge == nil {
		return false, fmt.Errorf("%w: cannot record nil edge", ErrInvalidArgument)
	}
	if edge.ChatID == 0 || edge.FromUserID == 0 || edge.ToUserID == 0 || edge.MessageID == 0 {
		return false, fmt.Errorf("%w: edge needs chat, from, to and message ids", ErrInvalidArgument)
	}

	var inserted bool
	err := s.inTx(ctx, "record_mention", func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT OR IGNORE INTO mentions (chat_id, from_user_id, to_user_id, message_id, created_at)
			VALUES (:chat_id, :from_user_id, :to_user_id, :message_id, :created_at)`, edge)
		if err != nil {
			return fmt.Errorf("failed to insert mention edge: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted = affected == 1
		if inserted {
			edge.ID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read edge id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to record mention edge", err,
			"chat_id", edge.ChatID, "from_user_id", edge.FromUserID, "to_user_id", edge.ToUserID)
		return false, fmt.Errorf("failed to record mention %d -> %d in chat %d: %w",
			edge.FromUserID, edge.ToUserID, edge.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Mention edge stored", "chat_id", edge.ChatID,
		"from_user_id", edge.FromUserID, "to_user_id", edge.ToUserID, "inserted", inserted)
	return inserted, nil
}

// TopConnections ranks userID's neighbours by edge count. Self-edges are stored but
// never ranked. Ties are broken by ascending user id.
func (s *sqlxStore) TopConnections(ctx context.Context, chatID, userID int64, dir Direction, limit int) ([]Connection, error) {
	if chatID == 0 || userID == 0 {
		return nil, fmt.Errorf("%w: chat_id and user_id are required", ErrInvalidArgument)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	limit = clampLimit(limit, defaultConnectionLimit, maxConnectionLimit)

	var stmt string
	switch dir {
	case Outgoing:
		stmt = `
			SELECT to_user_id AS user_id, COUNT(*) AS weight
			FROM mentions
			WHERE chat_id = ? AND from_user_id = ? AND to_user_id <> from_user_id
			GROUP BY to_user_id
			ORDER BY weight DESC, user_id ASC
			LIMIT ?`
	case Incoming:
		stmt = `
			SELECT from_user_id AS user_id, COUNT(*) AS weight
			FROM mentions
			WHERE chat_id = ? AND to_user_id = ? AND from_user_id <> to_user_id
			GROUP BY from_user_id
			ORDER BY weight DESC, user_id ASC
			LIMIT ?`
	default:
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidArgument, dir)
	}

	conns := []Connection{}
	if err := s.reader.SelectContext(ctx, &conns, stmt, chatID, userID, limit); err != nil {
		s.logQueryError(ctx, "Failed to rank connections", err, "chat_id", chatID, "user_id", userID, "direction", dir)
		return nil, fmt.Errorf("failed to rank %s connections of user %d: %w", dir, userID, err)
	}
	return conns, nil
}

// HasAnyEdges reports whether a chat has at least one stored mention edge.
func (s *sqlxStore) HasAnyEdges(ctx context.Context, chatID int64) (bool, error) {
	if chatID == 0 {
		return false, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	var exists bool
	err := s.reader.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM mentions WHERE chat_id = ?)`, chatID)
	if err != nil {
		s.logQueryError(ctx, "Failed to check mention edges", err, "chat_id", chatID)
		return false, fmt.Errorf("failed to check edges of chat %d: %w", chatID, err)
	}
	return exists, nil
}

// UserHasEdges reports whether userID has any edge, in either direction, in a chat.
func (s *sqlxStore) UserHasEdges(ctx context.Context, chatID, userID int64) (bool, error) {
	if chatID == 0 || userID == 0 {
		return false, fmt.Errorf("%w: chat_id and user_id are required", ErrInvalidArgument)
	}
	var exists bool
	err := s.reader.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM mentions WHERE chat_id = ? AND from_user_id = ?)
		    OR EXISTS (SELECT 1 FROM mentions WHERE chat_id = ? AND to_user_id = ?)`,
		chatID, userID, chatID, userID)
	if err != nil {
		s.logQueryError(ctx, "Failed to check user edges", err, "chat_id", chatID, "user_id", userID)
		return false, fmt.Errorf("failed to check edges of user %d: %w", userID, err)
	}
	return exists, nil
}
