package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const identityColumns = `user_id, username, first_name, last_name, is_bot, last_seen, last_chat_id, last_message_id, updated_at`

// UpsertIdentity records the latest observation of a user. An observation older than
// the stored one is ignored.
func (s *sqlxStore) UpsertIdentity(ctx context.Context, identity *Identity) error {
	if identity == nil {
		return fmt.Errorf("%w: cannot save nil identity", ErrInvalidArgument)
	}
	if identity.UserID == 0 {
		return fmt.Errorf("%w: identity must have a user_id", ErrInvalidArgument)
	}
	if identity.LastSeen <= 0 {
		return fmt.Errorf("%w: identity must have a last_seen time", ErrInvalidArgument)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	row := *identity
	row.Username = strings.TrimPrefix(strings.TrimSpace(row.Username), "@")
	row.UpdatedAt = s.now().Unix()

	_, err := s.writer.NamedExecContext(ctx, `
		INSERT INTO users (`+identityColumns+`)
		VALUES (:user_id, :username, :first_name, :last_name, :is_bot, :last_seen, :last_chat_id, :last_message_id, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			username        = excluded.username,
			first_name      = excluded.first_name,
			last_name       = excluded.last_name,
			is_bot          = excluded.is_bot,
			last_seen       = excluded.last_seen,
			last_chat_id    = excluded.last_chat_id,
			last_message_id = excluded.last_message_id,
			updated_at      = excluded.updated_at
		WHERE excluded.last_seen >= users.last_seen`, &row)
	if err != nil {
		s.logQueryError(ctx, "Failed to upsert identity", err, "user_id", identity.UserID)
		return fmt.Errorf("failed to upsert identity %d: %w", identity.UserID, err)
	}

	s.logger.DebugContext(ctx, "Identity upserted", "user_id", identity.UserID, "username", row.Username)
	return nil
}

// GetIdentity returns the cached identity, or nil when the user was never seen.
func (s *sqlxStore) GetIdentity(ctx context.Context, userID int64) (*Identity, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user_id cannot be zero", ErrInvalidArgument)
	}
	var identity Identity
	err := s.reader.GetContext(ctx, &identity, `SELECT `+identityColumns+` FROM users WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logQueryError(ctx, "Failed to get identity", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get identity %d: %w", userID, err)
	}
	return &identity, nil
}

// FindIdentityByUsername resolves a handle case-insensitively, with or without the
// leading @. When a stale cache holds the handle for several users, the most
// recently seen one wins. Returns nil when the handle is unknown.
func (s *sqlxStore) FindIdentityByUsername(ctx context.Context, username string) (*Identity, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, nil
	}
	var identity Identity
	err := s.reader.GetContext(ctx, &identity, `
		SELECT `+identityColumns+`
		FROM users
		WHERE username = ? COLLATE NOCASE
		ORDER BY last_seen DESC
		LIMIT 1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logQueryError(ctx, "Failed to find identity by username", err, "username", username)
		return nil, fmt.Errorf("failed to find identity @%s: %w", username, err)
	}
	return &identity, nil
}
