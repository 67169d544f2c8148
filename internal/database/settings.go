package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetChatSettings returns a chat's flags. Chats without a row get the zero value,
// which has every flag off.
func (s *sqlxStore) GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error) {
	if chatID == 0 {
		return ChatSettings{}, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	settings := ChatSettings{ChatID: chatID}
	err := s.reader.GetContext(ctx, &settings, `
		SELECT chat_id, fts_enabled, fts_enabled_at, updated_by, updated_at
		FROM chat_settings WHERE chat_id = ?`, chatID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logQueryError(ctx, "Failed to read chat settings", err, "chat_id", chatID)
		return ChatSettings{}, fmt.Errorf("failed to read settings of chat %d: %w", chatID, err)
	}
	return settings, nil
}

// SetFTSEnabled switches full-text indexing for a chat. It returns false when the
// flag already had the requested value. Switching on never indexes earlier messages.
func (s *sqlxStore) SetFTSEnabled(ctx context.Context, chatID int64, enabled bool, updatedBy int64) (bool, error) {
	if chatID == 0 {
		return false, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}

	var changed bool
	err := s.inTx(ctx, "set_fts_enabled", func(tx *sqlx.Tx) error {
		var current bool
		err := tx.GetContext(ctx, &current, `SELECT fts_enabled FROM chat_settings WHERE chat_id = ?`, chatID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read current flag: %w", err)
		}
		if current == enabled {
			return nil
		}

		now := s.now().Unix()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_settings (chat_id, fts_enabled, fts_enabled_at, updated_by, updated_at)
			VALUES (?, ?, CASE WHEN ? THEN ? END, ?, ?)
			ON CONFLICT (chat_id) DO UPDATE SET
				fts_enabled    = excluded.fts_enabled,
				fts_enabled_at = COALESCE(excluded.fts_enabled_at, chat_settings.fts_enabled_at),
				updated_by     = excluded.updated_by,
				updated_at     = excluded.updated_at`,
			chatID, enabled, enabled, now, updatedBy, now)
		if err != nil {
			return fmt.Errorf("failed to write chat settings: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		s.logQueryError(ctx, "Failed to update full-text flag", err, "chat_id", chatID, "enabled", enabled)
		return false, fmt.Errorf("failed to set full-text flag of chat %d: %w", chatID, err)
	}

	if changed {
		s.logger.InfoContext(ctx, "Full-text indexing flag changed", "chat_id", chatID, "enabled", enabled, "updated_by", updatedBy)
	}
	return changed, nil
}
