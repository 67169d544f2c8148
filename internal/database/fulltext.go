package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchRandom picks one match uniformly at random among a chat's indexed messages,
// optionally restricted to one sender. Only messages written while the chat had
// indexing enabled carry a full-text row, so earlier history never matches.
func (s *sqlxStore) SearchRandom(ctx context.Context, chatID int64, query string, senderID *int64) (*MessageEvent, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("%w: chat_id cannot be zero", ErrInvalidArgument)
	}
	match := SanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	stmt := `
		SELECT m.id, m.chat_id, m.user_id, m.message_id, m.created_at, m.text
		FROM message_fts
		JOIN messages m ON m.id = message_fts.rowid
		WHERE message_fts MATCH ? AND m.chat_id = ?`
	args := []any{match, chatID}
	if senderID != nil {
		stmt += ` AND m.user_id = ?`
		args = append(args, *senderID)
	}
	stmt += ` ORDER BY random() LIMIT 1`

	var hit MessageEvent
	if err := s.reader.GetContext(ctx, &hit, stmt, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "No full-text match", "chat_id", chatID, "query", match)
			return nil, nil
		}
		s.logQueryError(ctx, "Full-text search failed", err, "chat_id", chatID, "query", match)
		return nil, fmt.Errorf("failed to search chat %d: %w", chatID, err)
	}
	return &hit, nil
}

// SanitizeFTSQuery turns free text into an FTS5 expression: every whitespace separated
// term is quoted and prefix matched, and the terms are ANDed. User input can therefore
// never use FTS5 operators or column filters.
func SanitizeFTSQuery(query string) string {
	words := strings.Fields(query)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}
