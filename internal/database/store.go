package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrInvalidArgument is returned when a Store method is called with unusable input.
var ErrInvalidArgument = errors.New("invalid argument")

// EventStore is the append-only message event log.
type EventStore interface {
	// RecordMessage inserts an event; a repeated (chat, user, message) is reported
	// as StatusDuplicate, not as an error. When the chat has full-text indexing
	// enabled the text is indexed in the same transaction.
	RecordMessage(ctx context.Context, event *MessageEvent) (RecordResult, error)
	CountMessages(ctx context.Context, chatID int64, window Window) (int64, error)
	TopSenders(ctx context.Context, chatID int64, window Window, limit int) ([]SenderCount, error)
	// ChatActivity returns the window total and ranking from one read snapshot.
	ChatActivity(ctx context.Context, chatID int64, window Window, limit int) (int64, []SenderCount, error)
}

// FullTextStore searches indexed message text.
type FullTextStore interface {
	// SearchRandom returns one uniformly random match, or nil when nothing matches.
	SearchRandom(ctx context.Context, chatID int64, query string, senderID *int64) (*MessageEvent, error)
}

// MentionStore is the directed mention graph.
type MentionStore interface {
	RecordMention(ctx context.Context, edge *MentionEdge) (bool, error)
	TopConnections(ctx context.Context, chatID, userID int64, dir Direction, limit int) ([]Connection, error)
	HasAnyEdges(ctx context.Context, chatID int64) (bool, error)
	UserHasEdges(ctx context.Context, chatID, userID int64) (bool, error)
}

// IdentityStore caches who users are and where they were last seen.
type IdentityStore interface {
	UpsertIdentity(ctx context.Context, identity *Identity) error
	GetIdentity(ctx context.Context, userID int64) (*Identity, error)
	FindIdentityByUsername(ctx context.Context, username string) (*Identity, error)
}

// SettingsStore holds per-chat flags.
type SettingsStore interface {
	GetChatSettings(ctx context.Context, chatID int64) (ChatSettings, error)
	// SetFTSEnabled reports whether the flag actually changed.
	SetFTSEnabled(ctx context.Context, chatID int64, enabled bool, updatedBy int64) (bool, error)
}

// TotalsStore keeps all-time per-user counters.
type TotalsStore interface {
	RollupTotals(ctx context.Context, batchSize int) (RollupResult, error)
	// GlobalActivity returns the all-time total and ranking for a chat.
	GlobalActivity(ctx context.Context, chatID int64, limit int) (int64, []SenderCount, error)
}

// DeadLetterStore persists ingestion steps that were dropped.
type DeadLetterStore interface {
	SaveIngestFailure(ctx context.Context, failure *IngestFailure) error
	RecentIngestFailures(ctx context.Context, limit int) ([]IngestFailure, error)
	PruneIngestFailures(ctx context.Context, before time.Time) (int64, error)
}

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	EventStore
	FullTextStore
	MentionStore
	IdentityStore
	SettingsStore
	TotalsStore
	DeadLetterStore

	// Ping checks both connection handles.
	Ping(ctx context.Context) error

	// RunSQLMaintenance optimizes the full-text index and the planner statistics and
	// checkpoints the WAL.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx. Writes go through the single-connection
// writer handle; reads go through the reader pool.
type sqlxStore struct {
	writer *sqlx.DB
	reader *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// StoreOption customises a Store.
type StoreOption func(*sqlxStore)

// WithClock replaces the clock used for settings, identity and dead-letter timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *sqlxStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a new Store backed by db.
func NewStore(db *DB, logger *slog.Logger, opts ...StoreOption) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	reader := db.Reader
	if reader == nil {
		reader = db.Writer
	}
	s := &sqlxStore{
		writer: db.Writer,
		reader: reader,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks both connection handles.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("writer ping failed: %w", err)
	}
	if err := s.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("reader ping failed: %w", err)
	}
	return nil
}

// inTx runs fn inside a write transaction and commits when fn returns nil.
func (s *sqlxStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := s.writer.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// inReadTx runs fn against one read snapshot of the database. Reader connections
// are query_only, so the transaction cannot write.
func (s *sqlxStore) inReadTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	tx, err := s.reader.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error closing read transaction", "error", rollbackErr)
		}
	}()
	return fn(tx)
}

// logQueryError logs timeouts at warn level and everything else at error level.
func (s *sqlxStore) logQueryError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, msg+" (timeout or cancelled)", args...)
		return
	}
	s.logger.ErrorContext(ctx, msg, args...)
}

// RunSQLMaintenance optimizes the full-text index and the planner statistics and
// checkpoints the WAL. Statements must stay short: the writer connection is shared
// with ingestion.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance...")
	statements := []string{
		`INSERT INTO message_fts(message_fts) VALUES('optimize')`,
		`PRAGMA optimize`,
		`PRAGMA wal_checkpoint(TRUNCATE)`,
	}
	for _, stmt := range statements {
		start := time.Now()
		if _, err := s.writer.ExecContext(ctx, stmt); err != nil {
			s.logQueryError(ctx, "Maintenance statement failed", err, "statement", stmt)
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
		s.logger.DebugContext(ctx, "Maintenance statement finished", "statement", stmt, "duration", time.Since(start))
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
