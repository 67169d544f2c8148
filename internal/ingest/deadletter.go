package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/chatpulse/internal/database"
)

// DeadLetterSink receives ingestion steps that were dropped.
type DeadLetterSink interface {
	Drop(ctx context.Context, msg Message, stage Stage, err error)
}

// LogSink logs every drop.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Drop(ctx context.Context, msg Message, stage Stage, err error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.WarnContext(ctx, "Ingestion step dropped",
		"stage", string(stage),
		"chat_id", msg.ChatID,
		"user_id", msg.UserID,
		"message_id", msg.MessageID,
		"error", err)
}

// StoreSink persists drops so they can be inspected later.
type StoreSink struct {
	Store   database.DeadLetterStore
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewStoreSink creates a sink writing to store with a per-write timeout.
func NewStoreSink(store database.DeadLetterStore, logger *slog.Logger, timeout time.Duration) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StoreSink{Store: store, Logger: logger.With("component", "dead_letter_store"), Timeout: timeout}
}

func (s *StoreSink) Drop(ctx context.Context, msg Message, stage Stage, err error) {
	if err == nil {
		err = errors.New("unknown failure")
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()

	failure := &database.IngestFailure{
		ID:        uuid.NewString(),
		ChatID:    msg.ChatID,
		UserID:    msg.UserID,
		MessageID: msg.MessageID,
		Stage:     string(stage),
		Error:     err.Error(),
		CreatedAt: time.Now().Unix(),
	}
	if saveErr := s.Store.SaveIngestFailure(writeCtx, failure); saveErr != nil {
		s.Logger.ErrorContext(ctx, "Failed to persist dropped ingestion step",
			"stage", string(stage), "chat_id", msg.ChatID, "message_id", msg.MessageID, "error", saveErr)
	}
}

// MultiSink fans a drop out to several sinks in order.
type MultiSink []DeadLetterSink

func (m MultiSink) Drop(ctx context.Context, msg Message, stage Stage, err error) {
	for _, s := range m {
		if s != nil {
			s.Drop(ctx, msg, stage, err)
		}
	}
}
