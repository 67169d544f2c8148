package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/chatpulse/internal/analytics"
	"github.com/edgard/chatpulse/internal/config"
	"github.com/edgard/chatpulse/internal/ingest"
)

// Ingestor accepts inbound messages without blocking.
type Ingestor interface {
	Submit(ctx context.Context, msg ingest.Message) error
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Analytics *analytics.Service
	Ingestor  Ingestor
}

func (d HandlerDeps) operationTimeout() time.Duration {
	if d.Config != nil && d.Config.Database.OperationTimeout > 0 {
		return d.Config.Database.OperationTimeout
	}
	return 5 * time.Second
}
