package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/chatpulse/internal/database"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("ingest queue is full")
	// ErrPipelineStopped is returned by Submit and Run once the pipeline has shut down.
	ErrPipelineStopped = errors.New("ingest pipeline is stopped")
	// ErrPipelineRunning is returned by Run while another Run is active.
	ErrPipelineRunning = errors.New("ingest pipeline is already running")
)

// Store is what the pipeline writes to.
type Store interface {
	HandleResolver
	UpsertIdentity(ctx context.Context, identity *database.Identity) error
	RecordMessage(ctx context.Context, event *database.MessageEvent) (database.RecordResult, error)
	RecordMention(ctx context.Context, edge *database.MentionEdge) (bool, error)
}

// Options sizes the pipeline.
type Options struct {
	Workers     int
	QueueSize   int
	StepTimeout time.Duration
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Submitted  int64
	Dropped    int64
	Processed  int64
	Duplicates int64
	StepErrors int64
	Edges      int64
}

// Outcome reports what Process did with one message.
type Outcome struct {
	Event       database.RecordResult
	IdentityErr error
	EventErr    error
	Targets     []int64
	EdgesAdded  int
	EdgeErrs    []error
}

// Pipeline is a bounded queue drained by a fixed pool of workers. Submit never blocks:
// when the queue is full the message goes to the dead-letter sink instead.
type Pipeline struct {
	store  Store
	sink   DeadLetterSink
	logger *slog.Logger
	opts   Options

	queue   chan Message
	mu      sync.RWMutex
	started bool
	closed  bool

	// bounds concurrent dead-letter writes issued from Submit
	dropSlots *semaphore.Weighted

	submitted, dropped, processed, duplicates, stepErrors, edges atomic.Int64
}

// NewPipeline creates a pipeline. Messages may be submitted before Run starts; they
// wait in the queue.
func NewPipeline(store Store, sink DeadLetterSink, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "ingest")
	if sink == nil {
		sink = LogSink{Logger: log}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 5 * time.Second
	}
	return &Pipeline{
		store:     store,
		sink:      sink,
		logger:    log,
		opts:      opts,
		queue:     make(chan Message, opts.QueueSize),
		dropSlots: semaphore.NewWeighted(int64(opts.Workers)),
	}
}

// Submit enqueues msg without blocking.
func (p *Pipeline) Submit(ctx context.Context, msg Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(ctx, msg, ErrPipelineStopped)
		return ErrPipelineStopped
	}

	select {
	case p.queue <- msg:
		p.submitted.Add(1)
		return nil
	default:
		p.drop(ctx, msg, ErrQueueFull)
		return ErrQueueFull
	}
}

// drop hands a rejected message to the sink off the caller's goroutine. When too many
// drops are already in flight it is only logged.
func (p *Pipeline) drop(ctx context.Context, msg Message, err error) {
	p.dropped.Add(1)
	if !p.dropSlots.TryAcquire(1) {
		LogSink{Logger: p.logger}.Drop(ctx, msg, StageQueue, err)
		return
	}
	go func() {
		defer p.dropSlots.Release(1)
		p.sink.Drop(context.WithoutCancel(ctx), msg, StageQueue, err)
	}()
}

// Run starts the workers and blocks until ctx is cancelled and every queued message
// has been processed. Steps of messages drained after cancellation still get their
// own timeout. A pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrPipelineStopped
	case p.started:
		p.mu.Unlock()
		return ErrPipelineRunning
	}
	p.started = true
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Starting ingestion workers", "workers", p.opts.Workers, "queue_size", p.opts.QueueSize)

	g := new(errgroup.Group)
	base := context.WithoutCancel(ctx)
	for i := range p.opts.Workers {
		g.Go(func() error {
			for msg := range p.queue {
				p.Process(base, msg)
			}
			p.logger.Debug("Ingestion worker stopped", "worker", i)
			return nil
		})
	}

	<-ctx.Done()
	p.mu.Lock()
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info("Draining ingestion queue", "pending", len(p.queue))
	err := g.Wait()

	stats := p.Stats()
	p.logger.Info("Ingestion workers stopped",
		"processed", stats.Processed, "dropped", stats.Dropped, "step_errors", stats.StepErrors)
	return err
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted:  p.submitted.Load(),
		Dropped:    p.dropped.Load(),
		Processed:  p.processed.Load(),
		Duplicates: p.duplicates.Load(),
		StepErrors: p.stepErrors.Load(),
		Edges:      p.edges.Load(),
	}
}

// Process runs one message through identity update, event recording and mention
// extraction. A failed step is logged and dead-lettered and never stops the steps
// after it, except that mention edges are skipped when the event was not newly
// recorded: they would either reference a missing event or double count a redelivery.
func (p *Pipeline) Process(ctx context.Context, msg Message) Outcome {
	var out Outcome
	defer p.processed.Add(1)

	log := p.logger.With("chat_id", msg.ChatID, "user_id", msg.UserID, "message_id", msg.MessageID)
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	out.IdentityErr = p.step(ctx, func(stepCtx context.Context) error {
		return p.store.UpsertIdentity(stepCtx, &database.Identity{
			UserID:        msg.UserID,
			Username:      msg.Username,
			FirstName:     msg.FirstName,
			LastName:      msg.LastName,
			IsBot:         msg.IsBot,
			LastSeen:      ts.Unix(),
			LastChatID:    msg.ChatID,
			LastMessageID: msg.MessageID,
		})
	})
	if out.IdentityErr != nil {
		p.fail(ctx, log, msg, StageIdentity, out.IdentityErr)
	}

	event := &database.MessageEvent{
		ChatID:    msg.ChatID,
		UserID:    msg.UserID,
		MessageID: msg.MessageID,
		CreatedAt: ts.Unix(),
	}
	event.Text.String, event.Text.Valid = msg.Text, msg.Text != ""

	out.EventErr = p.step(ctx, func(stepCtx context.Context) error {
		var err error
		out.Event, err = p.store.RecordMessage(stepCtx, event)
		return err
	})
	if out.EventErr != nil {
		p.fail(ctx, log, msg, StageEvent, out.EventErr)
		return out
	}
	if out.Event.Status == database.StatusDuplicate {
		p.duplicates.Add(1)
		log.DebugContext(ctx, "Duplicate delivery ignored", "event_id", out.Event.EventID)
		return out
	}

	var resolveErrs []error
	_ = p.step(ctx, func(stepCtx context.Context) error {
		out.Targets, resolveErrs = ExtractTargets(stepCtx, msg, p.store)
		return nil
	})
	for _, err := range resolveErrs {
		log.WarnContext(ctx, "Mention handle lookup failed", "error", err)
	}

	for _, target := range out.Targets {
		edge := &database.MentionEdge{
			ChatID:     msg.ChatID,
			FromUserID: msg.UserID,
			ToUserID:   target,
			MessageID:  msg.MessageID,
			CreatedAt:  ts.Unix(),
		}
		var inserted bool
		err := p.step(ctx, func(stepCtx context.Context) error {
			var err error
			inserted, err = p.store.RecordMention(stepCtx, edge)
			return err
		})
		if err != nil {
			err = fmt.Errorf("edge to %d: %w", target, err)
			out.EdgeErrs = append(out.EdgeErrs, err)
			p.fail(ctx, log, msg, StageMention, err)
			continue
		}
		if inserted {
			out.EdgesAdded++
			p.edges.Add(1)
		}
	}

	log.DebugContext(ctx, "Message ingested", "event_id", out.Event.EventID,
		"indexed", out.Event.Indexed, "targets", len(out.Targets), "edges_added", out.EdgesAdded)
	return out
}

// step runs fn with its own timeout.
func (p *Pipeline) step(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.opts.StepTimeout)
	defer cancel()
	return fn(stepCtx)
}

func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, msg Message, stage Stage, err error) {
	p.stepErrors.Add(1)
	if errors.Is(err, context.DeadlineExceeded) {
		log.WarnContext(ctx, "Ingestion step timed out", "stage", string(stage), "timeout", p.opts.StepTimeout)
	}
	p.sink.Drop(ctx, msg, stage, err)
}
