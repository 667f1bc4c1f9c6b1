package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/storage"
)

// Deliverer is where queued items end up: a remote adapter or the AMQP relay.
type Deliverer interface {
	Push(ctx context.Context, s core.Snapshot) error
	Publish(ctx context.Context, ev core.Event) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxSnapshotRetries bounds attempts for a snapshot before it is marked
	// failed. Zero retries forever; a newer snapshot supersedes it anyway.
	MaxSnapshotRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the outbox into a Deliverer. Events get one attempt;
// snapshots stay queued until they go through.
type SyncProcessor struct {
	outbox storage.Outbox
	target Deliverer
	config SyncProcessorConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(outbox storage.Outbox, target Deliverer, config SyncProcessorConfig) *SyncProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	return &SyncProcessor{
		outbox: outbox,
		target: target,
		config: config,
		logger: log.FromContext(context.Background()).WithComponent(log.ComponentWorker),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left in processing by a crash go back to pending.
	if err := p.outbox.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", log.FieldError, err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessOnce(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessOnce handles one batch of pending items and returns how many were
// delivered.
func (p *SyncProcessor) ProcessOnce(ctx context.Context) int {
	items, err := p.outbox.DequeueBatch(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue sync batch", log.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing sync batch", log.FieldCount, len(items))

	delivered := 0
	for _, item := range items {
		select {
		case <-p.stopCh:
			return delivered
		case <-ctx.Done():
			return delivered
		default:
		}

		if err := p.outbox.MarkProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing",
				log.FieldQueueItemID, item.ID, log.FieldError, err)
			continue
		}

		if err := p.deliver(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		delivered++
		if err := p.outbox.MarkComplete(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync complete",
				log.FieldQueueItemID, item.ID, log.FieldError, err)
		}
	}
	return delivered
}

func (p *SyncProcessor) deliver(ctx context.Context, item storage.QueueItem) error {
	switch item.Kind {
	case storage.KindEvent:
		var ev core.Event
		if err := json.Unmarshal(item.Payload, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := p.target.Publish(ctx, ev); err != nil {
			return fmt.Errorf("publish %s: %w", ev.Action, err)
		}
		p.logger.DebugContext(ctx, "Delivered event",
			log.FieldQueueItemID, item.ID, log.FieldAction, ev.Action)
	case storage.KindSnapshot:
		var s core.Snapshot
		if err := json.Unmarshal(item.Payload, &s); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		if err := p.target.Push(ctx, s); err != nil {
			return fmt.Errorf("push snapshot: %w", err)
		}
		p.logger.InfoContext(ctx, "Pushed snapshot",
			log.FieldQueueItemID, item.ID,
			"wallets", len(s.Wallets),
			"transactions", len(s.Transactions))
	default:
		return fmt.Errorf("unknown item kind: %s", item.Kind)
	}
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.QueueItem, processErr error) {
	attempt := item.Attempts + 1
	p.logger.WarnContext(ctx, "Sync delivery failed",
		log.FieldQueueItemID, item.ID,
		"kind", item.Kind,
		log.FieldAttempt, attempt,
		log.FieldError, processErr)

	permanent := item.Kind != storage.KindSnapshot ||
		(p.config.MaxSnapshotRetries > 0 && attempt >= p.config.MaxSnapshotRetries)
	if permanent {
		if err := p.outbox.MarkFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync as failed",
				log.FieldQueueItemID, item.ID, log.FieldError, err)
		}
		return
	}
	if err := p.outbox.IncrementAttempt(ctx, item.ID, processErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to increment sync attempt",
			log.FieldQueueItemID, item.ID, log.FieldError, err)
	}
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if err := p.outbox.CleanupCompleted(ctx, cutoff); err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", log.FieldError, err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.QueueStats, error) {
	return p.outbox.Stats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.outbox.RetryFailed(ctx)
}
