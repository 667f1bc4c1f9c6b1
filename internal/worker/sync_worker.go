// Package worker delivers relayed outbox items to the remote and keeps the
// local ledger refreshed from it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/log"
	"spendwise/internal/remote"
	"spendwise/internal/services"
)

// Target is the remote that relayed items are delivered to.
type Target interface {
	remote.Pusher
	remote.EventSink
}

// Refresher merges the remote copy into local state. Reload picks up writes
// other processes made to the shared store before merging.
type Refresher interface {
	Reload(ctx context.Context) error
	Pull(ctx context.Context) (services.PullResult, error)
}

// SyncWorker handles messages from the AMQP relay
type SyncWorker struct {
	target    Target
	refresher Refresher
	logger    *log.Logger

	mu sync.Mutex
	// newest snapshot timestamp delivered so far
	lastSnapshot time.Time
}

func NewSyncWorker(target Target, refresher Refresher, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncWorker{
		target:    target,
		refresher: refresher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage delivers one relayed envelope. A snapshot older than one
// already delivered is dropped since the remote holds newer data.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.Envelope) error {
	switch msg.Kind {
	case amqp.KindEvent:
		ev, err := msg.Event()
		if err != nil {
			return err
		}
		if err := w.target.Publish(ctx, ev); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		w.logger.DebugContext(ctx, "Relayed event",
			log.FieldOperation, log.OpPublish, log.FieldAction, ev.Action)
		return nil

	case amqp.KindSnapshot:
		if w.superseded(msg.Timestamp) {
			w.logger.InfoContext(ctx, "Dropping superseded snapshot", "timestamp", msg.Timestamp)
			return nil
		}
		s, err := msg.Snapshot()
		if err != nil {
			return err
		}
		if err := w.target.Push(ctx, s); err != nil {
			return fmt.Errorf("push snapshot: %w", err)
		}
		w.markDelivered(msg.Timestamp)
		w.logger.InfoContext(ctx, "Relayed snapshot", log.FieldOperation, log.OpPush, "timestamp", msg.Timestamp)
		return nil
	}
	return fmt.Errorf("unknown message kind %q", msg.Kind)
}

func (w *SyncWorker) superseded(ts time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.lastSnapshot.IsZero() && ts.Before(w.lastSnapshot)
}

func (w *SyncWorker) markDelivered(ts time.Time) {
	w.mu.Lock()
	if ts.After(w.lastSnapshot) {
		w.lastSnapshot = ts
	}
	w.mu.Unlock()
}

// Refresh pulls once. A disabled remote is not an error.
func (w *SyncWorker) Refresh(ctx context.Context) error {
	if w.refresher == nil {
		return nil
	}
	if err := w.refresher.Reload(ctx); err != nil {
		return fmt.Errorf("reload state: %w", err)
	}
	res, err := w.refresher.Pull(ctx)
	if errors.Is(err, remote.ErrDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull remote: %w", err)
	}
	if len(res.Skipped) > 0 {
		w.logger.WarnContext(ctx, "Remote fields left local", log.FieldOperation, log.OpPull, "skipped", res.Skipped)
	}
	return nil
}

// RunRefresh pulls on every tick until ctx is done. Failures are logged and
// retried on the next tick.
func (w *SyncWorker) RunRefresh(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || w.refresher == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Refresh(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}
