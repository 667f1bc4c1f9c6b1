// Package storage persists the application state blob and the outbound sync
// queue.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNoState is returned by Load before the first Save.
var ErrNoState = errors.New("no saved state")

var ErrItemNotFound = errors.New("queue item not found")

// StateStore keeps the serialized AppState. Save replaces the previous blob
// and must be durable when it returns.
type StateStore interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
	Close() error
}

// ItemKind is what a queued item carries.
type ItemKind string

const (
	// KindEvent is a single audit event, delivered at most once.
	KindEvent ItemKind = "event"
	// KindSnapshot is a full-state push. Only the newest pending one is kept
	// and it is retried until it goes through.
	KindSnapshot ItemKind = "snapshot"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// QueueItem is one row of the outbound queue.
type QueueItem struct {
	ID          int64
	Kind        ItemKind
	Payload     []byte
	Status      ItemStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// QueueStats counts items per status.
type QueueStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// Outbox is the durable queue of payloads waiting for the remote.
type Outbox interface {
	// Enqueue adds an item. Enqueuing a snapshot drops older pending snapshots.
	Enqueue(ctx context.Context, kind ItemKind, payload []byte) (int64, error)
	// DequeueBatch returns up to limit pending items, oldest first.
	DequeueBatch(ctx context.Context, limit int) ([]QueueItem, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkComplete(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// IncrementAttempt records a failed attempt and puts the item back to pending.
	IncrementAttempt(ctx context.Context, id int64, reason string) error
	// ResetStaleProcessing returns items left in processing by a crash to pending.
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompleted(ctx context.Context, before time.Time) error
	RetryFailed(ctx context.Context) error
	Stats(ctx context.Context) (QueueStats, error)
}
