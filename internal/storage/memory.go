package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a process-local StateStore and Outbox for tests and the
// "memory" backend. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	blob   []byte
	items  []QueueItem
	nextID int64

	// FailSave makes Save return this error when set.
	FailSave error
}

var (
	_ StateStore = (*MemoryStore)(nil)
	_ Outbox     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.blob = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, ErrNoState
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Enqueue(_ context.Context, kind ItemKind, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == KindSnapshot {
		kept := m.items[:0]
		for _, it := range m.items {
			if it.Kind == KindSnapshot && it.Status == StatusPending {
				continue
			}
			kept = append(kept, it)
		}
		m.items = kept
	}
	m.nextID++
	m.items = append(m.items, QueueItem{
		ID:        m.nextID,
		Kind:      kind,
		Payload:   append([]byte(nil), payload...),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
	return m.nextID, nil
}

func (m *MemoryStore) DequeueBatch(_ context.Context, limit int) ([]QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []QueueItem
	for _, it := range m.items {
		if len(out) >= limit {
			break
		}
		if it.Status == StatusPending {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *MemoryStore) update(id int64, fn func(*QueueItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			fn(&m.items[i])
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrItemNotFound, id)
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id int64) error {
	return m.update(id, func(it *QueueItem) { it.Status = StatusProcessing })
}

func (m *MemoryStore) MarkComplete(_ context.Context, id int64) error {
	return m.update(id, func(it *QueueItem) {
		now := time.Now()
		it.Status = StatusCompleted
		it.ProcessedAt = &now
	})
}

func (m *MemoryStore) MarkFailed(_ context.Context, id int64, reason string) error {
	return m.update(id, func(it *QueueItem) {
		now := time.Now()
		it.Status = StatusFailed
		it.Attempts++
		it.LastError = reason
		it.ProcessedAt = &now
	})
}

func (m *MemoryStore) IncrementAttempt(_ context.Context, id int64, reason string) error {
	return m.update(id, func(it *QueueItem) {
		it.Status = StatusPending
		it.Attempts++
		it.LastError = reason
	})
}

func (m *MemoryStore) ResetStaleProcessing(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Status == StatusProcessing {
			m.items[i].Status = StatusPending
		}
	}
	return nil
}

func (m *MemoryStore) CleanupCompleted(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, it := range m.items {
		if it.Status == StatusCompleted && it.ProcessedAt != nil && it.ProcessedAt.Before(before) {
			continue
		}
		kept = append(kept, it)
	}
	m.items = kept
	return nil
}

func (m *MemoryStore) RetryFailed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Status == StatusFailed {
			m.items[i].Status = StatusPending
			m.items[i].Attempts = 0
		}
	}
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st QueueStats
	for _, it := range m.items {
		switch it.Status {
		case StatusPending:
			st.Pending++
		case StatusProcessing:
			st.Processing++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
	}
	return st, nil
}
