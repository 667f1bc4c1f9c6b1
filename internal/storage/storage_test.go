package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "spendwise.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type stateOutbox interface {
	StateStore
	Outbox
}

// stores runs fn against every implementation.
func stores(t *testing.T, fn func(t *testing.T, st stateOutbox)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestStateRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, st stateOutbox) {
		ctx := context.Background()
		if _, err := st.Load(ctx); !errors.Is(err, ErrNoState) {
			t.Fatalf("Load() on empty store error = %v, want ErrNoState", err)
		}
		if err := st.Save(ctx, []byte(`{"wallets":[]}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := st.Save(ctx, []byte(`{"wallets":[{"id":"w1"}]}`)); err != nil {
			t.Fatalf("second Save() error = %v", err)
		}
		got, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if string(got) != `{"wallets":[{"id":"w1"}]}` {
			t.Errorf("Load() = %s", got)
		}
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, []byte("v1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	got, err := s.Load(ctx)
	if err != nil || string(got) != "v1" {
		t.Errorf("Load() after reopen = %q, %v", got, err)
	}
}

func TestOutbox_Lifecycle(t *testing.T) {
	stores(t, func(t *testing.T, st stateOutbox) {
		ctx := context.Background()
		e1, err := st.Enqueue(ctx, KindEvent, []byte("e1"))
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		e2, _ := st.Enqueue(ctx, KindEvent, []byte("e2"))

		items, err := st.DequeueBatch(ctx, 10)
		if err != nil {
			t.Fatalf("DequeueBatch() error = %v", err)
		}
		if len(items) != 2 || items[0].ID != e1 || string(items[0].Payload) != "e1" {
			t.Fatalf("DequeueBatch() = %+v", items)
		}

		if err := st.MarkProcessing(ctx, e1); err != nil {
			t.Fatalf("MarkProcessing() error = %v", err)
		}
		if err := st.MarkComplete(ctx, e1); err != nil {
			t.Fatalf("MarkComplete() error = %v", err)
		}
		if err := st.MarkFailed(ctx, e2, "boom"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}

		stats, _ := st.Stats(ctx)
		if stats.Completed != 1 || stats.Failed != 1 || stats.Pending != 0 {
			t.Errorf("Stats() = %+v", stats)
		}

		if err := st.RetryFailed(ctx); err != nil {
			t.Fatalf("RetryFailed() error = %v", err)
		}
		items, _ = st.DequeueBatch(ctx, 10)
		if len(items) != 1 || items[0].ID != e2 || items[0].Attempts != 0 {
			t.Errorf("after RetryFailed() = %+v", items)
		}

		if err := st.CleanupCompleted(ctx, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("CleanupCompleted() error = %v", err)
		}
		stats, _ = st.Stats(ctx)
		if stats.Completed != 0 {
			t.Errorf("completed items left after cleanup: %+v", stats)
		}

		if err := st.MarkComplete(ctx, 9999); !errors.Is(err, ErrItemNotFound) {
			t.Errorf("MarkComplete(unknown) error = %v", err)
		}
	})
}

func TestOutbox_SnapshotSupersedes(t *testing.T) {
	stores(t, func(t *testing.T, st stateOutbox) {
		ctx := context.Background()
		st.Enqueue(ctx, KindSnapshot, []byte("s1"))
		st.Enqueue(ctx, KindEvent, []byte("e1"))
		st.Enqueue(ctx, KindSnapshot, []byte("s2"))

		items, _ := st.DequeueBatch(ctx, 10)
		if len(items) != 2 {
			t.Fatalf("got %d pending items, want 2", len(items))
		}
		if string(items[0].Payload) != "e1" || string(items[1].Payload) != "s2" {
			t.Errorf("pending = %s, %s", items[0].Payload, items[1].Payload)
		}
	})
}

func TestOutbox_RetryAndStaleReset(t *testing.T) {
	stores(t, func(t *testing.T, st stateOutbox) {
		ctx := context.Background()
		id, _ := st.Enqueue(ctx, KindSnapshot, []byte("s"))

		st.MarkProcessing(ctx, id)
		if err := st.IncrementAttempt(ctx, id, "timeout"); err != nil {
			t.Fatalf("IncrementAttempt() error = %v", err)
		}
		items, _ := st.DequeueBatch(ctx, 1)
		if len(items) != 1 || items[0].Attempts != 1 || items[0].LastError != "timeout" {
			t.Fatalf("after IncrementAttempt() = %+v", items)
		}

		st.MarkProcessing(ctx, id)
		if items, _ := st.DequeueBatch(ctx, 1); len(items) != 0 {
			t.Fatalf("processing item dequeued")
		}
		if err := st.ResetStaleProcessing(ctx); err != nil {
			t.Fatalf("ResetStaleProcessing() error = %v", err)
		}
		if items, _ := st.DequeueBatch(ctx, 1); len(items) != 1 {
			t.Errorf("stale item not reset")
		}
	})
}
