package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/remote"
	"spendwise/internal/remote/memory"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

type fakeRefresher struct {
	reloads int
	calls   int
	res     services.PullResult
	err     error
}

func (f *fakeRefresher) Reload(context.Context) error {
	f.reloads++
	return nil
}

func (f *fakeRefresher) Pull(context.Context) (services.PullResult, error) {
	f.calls++
	return f.res, f.err
}

func snapshotAt(t *testing.T, ts time.Time, walletName string) *amqp.Envelope {
	t.Helper()
	msg, err := amqp.NewSnapshotMessage(core.Snapshot{
		Action:  core.ActionSyncAll,
		Wallets: []core.Wallet{{ID: "w1", Name: walletName}},
	})
	if err != nil {
		t.Fatal(err)
	}
	msg.Timestamp = ts
	return msg
}

func TestSyncWorker_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("event is published", func(t *testing.T) {
		r := memory.New()
		w := NewSyncWorker(r, nil, nil)
		msg, err := amqp.NewEventMessage(core.Event{Action: core.ActionAddTransaction, WalletID: "w1"})
		if err != nil {
			t.Fatal(err)
		}
		if err := w.HandleMessage(ctx, msg); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
		if evs := r.Events(); len(evs) != 1 || evs[0].WalletID != "w1" {
			t.Errorf("Events() = %+v", evs)
		}
	})

	t.Run("older snapshot is dropped", func(t *testing.T) {
		r := memory.New()
		w := NewSyncWorker(r, nil, nil)
		now := time.Now()

		if err := w.HandleMessage(ctx, snapshotAt(t, now, "new")); err != nil {
			t.Fatal(err)
		}
		if err := w.HandleMessage(ctx, snapshotAt(t, now.Add(-time.Minute), "old")); err != nil {
			t.Fatal(err)
		}
		snaps := r.Snapshots()
		if len(snaps) != 1 || snaps[0].Wallets[0].Name != "new" {
			t.Errorf("Snapshots() = %+v, want only the newest", snaps)
		}
	})

	t.Run("remote failure is returned", func(t *testing.T) {
		r := memory.New()
		r.SetErr(errors.New("quota exceeded"))
		w := NewSyncWorker(r, nil, nil)
		if err := w.HandleMessage(ctx, snapshotAt(t, time.Now(), "x")); err == nil {
			t.Fatal("HandleMessage() = nil, want error")
		}
		// a failed push does not count as delivered
		if !w.lastSnapshot.IsZero() {
			t.Errorf("lastSnapshot = %v, want zero", w.lastSnapshot)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := NewSyncWorker(memory.New(), nil, nil)
		msg := amqp.NewRawMessage("audit", []byte(`{}`))
		if err := w.HandleMessage(ctx, msg); err == nil {
			t.Fatal("HandleMessage() = nil, want error")
		}
	})
}

func TestSyncWorker_Refresh(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "ok"},
		{name: "disabled remote is ignored", err: remote.ErrDisabled},
		{name: "remote failure", err: errors.New("timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRefresher{err: tt.err, res: services.PullResult{Applied: true, Skipped: []string{"wallets"}}}
			w := NewSyncWorker(memory.New(), f, nil)
			err := w.Refresh(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Refresh() error = %v, wantErr %v", err, tt.wantErr)
			}
			if f.reloads != 1 || f.calls != 1 {
				t.Errorf("Reload/Pull called %d/%d times, want 1/1", f.reloads, f.calls)
			}
		})
	}
}

func TestSyncWorker_RunRefreshStopsOnCancel(t *testing.T) {
	f := &fakeRefresher{}
	w := NewSyncWorker(memory.New(), f, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.RunRefresh(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunRefresh() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunRefresh did not return after cancel")
	}
}

func TestSyncWorker_RefreshAfterRelayKeepsLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r := memory.New()
	tr, err := services.NewTracker(ctx, store, services.WithPuller(r), services.WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tr.Close)
	w := NewSyncWorker(r, tr, nil)

	snap, err := amqp.NewSnapshotMessage(tr.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.HandleMessage(ctx, snap); err != nil {
		t.Fatalf("HandleMessage(snapshot) error = %v", err)
	}

	res, err := tr.Submit(ctx, ledger.Income("w1", "7", 5000, ""))
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range res.Events {
		msg, err := amqp.NewEventMessage(ev)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.HandleMessage(ctx, msg); err != nil {
			t.Fatalf("HandleMessage(event) error = %v", err)
		}
	}

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	wl, _ := tr.State().Wallet("w1")
	if wl.Balance != 5_005_000 {
		t.Errorf("w1 after refresh = %d, want 5005000", wl.Balance)
	}
	if n := len(tr.TransactionsForWallet("w1")); n != 1 {
		t.Errorf("w1 has %d transactions after refresh, want 1", n)
	}
}
