package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/remote"
	"spendwise/internal/remote/memory"
	"spendwise/internal/state"
	"spendwise/internal/storage"
)

type counterIDs struct{ n int }

func (c *counterIDs) NewID() string {
	c.n++
	return fmt.Sprintf("id-%d", c.n)
}

func newTestTracker(t *testing.T, store *storage.MemoryStore, opts ...TrackerOption) *Tracker {
	t.Helper()
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	engine := ledger.New(
		ledger.WithIDGenerator(&counterIDs{}),
		ledger.WithClock(func() time.Time { return at }),
	)
	base := []TrackerOption{WithOutbox(store), WithEngine(engine), WithIDs(&counterIDs{}), WithLocation(time.UTC)}
	tr, err := NewTracker(context.Background(), store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	t.Cleanup(tr.Close)
	return tr
}

func walletBalance(t *testing.T, tr *Tracker, id string) core.Money {
	t.Helper()
	w, ok := tr.State().Wallet(id)
	if !ok {
		t.Fatalf("wallet %s missing", id)
	}
	return w.Balance
}

func queued(t *testing.T, store *storage.MemoryStore) storage.QueueStats {
	t.Helper()
	st, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestNewTracker_SeedsAndPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := newTestTracker(t, store)

	if len(tr.State().Wallets) != len(core.DefaultWallets()) {
		t.Errorf("seeded %d wallets", len(tr.State().Wallets))
	}
	if !tr.VerifyPassword("1234") {
		t.Error("default password not accepted")
	}
	if tr.State().SettingsPassword == "1234" {
		t.Error("password stored in plain text")
	}
	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("seed state not saved: %v", err)
	}
}

func TestTracker_SubmitPersistsAndQueues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tr := newTestTracker(t, store)

	res, err := tr.Submit(ctx, ledger.Expense("w1", "1", 45000, "pho"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].WalletName != "Cash" {
		t.Errorf("Transactions = %+v", res.Transactions)
	}
	if got := walletBalance(t, tr, "w1"); got != 4_955_000 {
		t.Errorf("w1 balance = %d, want 4955000", got)
	}
	if tr.Version() != 1 {
		t.Errorf("Version() = %d, want 1", tr.Version())
	}
	if st := queued(t, store); st.Pending != 2 {
		t.Errorf("queued %+v, want the event and a snapshot", st)
	}

	reopened := newTestTracker(t, store)
	if got := walletBalance(t, reopened, "w1"); got != 4_955_000 {
		t.Errorf("reloaded w1 balance = %d", got)
	}
	if n := len(reopened.TransactionsForWallet("w1")); n != 1 {
		t.Errorf("reloaded %d transactions", n)
	}
}

func TestTracker_ReloadSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	a := newTestTracker(t, store)
	b := newTestTracker(t, store)

	if _, err := a.Submit(ctx, ledger.Expense("w1", "1", 10000, "")); err != nil {
		t.Fatal(err)
	}
	if got := walletBalance(t, b, "w1"); got != 5_000_000 {
		t.Fatalf("stale tracker balance = %d before reload", got)
	}
	if err := b.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := walletBalance(t, b, "w1"); got != 4_990_000 {
		t.Errorf("w1 balance after reload = %d, want 4990000", got)
	}
}

func TestTracker_SubmitDeclined(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tr := newTestTracker(t, store)

	_, err := tr.Submit(ctx, ledger.Expense("w1", "1", 9_000_000, "too much"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("Submit() error = %v, want ErrInsufficientFunds", err)
	}
	var ve *ledger.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Errorf("error = %#v, want amount ValidationError", err)
	}
	if got := walletBalance(t, tr, "w1"); got != 5_000_000 {
		t.Errorf("w1 balance changed to %d", got)
	}
	if st := queued(t, store); st.Pending != 0 {
		t.Errorf("declined intent queued %+v", st)
	}
}

func TestTracker_SaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tr := newTestTracker(t, store)

	boom := errors.New("disk full")
	store.FailSave = boom
	if _, err := tr.Submit(ctx, ledger.Expense("w1", "1", 1000, "")); !errors.Is(err, boom) {
		t.Fatalf("Submit() error = %v, want %v", err, boom)
	}
	if got := walletBalance(t, tr, "w1"); got != 5_000_000 {
		t.Errorf("in-memory balance changed to %d", got)
	}
	if tr.Version() != 0 {
		t.Errorf("Version() = %d after failed save", tr.Version())
	}
	if st := queued(t, store); st.Pending != 0 {
		t.Errorf("events queued for unsaved mutation: %+v", st)
	}

	if err := tr.DeleteFavorite(ctx, "f1"); !errors.Is(err, boom) {
		t.Errorf("DeleteFavorite() error = %v", err)
	}
	if len(tr.State().Favorites) != 4 {
		t.Error("favorite removed although save failed")
	}
}

func TestTracker_DebtFlow(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tr := newTestTracker(t, store)

	if _, err := tr.Draw(ctx, "w-cafe-127", "", "1", 800_000, "tab"); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	first, err := tr.DebtLedger("w-cafe-127")
	if err != nil {
		t.Fatalf("DebtLedger() error = %v", err)
	}
	if first.TotalBorrowed != 800_000 || first.RemainingBalance != 800_000 {
		t.Errorf("ledger after draw = %+v", first)
	}

	res, err := tr.PayDebt(ctx, "w1", "w-cafe-127", 200_000, "")
	if err != nil {
		t.Fatalf("PayDebt() error = %v", err)
	}
	if len(res.Events) != 2 {
		t.Errorf("PayDebt events = %d, want 2", len(res.Events))
	}

	l, _ := tr.DebtLedger("w-cafe-127")
	if l.TotalRepaid != 200_000 || l.RemainingBalance != 600_000 {
		t.Errorf("cached ledger not refreshed: %+v", l)
	}
	if l.Progress() != 25 {
		t.Errorf("Progress() = %v, want 25", l.Progress())
	}
	if got := walletBalance(t, tr, "w1"); got != 4_800_000 {
		t.Errorf("w1 = %d, want 4800000", got)
	}

	if _, err := tr.BorrowMore(ctx, "w-cafe-127", "w1", 100_000, ""); err != nil {
		t.Fatalf("BorrowMore() error = %v", err)
	}
	l, _ = tr.DebtLedger("w-cafe-127")
	if l.RemainingBalance != 700_000 || l.Unreconciled() != 0 {
		t.Errorf("ledger after loan advance = %+v", l)
	}
}

func TestTracker_DebtLedgerTracksCommitsUnderConcurrentReads(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore())

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_, _ = tr.DebtLedger("w-cafe-127")
				}
			}
		}()
	}

	for i := 1; i <= 500; i++ {
		if _, err := tr.Draw(ctx, "w-cafe-127", "", "1", 1000, ""); err != nil {
			t.Fatal(err)
		}
		l, err := tr.DebtLedger("w-cafe-127")
		if err != nil {
			t.Fatal(err)
		}
		if want := core.Money(i * 1000); l.RemainingBalance != want || l.TotalBorrowed != want {
			t.Errorf("draw %d: ledger borrowed %d remaining %d, want %d", i, l.TotalBorrowed, l.RemainingBalance, want)
			break
		}
	}
	close(done)
	wg.Wait()
}

func TestTracker_DebtLedgerErrors(t *testing.T) {
	tr := newTestTracker(t, storage.NewMemoryStore())

	if _, err := tr.DebtLedger("w1"); !errors.Is(err, ledger.ErrNotDebtWallet) {
		t.Errorf("DebtLedger(asset) error = %v", err)
	}
	if _, err := tr.DebtLedger("nope"); !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Errorf("DebtLedger(missing) error = %v", err)
	}
}

func TestTracker_SubmitInput(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore())

	res, err := tr.SubmitInput(ctx, ledger.Input{
		Amount: 1_000_000, WalletID: "w-vcb", ToWalletID: "w-tcb", Type: core.Transfer,
	})
	if err != nil {
		t.Fatalf("SubmitInput() error = %v", err)
	}
	if len(res.Transactions) != 2 {
		t.Errorf("transfer wrote %d records", len(res.Transactions))
	}
	if walletBalance(t, tr, "w-vcb") != 14_000_000 || walletBalance(t, tr, "w-tcb") != 11_000_000 {
		t.Error("transfer balances wrong")
	}

	// Reserved debt category with a second wallet repays; nothing is owed yet.
	repay := ledger.Input{
		Amount: 200_000, Type: core.Expense, CategoryID: core.CategoryDebtRepayment,
		WalletID: "w1", ToWalletID: "w-cafe-127",
	}
	if _, err := tr.SubmitInput(ctx, repay); !errors.Is(err, ledger.ErrOverpayment) {
		t.Fatalf("SubmitInput(repay) error = %v, want ErrOverpayment", err)
	}
	if _, err := tr.Draw(ctx, "w-cafe-127", "", "1", 200_000, "tab"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SubmitInput(ctx, repay); err != nil {
		t.Fatalf("SubmitInput(repay) after draw error = %v", err)
	}
	if walletBalance(t, tr, "w1") != 4_800_000 || walletBalance(t, tr, "w-cafe-127") != 0 {
		t.Error("repayment balances wrong")
	}
}

func TestTracker_SubmitFavorite(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore())

	res, err := tr.SubmitFavorite(ctx, "f1", "", 0)
	if err != nil {
		t.Fatalf("SubmitFavorite() error = %v", err)
	}
	if got := walletBalance(t, tr, "w-cafe-127"); got != 16000 {
		t.Errorf("debt balance = %d, want 16000", got)
	}
	if tx := res.Transactions[0]; tx.Note != "Iced coffee" || tx.Icon != "☕" {
		t.Errorf("record = %+v", tx)
	}

	if err := tr.DeleteWallet(ctx, "w1"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SubmitFavorite(ctx, "f4", "", 0); !errors.Is(err, ledger.ErrMissingWallet) {
		t.Errorf("dangling default wallet error = %v", err)
	}
	if _, err := tr.SubmitFavorite(ctx, "f4", "w-vcb", 50000); err != nil {
		t.Errorf("explicit wallet error = %v", err)
	}
	if got := walletBalance(t, tr, "w-vcb"); got != 14_950_000 {
		t.Errorf("w-vcb = %d, want 14950000", got)
	}

	if err := tr.DeleteCategory(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	res, err = tr.SubmitFavorite(ctx, "f2", "", 0)
	if err != nil {
		t.Fatalf("dangling category error = %v", err)
	}
	if tx := res.Transactions[0]; tx.Note != "Cigarettes" || tx.Icon != "🚬" {
		t.Errorf("dangling category record = %+v", tx)
	}

	if _, err := tr.SubmitFavorite(ctx, "nope", "w-vcb", 0); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("unknown favorite error = %v", err)
	}
}

func TestTracker_ConfigEditsQueueSnapshots(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate", func(t *testing.T) {
		store := storage.NewMemoryStore()
		tr := newTestTracker(t, store)

		w, err := tr.AddWallet(ctx, core.Wallet{Name: "Momo", Balance: 100, Kind: core.KindAsset})
		if err != nil {
			t.Fatalf("AddWallet() error = %v", err)
		}
		if w.ID == "" {
			t.Error("AddWallet() did not assign an ID")
		}
		name := "MoMo"
		if err := tr.UpdateWallet(ctx, w.ID, state.WalletPatch{Name: &name}); err != nil {
			t.Fatal(err)
		}
		// Each snapshot supersedes the pending one.
		if st := queued(t, store); st.Pending != 1 {
			t.Errorf("queued %+v, want one snapshot", st)
		}
	})

	t.Run("debounced", func(t *testing.T) {
		store := storage.NewMemoryStore()
		tr := newTestTracker(t, store, WithPushDebounce(time.Hour))

		if _, err := tr.AddCategory(ctx, core.Category{Name: "Pets", Type: core.Expense, Icon: "🐶"}); err != nil {
			t.Fatalf("AddCategory() error = %v", err)
		}
		if _, err := tr.AddFavorite(ctx, core.FavoriteItem{Name: "Bread", Price: 10000, CategoryID: "1", ShopName: "Bakery"}); err != nil {
			t.Fatalf("AddFavorite() error = %v", err)
		}
		if st := queued(t, store); st.Pending != 0 {
			t.Errorf("snapshot queued before quiet period: %+v", st)
		}
		tr.Close()
		if st := queued(t, store); st.Pending != 1 {
			t.Errorf("Close() queued %+v, want one snapshot", st)
		}
		items, _ := store.DequeueBatch(ctx, 10)
		var snap core.Snapshot
		if err := json.Unmarshal(items[0].Payload, &snap); err != nil {
			t.Fatal(err)
		}
		if len(snap.Favorites) != 5 {
			t.Errorf("snapshot has %d favorites, want 5", len(snap.Favorites))
		}
	})
}

func TestTracker_RenameShop(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore())

	n, err := tr.RenameShop(ctx, "CAFE 127", "Cafe 127")
	if err != nil || n != 3 {
		t.Fatalf("RenameShop() = %d, %v", n, err)
	}
	if _, err := tr.RenameShop(ctx, "Nowhere", "X"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("RenameShop(unknown) error = %v", err)
	}
	if shops := tr.Shops(); len(shops) != 2 {
		t.Errorf("Shops() = %v", shops)
	}
}

func TestTracker_Password(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore(), WithDefaultPassword("secret"))

	if err := tr.ChangePassword(ctx, "wrong", "x"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("ChangePassword(wrong) error = %v", err)
	}
	if err := tr.ChangePassword(ctx, "secret", " "); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("ChangePassword(empty) error = %v", err)
	}
	if err := tr.ChangePassword(ctx, "secret", "n3w"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if tr.VerifyPassword("secret") || !tr.VerifyPassword("n3w") {
		t.Error("password not changed")
	}
}

func TestTracker_LegacyPlaintextPassword(t *testing.T) {
	store := storage.NewMemoryStore()
	blob, _ := json.Marshal(core.NewDefaultState("plain"))
	if err := store.Save(context.Background(), blob); err != nil {
		t.Fatal(err)
	}
	tr := newTestTracker(t, store)

	if !tr.VerifyPassword("plain") || tr.VerifyPassword("Plain") {
		t.Error("plaintext password check wrong")
	}
}

func TestTracker_Pull(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		tr := newTestTracker(t, storage.NewMemoryStore())
		if _, err := tr.Pull(ctx); !errors.Is(err, remote.ErrDisabled) {
			t.Errorf("Pull() error = %v", err)
		}
	})

	t.Run("merge", func(t *testing.T) {
		rem := memory.New()
		rem.SetPullBody([]byte(`{
			"wallets": [{"id":"r1","name":"Remote","balance":42,"kind":"asset"}],
			"categories": "broken",
			"favorites": []
		}`))
		store := storage.NewMemoryStore()
		tr := newTestTracker(t, store, WithPuller(rem))

		res, err := tr.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if !res.Applied || len(res.Skipped) != 1 {
			t.Errorf("Pull() = %+v", res)
		}
		s := tr.State()
		if len(s.Wallets) != 1 || s.Wallets[0].ID != "r1" {
			t.Errorf("wallets = %+v", s.Wallets)
		}
		if len(s.Favorites) != 4 {
			t.Errorf("empty remote favorites cleared local ones")
		}
		if _, ok := core.ResolveCategory(s.Categories, core.CategoryTransfer); !ok {
			t.Error("reserved category lost")
		}
		if st := queued(t, store); st.Pending != 0 {
			t.Errorf("pull queued outbound items: %+v", st)
		}
	})

	t.Run("remote error", func(t *testing.T) {
		rem := memory.New()
		rem.SetPullBody([]byte(`{"error":"quota exceeded"}`))
		tr := newTestTracker(t, storage.NewMemoryStore(), WithPuller(rem))
		if _, err := tr.Pull(ctx); !errors.Is(err, state.ErrRemoteError) {
			t.Errorf("Pull() error = %v", err)
		}
		if len(tr.State().Wallets) != 4 {
			t.Error("failed pull changed state")
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		rem := memory.New()
		tr := newTestTracker(t, storage.NewMemoryStore(), WithPuller(rem))
		res, err := tr.Pull(ctx)
		if err != nil || res.Applied {
			t.Errorf("Pull() = %+v, %v", res, err)
		}
	})
}

func TestTracker_Reports(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, storage.NewMemoryStore())

	if _, err := tr.SubmitFavorite(ctx, "f1", "", 0); err != nil {
		t.Fatal(err)
	}
	nw := tr.NetWorth()
	if nw.Assets != 30_000_000 || nw.Debts != 16000 {
		t.Errorf("NetWorth() = %+v", nw)
	}

	sum := tr.MonthlySummary(2025, 6)
	if sum.TotalExpense != 16000 {
		t.Errorf("TotalExpense = %d, want 16000", sum.TotalExpense)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := tr.AddWallet(ctx, core.Wallet{
		Name: "Term deposit", Balance: 12_000_000, Kind: core.KindSavings,
		StartDate: &start, InterestRate: 6, TermMonths: 6,
	}); err != nil {
		t.Fatal(err)
	}
	sv := tr.Savings()
	if len(sv) != 1 || sv[0].Maturity.Interest != 360_000 {
		t.Errorf("Savings() = %+v", sv)
	}
}

func TestTracker_PullAfterDeliveryKeepsLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	rem := memory.New()
	tr := newTestTracker(t, store, WithPuller(rem))
	proc := NewSyncProcessor(store, rem, DefaultSyncProcessorConfig())

	name := "Wallet"
	if err := tr.UpdateWallet(ctx, "w1", state.WalletPatch{Name: &name}); err != nil {
		t.Fatal(err)
	}
	if n := proc.ProcessOnce(ctx); n != 1 {
		t.Fatalf("delivered %d items, want the snapshot", n)
	}

	if _, err := tr.Submit(ctx, ledger.Income("w1", "7", 5000, "refund")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := tr.PayDebt(ctx, "w1", "w-cafe-127", 1000, ""); !errors.Is(err, ledger.ErrOverpayment) {
		t.Fatalf("PayDebt() on an empty tab error = %v", err)
	}
	if n := proc.ProcessOnce(ctx); n != 2 {
		t.Fatalf("delivered %d items, want the event and a snapshot", n)
	}

	res, err := tr.Pull(ctx)
	if err != nil || !res.Applied {
		t.Fatalf("Pull() = %+v, %v", res, err)
	}
	if got := walletBalance(t, tr, "w1"); got != 5_005_000 {
		t.Errorf("w1 after pull = %d, want 5005000", got)
	}
	if n := len(tr.TransactionsForWallet("w1")); n != 1 {
		t.Errorf("w1 has %d transactions after pull, want 1", n)
	}
}
