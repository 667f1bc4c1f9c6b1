package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/remote"
	"spendwise/internal/state"
	"spendwise/internal/storage"
)

var (
	ErrWrongPassword = errors.New("wrong settings password")
	ErrEmptyPassword = errors.New("empty settings password")
)

// Enqueuer is the part of storage.Outbox the tracker writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind storage.ItemKind, payload []byte) (int64, error)
}

// Tracker owns the current AppState. Every mutation is saved to the store
// before the new state becomes visible; outbound sync is best effort.
type Tracker struct {
	mu      sync.Mutex // serializes mutations
	current atomic.Pointer[versioned]

	store    storage.StateStore
	outbox   Enqueuer
	puller   remote.Puller
	engine   *ledger.Engine
	ids      ledger.IDGenerator
	debounce *Debouncer
	ledgers  *cache.LRU[ledger.DebtLedger]
	pulls    singleflight.Group
	loc      *time.Location
	logger   *log.Logger

	defaultPassword string
}

// versioned pairs a state with its version so readers never see one
// without the other.
type versioned struct {
	state   core.AppState
	version uint64
}

type TrackerOption func(*Tracker)

// WithOutbox sets where ledger events and snapshots are queued for the remote.
func WithOutbox(o Enqueuer) TrackerOption { return func(t *Tracker) { t.outbox = o } }

func WithPuller(p remote.Puller) TrackerOption { return func(t *Tracker) { t.puller = p } }

func WithEngine(e *ledger.Engine) TrackerOption { return func(t *Tracker) { t.engine = e } }

func WithIDs(g ledger.IDGenerator) TrackerOption { return func(t *Tracker) { t.ids = g } }

// WithPushDebounce coalesces configuration edits into one snapshot push
// sent after delay of quiet. Zero pushes every edit immediately.
func WithPushDebounce(delay time.Duration) TrackerOption {
	return func(t *Tracker) {
		if delay > 0 {
			t.debounce = NewDebouncer(delay, t.flushSnapshot)
		}
	}
}

func WithLocation(loc *time.Location) TrackerOption { return func(t *Tracker) { t.loc = loc } }

func WithLogger(l *log.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l.WithComponent(log.ComponentTracker) }
}

// WithDefaultPassword is the settings password given to a freshly seeded state.
func WithDefaultPassword(pw string) TrackerOption {
	return func(t *Tracker) { t.defaultPassword = pw }
}

// NewTracker loads the saved state, seeding and saving the default one when
// the store is empty.
func NewTracker(ctx context.Context, store storage.StateStore, opts ...TrackerOption) (*Tracker, error) {
	t := &Tracker{
		store:           store,
		engine:          ledger.New(),
		ids:             ledger.UUIDGenerator{},
		ledgers:         cache.NewLRU[ledger.DebtLedger](64, 10*time.Minute),
		loc:             time.Local,
		logger:          log.Nop(),
		defaultPassword: "1234",
	}
	for _, o := range opts {
		o(t)
	}

	s, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	t.current.Store(&versioned{state: s})
	return t, nil
}

func (t *Tracker) load(ctx context.Context) (core.AppState, error) {
	blob, err := t.store.Load(ctx)
	if errors.Is(err, storage.ErrNoState) {
		hash, err := hashPassword(t.defaultPassword)
		if err != nil {
			return core.AppState{}, err
		}
		s := core.NewDefaultState(hash)
		s.Normalize()
		if err := t.save(ctx, s); err != nil {
			return core.AppState{}, err
		}
		t.logger.InfoContext(ctx, "Seeded default state", log.FieldOperation, log.OpStartup)
		return s, nil
	}
	if err != nil {
		return core.AppState{}, fmt.Errorf("load state: %w", err)
	}

	var s core.AppState
	if err := json.Unmarshal(blob, &s); err != nil {
		return core.AppState{}, fmt.Errorf("decode saved state: %w", err)
	}
	s.Normalize()
	s.Categories = core.EnsureReservedCategories(s.Categories)
	return s, nil
}

func (t *Tracker) save(ctx context.Context, s core.AppState) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := t.store.Save(ctx, blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// commit persists next and publishes it. Callers hold t.mu.
func (t *Tracker) commit(ctx context.Context, next core.AppState) error {
	if err := t.save(ctx, next); err != nil {
		t.logger.ErrorContext(ctx, "State not saved, mutation discarded",
			log.FieldOperation, log.OpSave, log.FieldError, err)
		return err
	}
	t.publish(next)
	return nil
}

// publish makes s current under the next version. Callers hold t.mu.
func (t *Tracker) publish(s core.AppState) {
	t.current.Store(&versioned{state: s, version: t.current.Load().version + 1})
}

func (t *Tracker) state() core.AppState { return t.current.Load().state }

// Reload replaces the in-memory state with what the store holds, picking up
// writes made by another process sharing the database.
func (t *Tracker) Reload(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.load(ctx)
	if err != nil {
		return err
	}
	t.publish(s)
	return nil
}

// State returns a copy of the current state.
func (t *Tracker) State() core.AppState { return t.state().Clone() }

func (t *Tracker) Snapshot() core.Snapshot { return t.state().Snapshot() }

// Version increases by one on every committed mutation.
func (t *Tracker) Version() uint64 { return t.current.Load().version }

// Submit validates and records in.
func (t *Tracker) Submit(ctx context.Context, in ledger.Intent) (ledger.Result, error) {
	t.mu.Lock()
	cur := t.state()
	if err := ledger.Validate(cur, in); err != nil {
		t.mu.Unlock()
		t.logger.InfoContext(ctx, "Intent declined",
			log.FieldOperation, log.OpValidate, log.FieldIntent, in.Kind, log.FieldError, err)
		return ledger.Result{}, err
	}
	res, err := t.engine.Apply(cur, in)
	if err == nil {
		err = t.commit(ctx, res.State)
	}
	t.mu.Unlock()
	if err != nil {
		return ledger.Result{}, err
	}

	fields := log.NewFields().
		WithOperation(log.OpSubmit).
		WithTransfer(in.WalletID, in.ToWalletID, int64(in.Amount))
	fields[log.FieldIntent] = string(in.Kind)
	fields[log.FieldCount] = len(res.Transactions)
	t.logger.InfoContext(ctx, "Intent recorded", fields.ToSlice()...)

	t.enqueueEvents(ctx, res.Events)
	// A snapshot follows so a lost event cannot leave the remote behind.
	t.touch(ctx)
	return res, nil
}

// SubmitInput classifies a raw form entry and submits it.
func (t *Tracker) SubmitInput(ctx context.Context, in ledger.Input) (ledger.Result, error) {
	it, err := ledger.FromInput(in)
	if err != nil {
		return ledger.Result{}, err
	}
	return t.Submit(ctx, it)
}

// PayDebt moves amount from an asset wallet onto a debt wallet.
func (t *Tracker) PayDebt(ctx context.Context, fromWalletID, debtWalletID string, amount core.Money, note string) (ledger.Result, error) {
	return t.Submit(ctx, ledger.DebtRepayment(fromWalletID, debtWalletID, amount, note))
}

// BorrowMore borrows amount on a debt wallet and credits it to intoWalletID.
func (t *Tracker) BorrowMore(ctx context.Context, debtWalletID, intoWalletID string, amount core.Money, note string) (ledger.Result, error) {
	return t.Submit(ctx, ledger.LoanAdvance(debtWalletID, intoWalletID, amount, note))
}

// Draw records new borrowing on a debt wallet, optionally paid out of a
// funding wallet.
func (t *Tracker) Draw(ctx context.Context, debtWalletID, fundingWalletID, categoryID string, amount core.Money, note string) (ledger.Result, error) {
	return t.Submit(ctx, ledger.DebtDraw(debtWalletID, fundingWalletID, categoryID, amount, note))
}

// SubmitFavorite records the favorite as an expense. walletID overrides the
// favorite's default wallet and is required when that one no longer exists.
func (t *Tracker) SubmitFavorite(ctx context.Context, favoriteID, walletID string, amount core.Money) (ledger.Result, error) {
	cur := t.state()
	var fav core.FavoriteItem
	found := false
	for _, f := range cur.Favorites {
		if f.ID == favoriteID {
			fav, found = f, true
			break
		}
	}
	if !found {
		return ledger.Result{}, fmt.Errorf("favorite %s: %w", favoriteID, state.ErrNotFound)
	}

	if walletID == "" {
		walletID = fav.DefaultWalletID
		if _, ok := cur.Wallet(walletID); !ok {
			walletID = ""
		}
	}
	if walletID == "" {
		return ledger.Result{}, &ledger.ValidationError{Field: "walletId", Err: ledger.ErrMissingWallet}
	}
	if amount == 0 {
		amount = fav.Price
	}

	in := ledger.Expense(walletID, fav.CategoryID, amount, fav.Name)
	in.Icon = fav.Icon
	return t.Submit(ctx, in)
}

// DebtLedger reconstructs the history of a debt wallet. Results are cached
// per state version.
func (t *Tracker) DebtLedger(walletID string) (ledger.DebtLedger, error) {
	vs := t.current.Load()
	cur := vs.state
	w, ok := cur.Wallet(walletID)
	if !ok {
		return ledger.DebtLedger{}, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, walletID)
	}
	if !core.IsDebt(w) {
		return ledger.DebtLedger{}, fmt.Errorf("%s: %w", walletID, ledger.ErrNotDebtWallet)
	}

	key := fmt.Sprintf("%s@%d", walletID, vs.version)
	if l, ok := t.ledgers.Get(key); ok {
		return l, nil
	}
	l := ledger.ComputeDebtLedger(w, cur.Transactions)
	t.ledgers.Set(key, l)
	return l, nil
}

func (t *Tracker) TransactionsForWallet(walletID string) []core.Transaction {
	return t.state().TransactionsForWallet(walletID)
}

func (t *Tracker) MonthlySummary(year, month int) core.MonthOverview {
	return core.Summarize(t.state(), year, month, t.loc)
}

func (t *Tracker) NetWorth() core.NetWorth {
	return core.ComputeNetWorth(t.state().Wallets)
}

// SavingsProjection pairs a savings wallet with its maturity projection.
type SavingsProjection struct {
	Wallet   core.Wallet
	Maturity core.SavingsMaturity
}

func (t *Tracker) Savings() []SavingsProjection {
	var out []SavingsProjection
	for _, w := range t.state().Wallets {
		if core.IsSavings(w) {
			out = append(out, SavingsProjection{Wallet: w, Maturity: core.Maturity(w)})
		}
	}
	return out
}

// edit applies a configuration change and schedules a snapshot push.
func (t *Tracker) edit(ctx context.Context, fn func(core.AppState) (core.AppState, error)) error {
	t.mu.Lock()
	next, err := fn(t.state())
	if err == nil {
		err = t.commit(ctx, next)
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.touch(ctx)
	return nil
}

// AddWallet creates a wallet, assigning an ID when w has none.
func (t *Tracker) AddWallet(ctx context.Context, w core.Wallet) (core.Wallet, error) {
	if w.ID == "" {
		w.ID = t.ids.NewID()
	}
	w = w.Normalized()
	return w, t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.AddWallet(s, w) })
}

func (t *Tracker) UpdateWallet(ctx context.Context, id string, p state.WalletPatch) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.UpdateWallet(s, id, p) })
}

func (t *Tracker) DeleteWallet(ctx context.Context, id string) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.DeleteWallet(s, id) })
}

func (t *Tracker) AddCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = t.ids.NewID()
	}
	return c, t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.AddCategory(s, c) })
}

func (t *Tracker) UpdateCategory(ctx context.Context, id string, p state.CategoryPatch) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.UpdateCategory(s, id, p) })
}

func (t *Tracker) DeleteCategory(ctx context.Context, id string) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.DeleteCategory(s, id) })
}

func (t *Tracker) AddFavorite(ctx context.Context, f core.FavoriteItem) (core.FavoriteItem, error) {
	if f.ID == "" {
		f.ID = t.ids.NewID()
	}
	return f, t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.AddFavorite(s, f) })
}

func (t *Tracker) UpdateFavorite(ctx context.Context, id string, p state.FavoritePatch) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.UpdateFavorite(s, id, p) })
}

func (t *Tracker) DeleteFavorite(ctx context.Context, id string) error {
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) { return state.DeleteFavorite(s, id) })
}

// RenameShop renames a shop on every favorite and reports how many changed.
// Nothing is saved when no favorite matches.
func (t *Tracker) RenameShop(ctx context.Context, from, to string) (int, error) {
	var n int
	err := t.edit(ctx, func(s core.AppState) (core.AppState, error) {
		var next core.AppState
		next, n = state.RenameShop(s, from, to)
		if n == 0 {
			return s, fmt.Errorf("shop %q: %w", from, state.ErrNotFound)
		}
		return next, nil
	})
	return n, err
}

func (t *Tracker) Shops() []string { return state.Shops(t.state().Favorites) }

// VerifyPassword checks pw against the settings password. A stored value
// that is not a bcrypt hash is compared as plain text.
func (t *Tracker) VerifyPassword(pw string) bool {
	stored := t.state().SettingsPassword
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pw)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pw)) == 1
}

func (t *Tracker) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !t.VerifyPassword(oldPassword) {
		return ErrWrongPassword
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return t.edit(ctx, func(s core.AppState) (core.AppState, error) {
		out := s.Clone()
		out.SettingsPassword = hash
		return out, nil
	})
}

func hashPassword(pw string) (string, error) {
	if strings.TrimSpace(pw) == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// PullResult describes what a pull changed.
type PullResult struct {
	Applied bool
	// Skipped lists remote fields that were malformed and left local.
	Skipped []string
}

// Pull fetches the remote copy and merges it into the local state.
// Concurrent calls share one fetch.
func (t *Tracker) Pull(ctx context.Context) (PullResult, error) {
	if t.puller == nil {
		return PullResult{}, remote.ErrDisabled
	}
	v, err, _ := t.pulls.Do("pull", func() (any, error) { return t.pull(ctx) })
	if err != nil {
		return PullResult{}, err
	}
	return v.(PullResult), nil
}

func (t *Tracker) pull(ctx context.Context) (PullResult, error) {
	start := time.Now()
	body, err := t.puller.Pull(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "Pull failed", log.FieldOperation, log.OpPull, log.FieldError, err)
		return PullResult{}, fmt.Errorf("pull: %w", err)
	}
	p, err := state.DecodePayload(body)
	if err != nil {
		t.logger.WarnContext(ctx, "Pull rejected", log.FieldOperation, log.OpPull, log.FieldError, err)
		return PullResult{}, err
	}
	res := PullResult{Skipped: p.Skipped}
	if p.Empty() {
		return res, nil
	}

	t.mu.Lock()
	err = t.commit(ctx, state.Merge(t.state(), p))
	t.mu.Unlock()
	if err != nil {
		return res, err
	}
	res.Applied = true

	t.logger.InfoContext(ctx, "Pulled remote state",
		log.FieldOperation, log.OpPull,
		"skipped", p.Skipped,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

func (t *Tracker) enqueueEvents(ctx context.Context, events []core.Event) {
	if t.outbox == nil {
		return
	}
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err == nil {
			_, err = t.outbox.Enqueue(ctx, storage.KindEvent, b)
		}
		if err != nil {
			t.logger.ErrorContext(ctx, "Failed to queue sync event",
				log.FieldOperation, log.OpEnqueue, log.FieldAction, ev.Action, log.FieldError, err)
		}
	}
}

func (t *Tracker) touch(ctx context.Context) {
	if t.debounce != nil {
		t.debounce.Touch()
		return
	}
	t.enqueueSnapshot(ctx)
}

func (t *Tracker) flushSnapshot() { t.enqueueSnapshot(context.Background()) }

func (t *Tracker) enqueueSnapshot(ctx context.Context) {
	if t.outbox == nil {
		return
	}
	b, err := json.Marshal(t.Snapshot())
	if err == nil {
		_, err = t.outbox.Enqueue(ctx, storage.KindSnapshot, b)
	}
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to queue snapshot",
			log.FieldOperation, log.OpEnqueue, log.FieldAction, core.ActionSyncAll, log.FieldError, err)
	}
}

// Caches returns the tracker's expiring caches for a cache.Janitor.
func (t *Tracker) Caches() []cache.Cleaner { return []cache.Cleaner{t.ledgers} }

// Close sends any pending debounced snapshot to the outbox.
func (t *Tracker) Close() {
	if t.debounce != nil {
		t.debounce.Stop()
	}
}
