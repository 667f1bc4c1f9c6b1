package ledger

import (
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
)

// IDGenerator allocates transaction IDs.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// CounterpartSuffix marks the second leg of a two-record operation.
const CounterpartSuffix = "-in"

// CounterpartID derives the ID of the second leg from the first.
func CounterpartID(id string) string { return id + CounterpartSuffix }

// LoanAdvanceMode decides how the debt side of a loan advance is recorded.
type LoanAdvanceMode string

const (
	// LoanAdvanceLogged writes a record on the debt wallet so its sub-ledger
	// reconciles with the live balance.
	LoanAdvanceLogged LoanAdvanceMode = "logged"
	// LoanAdvanceSilent adjusts the debt balance without a record, as older
	// clients did. The sub-ledger then under-reports what was borrowed.
	LoanAdvanceSilent LoanAdvanceMode = "silent"
)

func (m LoanAdvanceMode) Valid() bool {
	return m == LoanAdvanceLogged || m == LoanAdvanceSilent
}

// Engine applies intents to application state.
type Engine struct {
	ids         IDGenerator
	now         func() time.Time
	loanAdvance LoanAdvanceMode
}

type Option func(*Engine)

func WithIDGenerator(g IDGenerator) Option { return func(e *Engine) { e.ids = g } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLoanAdvanceMode(m LoanAdvanceMode) Option {
	return func(e *Engine) {
		if m.Valid() {
			e.loanAdvance = m
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{ids: UUIDGenerator{}, now: time.Now, loanAdvance: LoanAdvanceLogged}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Result is the outcome of Apply.
type Result struct {
	State core.AppState
	// Transactions are the records appended to State, in append order.
	Transactions []core.Transaction
	// Events are the remote audit events for this mutation.
	Events []core.Event
}

// Apply records in against s and returns the new state. s is not modified.
//
// Apply does not check for sufficient funds; callers run Validate first. If
// an overdrawing intent is applied anyway the arithmetic is carried out as-is.
// On error no part of the intent is applied.
func (e *Engine) Apply(s core.AppState, in Intent) (Result, error) {
	if err := checkStructure(s, in); err != nil {
		return Result{}, err
	}
	if in.Date.IsZero() {
		in.Date = e.now()
	}

	a := &applier{state: s.Clone(), in: in, id: e.ids.NewID()}
	switch in.Kind {
	case KindExpense, KindIncome:
		a.single()
	case KindTransfer:
		a.transfer()
	case KindDebtRepayment:
		a.debtRepayment()
	case KindDebtDraw:
		a.debtDraw()
	case KindLoanAdvance:
		a.loanAdvance(e.loanAdvance)
	}
	return Result{State: a.state, Transactions: a.records, Events: a.events}, nil
}

// SignedDelta is the balance change an amount of the given type causes on w.
//
//	           EXPENSE    INCOME
//	asset      -amount    +amount
//	debt       +amount    -amount
func SignedDelta(w core.Wallet, typ core.CategoryType, amount core.Money) core.Money {
	delta := amount
	if typ == core.Expense {
		delta = -amount
	}
	if core.IsDebt(w) {
		delta = -delta
	}
	return delta
}

type applier struct {
	state   core.AppState
	in      Intent
	id      string
	records []core.Transaction
	events  []core.Event
}

func (a *applier) wallet(id string) core.Wallet {
	w, _ := a.state.Wallet(id)
	return w
}

func (a *applier) category(fallback string) core.Category {
	id := a.in.CategoryID
	if id == "" {
		id = fallback
	}
	c, ok := core.ResolveCategory(a.state.Categories, id)
	if !ok {
		c = core.Category{ID: id}
	}
	return c
}

func (a *applier) record(id, walletID, toWalletID string, typ core.CategoryType, c core.Category, icon, note string) core.Transaction {
	if a.in.Icon != "" {
		icon = a.in.Icon
	}
	if icon == "" {
		icon = c.Icon
	}
	if a.in.Note != "" {
		note = a.in.Note
	}
	t := core.Transaction{
		ID:           id,
		Amount:       a.in.Amount,
		CategoryID:   c.ID,
		WalletID:     walletID,
		ToWalletID:   toWalletID,
		Date:         a.in.Date,
		Note:         note,
		Type:         typ,
		Icon:         icon,
		CategoryName: c.Name,
		WalletName:   a.wallet(walletID).Name,
	}
	if toWalletID != "" {
		t.ToWalletName = a.wallet(toWalletID).Name
	}
	return t
}

func (a *applier) adjust(walletID string, delta core.Money) core.Money {
	a.state.AdjustBalance(walletID, delta)
	return a.wallet(walletID).Balance
}

// commit appends t and its add_transaction event, reporting the balance of
// t's wallet after the mutation.
func (a *applier) commit(t core.Transaction) {
	a.state.Transactions = append(a.state.Transactions, t)
	a.records = append(a.records, t)
	a.events = append(a.events, core.TransactionAdded(t, a.wallet(t.WalletID).Balance))
}

func (a *applier) balanceEvent(walletID string) {
	a.events = append(a.events, core.WalletBalanceUpdated(walletID, a.wallet(walletID).Balance, a.in.Date))
}

func (a *applier) single() {
	typ := core.Expense
	if a.in.Kind == KindIncome {
		typ = core.Income
	}
	w := a.wallet(a.in.WalletID)
	t := a.record(a.id, w.ID, "", typ, a.category(""), "", "")
	a.adjust(w.ID, SignedDelta(w, typ, a.in.Amount))
	a.commit(t)
}

func (a *applier) transfer() {
	c := a.category(core.CategoryTransfer)
	from, to := a.in.WalletID, a.in.ToWalletID
	out := a.record(a.id, from, to, core.Expense, c, "📤", "Transfer")
	in := a.record(CounterpartID(a.id), to, from, core.Income, c, "📥", "Transfer received")

	a.adjust(from, -a.in.Amount)
	a.adjust(to, a.in.Amount)
	a.commit(out)
	a.commit(in)
}

func (a *applier) debtRepayment() {
	from, debt := a.in.WalletID, a.in.ToWalletID
	t := a.record(a.id, from, debt, core.Expense, a.category(core.CategoryDebtRepayment), "💸", "Repay "+a.wallet(debt).Name)

	a.adjust(from, -a.in.Amount)
	a.adjust(debt, -a.in.Amount)
	a.commit(t)
	a.balanceEvent(debt)
}

func (a *applier) debtDraw() {
	debt, funding := a.in.WalletID, a.in.ToWalletID
	t := a.record(a.id, debt, funding, core.Expense, a.category(core.CategoryDebtRepayment), "📤", "Charge to "+a.wallet(debt).Name)

	a.adjust(debt, a.in.Amount)
	if funding != "" {
		a.adjust(funding, -a.in.Amount)
	}
	a.commit(t)
	if funding != "" {
		a.balanceEvent(funding)
	}
}

func (a *applier) loanAdvance(mode LoanAdvanceMode) {
	debt, into := a.in.WalletID, a.in.ToWalletID
	c := a.category(core.CategoryLoanAdvance)
	note := "Borrow more from " + a.wallet(debt).Name

	// The credited leg never names the debt wallet in ToWalletID, otherwise
	// the debt sub-ledger would read it as a repayment.
	credit := a.record(CounterpartID(a.id), into, "", core.Income, c, "🏦", note)
	credit.ToWalletName = a.wallet(debt).Name

	a.adjust(into, a.in.Amount)
	a.adjust(debt, a.in.Amount)

	if mode == LoanAdvanceSilent {
		credit.ID = a.id
		a.commit(credit)
		a.balanceEvent(debt)
		return
	}
	draw := a.record(a.id, debt, into, core.Expense, c, "🏦", note)
	a.commit(draw)
	a.commit(credit)
}
