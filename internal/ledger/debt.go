package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// EntryKind tells which way a debt ledger entry moved the liability.
type EntryKind string

const (
	EntryDraw      EntryKind = "draw"
	EntryRepayment EntryKind = "repayment"
)

// DebtEntry is a transaction as seen from one debt wallet.
type DebtEntry struct {
	core.Transaction
	Kind EntryKind
}

// DebtLedger is the derived history of a debt wallet. It holds no state of
// its own and is recomputed from the transaction log on every read.
type DebtLedger struct {
	WalletID string
	// Entries are newest first.
	Entries       []DebtEntry
	TotalBorrowed core.Money
	TotalRepaid   core.Money
	// RemainingBalance is the wallet's live balance, never a sum of entries.
	RemainingBalance core.Money
}

// ComputeDebtLedger collects every record that names w on either side.
// A record whose ToWalletID is w is a repayment; any other is a draw, and
// only EXPENSE draws count toward TotalBorrowed.
func ComputeDebtLedger(w core.Wallet, txs []core.Transaction) DebtLedger {
	l := DebtLedger{WalletID: w.ID, RemainingBalance: w.Balance}
	for _, t := range txs {
		switch {
		case t.ToWalletID == w.ID:
			l.Entries = append(l.Entries, DebtEntry{Transaction: t, Kind: EntryRepayment})
			l.TotalRepaid += t.Amount
		case t.WalletID == w.ID:
			l.Entries = append(l.Entries, DebtEntry{Transaction: t, Kind: EntryDraw})
			if t.Type == core.Expense {
				l.TotalBorrowed += t.Amount
			}
		}
	}
	sort.SliceStable(l.Entries, func(i, j int) bool {
		return l.Entries[i].Date.After(l.Entries[j].Date)
	})
	return l
}

// Progress is the repaid share of the debt in percent, rounded to two
// decimals. It is zero when nothing was ever owed.
func (l DebtLedger) Progress() float64 {
	denom := l.RemainingBalance + l.TotalRepaid
	if denom == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(l.TotalRepaid)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(denom))).
		Round(2).
		InexactFloat64()
}

// Unreconciled is how far the live balance drifts from what the entries
// explain. It is non-zero when the balance was adjusted without a record on
// this wallet, e.g. a silent loan advance or a manual balance edit.
func (l DebtLedger) Unreconciled() core.Money {
	return l.RemainingBalance - (l.TotalBorrowed - l.TotalRepaid)
}
