package core

import (
	"strings"
	"time"
)

// WalletKind is fixed when a wallet is created. It decides the sign convention
// the ledger applies to the wallet's balance.
type WalletKind string

const (
	KindAsset   WalletKind = "asset"
	KindDebt    WalletKind = "debt"
	KindSavings WalletKind = "savings"
)

// Wallet is an account with a signed balance.
//
// For debt wallets Balance is the amount currently owed: spending on the
// wallet raises it and repayments lower it.
type Wallet struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Balance Money      `json:"balance"`
	Icon    string     `json:"icon"`
	Color   string     `json:"color"`
	Kind    WalletKind `json:"kind,omitempty"`

	// Savings only.
	StartDate    *time.Time `json:"startDate,omitempty"`
	InterestRate float64    `json:"interestRate,omitempty"` // annual %
	TermMonths   int        `json:"termMonths,omitempty"`
}

func (k WalletKind) Valid() bool {
	switch k {
	case KindAsset, KindDebt, KindSavings:
		return true
	}
	return false
}

// DebtWalletIDPrefix is the ID prefix given to debt wallets created without an
// explicit kind by older clients.
const DebtWalletIDPrefix = "w-debt-"

// InferKind derives a kind for wallets that were stored before kinds existed.
// It is only consulted when Kind is empty; a wallet created with a kind keeps
// it across renames.
func InferKind(id, name string) WalletKind {
	lowerName := strings.ToLower(name)
	if strings.Contains(id, "debt") || strings.Contains(lowerName, "nợ") || strings.Contains(lowerName, "debt") {
		return KindDebt
	}
	return KindAsset
}

// Classify returns KindDebt or KindAsset for sign decisions. Savings wallets
// classify as assets. Every balance-sign decision goes through this function.
func Classify(w Wallet) WalletKind {
	kind := w.Kind
	if kind == "" {
		kind = InferKind(w.ID, w.Name)
	}
	if kind == KindDebt {
		return KindDebt
	}
	return KindAsset
}

// IsDebt reports whether the ledger treats w as a liability.
func IsDebt(w Wallet) bool {
	return Classify(w) == KindDebt
}

// IsSavings reports the explicit savings flag, independent of the debt
// classification.
func IsSavings(w Wallet) bool {
	return w.Kind == KindSavings
}

// Normalized returns w with its kind pinned.
func (w Wallet) Normalized() Wallet {
	if w.Kind == "" {
		w.Kind = InferKind(w.ID, w.Name)
	}
	return w
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if w.Kind != "" && !w.Kind.Valid() {
		return ErrInvalidWalletKind
	}
	if w.TermMonths < 0 || w.InterestRate < 0 {
		return ErrInvalidAmount
	}
	return nil
}
