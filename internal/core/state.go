package core

import "time"

// AppState is the aggregate root: the unit of persistence and sync.
type AppState struct {
	Wallets          []Wallet       `json:"wallets"`
	Transactions     []Transaction  `json:"transactions"`
	Categories       []Category     `json:"categories"`
	Favorites        []FavoriteItem `json:"favorites"`
	SyncURL          string         `json:"googleSheetUrl,omitempty"`
	SettingsPassword string         `json:"settingsPassword,omitempty"`
}

// Clone returns a copy whose slices can be modified without touching s.
func (s AppState) Clone() AppState {
	out := s
	out.Wallets = append([]Wallet(nil), s.Wallets...)
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.Categories = append([]Category(nil), s.Categories...)
	out.Favorites = append([]FavoriteItem(nil), s.Favorites...)
	for i, w := range out.Wallets {
		if w.StartDate != nil {
			d := *w.StartDate
			out.Wallets[i].StartDate = &d
		}
	}
	return out
}

// Wallet returns the wallet with the given id.
func (s AppState) Wallet(id string) (Wallet, bool) {
	if i := s.walletIndex(id); i >= 0 {
		return s.Wallets[i], true
	}
	return Wallet{}, false
}

func (s AppState) walletIndex(id string) int {
	for i, w := range s.Wallets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// AdjustBalance adds delta to the wallet's balance in place. It reports false
// when the wallet does not exist. Callers must own s (see Clone).
func (s *AppState) AdjustBalance(id string, delta Money) bool {
	i := s.walletIndex(id)
	if i < 0 {
		return false
	}
	s.Wallets[i].Balance += delta
	return true
}

// TransactionsForWallet returns the records whose WalletID is id, in log order.
func (s AppState) TransactionsForWallet(id string) []Transaction {
	var out []Transaction
	for _, t := range s.Transactions {
		if t.WalletID == id {
			out = append(out, t)
		}
	}
	return out
}

// Normalize pins wallet kinds so classification never changes afterwards.
func (s *AppState) Normalize() {
	for i := range s.Wallets {
		s.Wallets[i] = s.Wallets[i].Normalized()
	}
}

// Event is a per-item remote audit record emitted after a ledger mutation.
type Event struct {
	Action      string       `json:"action"`
	Transaction *Transaction `json:"transaction,omitempty"`
	NewBalance  *Money       `json:"newBalance,omitempty"`
	WalletID    string       `json:"walletId,omitempty"`
	Balance     *Money       `json:"balance,omitempty"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

const (
	ActionAddTransaction      = "add_transaction"
	ActionUpdateWalletBalance = "update_wallet_balance"
	ActionSyncAll             = "sync_all"
)

// TransactionAdded builds the add_transaction event for t.
func TransactionAdded(t Transaction, newBalance Money) Event {
	return Event{Action: ActionAddTransaction, Transaction: &t, NewBalance: &newBalance, OccurredAt: t.Date}
}

// WalletBalanceUpdated builds the update_wallet_balance event.
func WalletBalanceUpdated(walletID string, balance Money, at time.Time) Event {
	return Event{Action: ActionUpdateWalletBalance, WalletID: walletID, Balance: &balance, OccurredAt: at}
}

// Snapshot is the full-state payload pushed to the remote.
type Snapshot struct {
	Action           string         `json:"action"`
	Wallets          []Wallet       `json:"wallets"`
	Categories       []Category     `json:"categories"`
	Favorites        []FavoriteItem `json:"favorites"`
	Transactions     []Transaction  `json:"transactions"`
	SettingsPassword string         `json:"settingsPassword,omitempty"`
}

// Snapshot returns the sync_all payload for s.
func (s AppState) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{
		Action:           ActionSyncAll,
		Wallets:          c.Wallets,
		Categories:       c.Categories,
		Favorites:        c.Favorites,
		Transactions:     c.Transactions,
		SettingsPassword: c.SettingsPassword,
	}
}

// ApplyEvent folds a delivered event into s the way the remote endpoint does:
// add_transaction appends the record once and sets its wallet to newBalance,
// update_wallet_balance sets the wallet balance. It reports whether s changed.
func (s *Snapshot) ApplyEvent(ev Event) bool {
	changed := false
	switch ev.Action {
	case ActionAddTransaction:
		if ev.Transaction == nil {
			return false
		}
		if !s.hasTransaction(ev.Transaction.ID) {
			s.Transactions = append(s.Transactions, *ev.Transaction)
			changed = true
		}
		if ev.NewBalance != nil && s.setBalance(ev.Transaction.WalletID, *ev.NewBalance) {
			changed = true
		}
	case ActionUpdateWalletBalance:
		if ev.Balance != nil && s.setBalance(ev.WalletID, *ev.Balance) {
			changed = true
		}
	}
	return changed
}

func (s *Snapshot) hasTransaction(id string) bool {
	for _, t := range s.Transactions {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *Snapshot) setBalance(walletID string, balance Money) bool {
	for i := range s.Wallets {
		if s.Wallets[i].ID == walletID {
			s.Wallets[i].Balance = balance
			return true
		}
	}
	return false
}
