package ledger

import (
	"errors"
	"fmt"

	"spendwise/internal/core"
)

var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrMissingWallet      = errors.New("wallet is required")
	ErrMissingCounterpart = errors.New("second wallet is required")
	ErrSameWallet         = errors.New("source and destination wallet are the same")
	ErrNotDebtWallet      = errors.New("wallet is not a debt wallet")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrOverpayment        = errors.New("repayment exceeds the amount owed")
	ErrUnknownIntent      = errors.New("unknown intent kind")
)

// ValidationError is a declined intent. Nothing has been applied when it is
// returned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// checkStructure rejects intents the engine cannot apply at all. It does not
// look at balances.
func checkStructure(s core.AppState, in Intent) error {
	if !in.Kind.Valid() {
		return invalid("kind", ErrUnknownIntent)
	}
	if err := in.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if in.WalletID == "" {
		return invalid("walletId", ErrMissingWallet)
	}
	primary, ok := s.Wallet(in.WalletID)
	if !ok {
		return invalid("walletId", fmt.Errorf("%w: %s", ErrWalletNotFound, in.WalletID))
	}
	if in.Kind.TwoWallet() && in.ToWalletID == "" {
		return invalid("toWalletId", ErrMissingCounterpart)
	}
	if in.ToWalletID != "" && (in.Kind.TwoWallet() || in.Kind == KindDebtDraw) {
		if in.ToWalletID == in.WalletID {
			return invalid("toWalletId", ErrSameWallet)
		}
		if _, ok := s.Wallet(in.ToWalletID); !ok {
			return invalid("toWalletId", fmt.Errorf("%w: %s", ErrWalletNotFound, in.ToWalletID))
		}
	}
	if (in.Kind == KindDebtDraw || in.Kind == KindLoanAdvance) && !core.IsDebt(primary) {
		return invalid("walletId", ErrNotDebtWallet)
	}
	return nil
}

// payingWallet returns the wallet money leaves from, if any.
func payingWallet(in Intent) string {
	switch in.Kind {
	case KindExpense, KindTransfer, KindDebtRepayment:
		return in.WalletID
	case KindDebtDraw:
		return in.ToWalletID
	}
	return ""
}

// Validate is the submission check callers run before Apply. On top of the
// structural checks it declines intents that would overdraw an asset wallet
// or repay more than a debt wallet owes. Debt wallets may always be charged.
func Validate(s core.AppState, in Intent) error {
	if err := checkStructure(s, in); err != nil {
		return err
	}
	if id := payingWallet(in); id != "" {
		w, _ := s.Wallet(id)
		if !core.IsDebt(w) && w.Balance < in.Amount {
			return invalid("amount", fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, w.Name, w.Balance, in.Amount))
		}
	}
	if in.Kind == KindDebtRepayment {
		if d, _ := s.Wallet(in.ToWalletID); core.IsDebt(d) && d.Balance < in.Amount {
			return invalid("amount", fmt.Errorf("%w: %s owes %s, repaying %s", ErrOverpayment, d.Name, d.Balance, in.Amount))
		}
	}
	return nil
}
