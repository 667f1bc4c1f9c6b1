// Package ledger turns transaction intents into ledger records and wallet
// balance changes. Everything here is a pure function of its inputs: the
// engine never persists or talks to the network.
package ledger

import (
	"time"

	"spendwise/internal/core"
)

// IntentKind selects how an intent moves money.
type IntentKind string

const (
	// KindExpense and KindIncome touch a single wallet; the delta sign
	// depends on the wallet classification.
	KindExpense IntentKind = "expense"
	KindIncome  IntentKind = "income"
	// KindTransfer moves money between two wallets with no sign flip.
	KindTransfer IntentKind = "transfer"
	// KindDebtRepayment pays WalletID's money toward the debt in ToWalletID.
	// Both balances decrease.
	KindDebtRepayment IntentKind = "debt_repayment"
	// KindDebtDraw raises the liability of the debt wallet in WalletID. When
	// ToWalletID names a funding wallet, that wallet pays the amount.
	KindDebtDraw IntentKind = "debt_draw"
	// KindLoanAdvance borrows more against the debt wallet in WalletID and
	// credits the wallet in ToWalletID.
	KindLoanAdvance IntentKind = "loan_advance"
)

// Intent is what a caller asks the ledger to record. The caller decides the
// kind explicitly; the category never changes how balances move.
type Intent struct {
	Kind       IntentKind
	Amount     core.Money
	WalletID   string
	ToWalletID string
	CategoryID string
	Note       string
	Icon       string
	// Date defaults to the engine clock when zero.
	Date time.Time
}

func (k IntentKind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindTransfer, KindDebtRepayment, KindDebtDraw, KindLoanAdvance:
		return true
	}
	return false
}

// TwoWallet reports whether the kind requires ToWalletID.
func (k IntentKind) TwoWallet() bool {
	switch k {
	case KindTransfer, KindDebtRepayment, KindLoanAdvance:
		return true
	}
	return false
}

func Expense(walletID, categoryID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindExpense, WalletID: walletID, CategoryID: categoryID, Amount: amount, Note: note}
}

func Income(walletID, categoryID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindIncome, WalletID: walletID, CategoryID: categoryID, Amount: amount, Note: note}
}

func Transfer(fromWalletID, toWalletID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindTransfer, WalletID: fromWalletID, ToWalletID: toWalletID, CategoryID: core.CategoryTransfer, Amount: amount, Note: note}
}

func DebtRepayment(fromWalletID, debtWalletID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindDebtRepayment, WalletID: fromWalletID, ToWalletID: debtWalletID, CategoryID: core.CategoryDebtRepayment, Amount: amount, Note: note}
}

// DebtDraw records a charge on debtWalletID. fundingWalletID may be empty.
func DebtDraw(debtWalletID, fundingWalletID, categoryID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindDebtDraw, WalletID: debtWalletID, ToWalletID: fundingWalletID, CategoryID: categoryID, Amount: amount, Note: note}
}

func LoanAdvance(debtWalletID, intoWalletID string, amount core.Money, note string) Intent {
	return Intent{Kind: KindLoanAdvance, WalletID: debtWalletID, ToWalletID: intoWalletID, CategoryID: core.CategoryLoanAdvance, Amount: amount, Note: note}
}

// Input is the loosely typed form older clients and the remote audit log use:
// a type, a category and an optional second wallet.
type Input struct {
	Amount     core.Money
	CategoryID string
	WalletID   string
	ToWalletID string
	Type       core.CategoryType
	Note       string
	Icon       string
	Date       time.Time
}

// FromInput maps an Input onto an Intent, checking in order:
// transfer (TRANSFER type with a second wallet), debt repayment (reserved debt
// category with a second wallet), then a single-wallet expense or income.
func FromInput(in Input) (Intent, error) {
	it := Intent{
		Amount:     in.Amount,
		WalletID:   in.WalletID,
		ToWalletID: in.ToWalletID,
		CategoryID: in.CategoryID,
		Note:       in.Note,
		Icon:       in.Icon,
		Date:       in.Date,
	}
	switch {
	case in.Type == core.Transfer && in.ToWalletID != "":
		it.Kind = KindTransfer
		it.CategoryID = core.CategoryTransfer
	case in.CategoryID == core.CategoryDebtRepayment && in.ToWalletID != "":
		it.Kind = KindDebtRepayment
	case in.Type == core.Expense:
		it.Kind = KindExpense
		it.ToWalletID = ""
	case in.Type == core.Income:
		it.Kind = KindIncome
		it.ToWalletID = ""
	case in.Type == core.Transfer:
		return Intent{}, &ValidationError{Field: "toWalletId", Err: ErrMissingCounterpart}
	default:
		return Intent{}, &ValidationError{Field: "type", Err: core.ErrInvalidCategoryType}
	}
	return it, nil
}
