package ledger

import (
	"errors"
	"testing"

	"spendwise/internal/core"
)

func TestFromInput(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		want    IntentKind
		wantTo  string
		wantCat string
		wantErr error
	}{
		{
			name: "transfer wins over category",
			in:   Input{Amount: 10, Type: core.Transfer, CategoryID: core.CategoryDebtRepayment, WalletID: "A", ToWalletID: "B"},
			want: KindTransfer, wantTo: "B", wantCat: core.CategoryTransfer,
		},
		{
			name: "reserved debt category with second wallet",
			in:   Input{Amount: 10, Type: core.Expense, CategoryID: core.CategoryDebtRepayment, WalletID: "A", ToWalletID: "D"},
			want: KindDebtRepayment, wantTo: "D", wantCat: core.CategoryDebtRepayment,
		},
		{
			name: "reserved debt category alone is a plain expense",
			in:   Input{Amount: 10, Type: core.Expense, CategoryID: core.CategoryDebtRepayment, WalletID: "D"},
			want: KindExpense, wantCat: core.CategoryDebtRepayment,
		},
		{
			name: "expense drops stray second wallet",
			in:   Input{Amount: 10, Type: core.Expense, CategoryID: "1", WalletID: "A", ToWalletID: "B"},
			want: KindExpense, wantCat: "1",
		},
		{
			name: "income",
			in:   Input{Amount: 10, Type: core.Income, CategoryID: "7", WalletID: "A"},
			want: KindIncome, wantCat: "7",
		},
		{
			name:    "transfer without second wallet",
			in:      Input{Amount: 10, Type: core.Transfer, WalletID: "A"},
			wantErr: ErrMissingCounterpart,
		},
		{
			name:    "unknown type",
			in:      Input{Amount: 10, Type: "REFUND", WalletID: "A"},
			wantErr: core.ErrInvalidCategoryType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromInput(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FromInput() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromInput() error = %v", err)
			}
			if got.Kind != tt.want || got.ToWalletID != tt.wantTo || got.CategoryID != tt.wantCat {
				t.Errorf("FromInput() = %+v", got)
			}
			if got.Amount != tt.in.Amount || got.WalletID != tt.in.WalletID {
				t.Errorf("FromInput() lost amount or wallet: %+v", got)
			}
		})
	}
}

func TestIntentKind(t *testing.T) {
	for _, k := range []IntentKind{KindTransfer, KindDebtRepayment, KindLoanAdvance} {
		if !k.TwoWallet() {
			t.Errorf("%s should require a second wallet", k)
		}
	}
	for _, k := range []IntentKind{KindExpense, KindIncome, KindDebtDraw} {
		if k.TwoWallet() {
			t.Errorf("%s should not require a second wallet", k)
		}
	}
	if IntentKind("refund").Valid() {
		t.Errorf("unknown kind reported valid")
	}
}
