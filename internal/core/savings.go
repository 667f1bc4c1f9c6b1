package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsMaturity is the projected outcome of a term deposit.
type SavingsMaturity struct {
	Principal Money
	Interest  Money
	Total     Money
	// MaturesAt is nil when the wallet has no start date or term.
	MaturesAt *time.Time
}

// Maturity projects simple interest for a savings wallet:
// balance × rate/100 × termMonths/12, rounded to whole units.
func Maturity(w Wallet) SavingsMaturity {
	m := SavingsMaturity{Principal: w.Balance, Total: w.Balance}
	if w.InterestRate > 0 && w.TermMonths > 0 {
		interest := decimal.NewFromInt(int64(w.Balance)).
			Mul(decimal.NewFromFloat(w.InterestRate)).
			Div(decimal.NewFromInt(100)).
			Mul(decimal.NewFromInt(int64(w.TermMonths))).
			Div(decimal.NewFromInt(12)).
			Round(0)
		m.Interest = Money(interest.IntPart())
		m.Total = w.Balance + m.Interest
	}
	if w.StartDate != nil && w.TermMonths > 0 {
		at := w.StartDate.AddDate(0, w.TermMonths, 0)
		m.MaturesAt = &at
	}
	return m
}
