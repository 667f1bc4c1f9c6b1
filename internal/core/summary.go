package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount is the expense total of one category in a month.
type CategoryAmount struct {
	CategoryID string
	Name       string
	Amount     Money
	Budget     Money
	// BudgetUsed is Amount/Budget in percent, zero when there is no budget.
	BudgetUsed float64
}

// OverBudget reports whether a budgeted category exceeded its cap.
func (c CategoryAmount) OverBudget() bool {
	return c.Budget > 0 && c.Amount > c.Budget
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year         int
	Month        int // 1-12
	TotalExpense Money
	TotalIncome  Money
	ByCategory   []CategoryAmount
}

// NetWorth splits wallets into what is owned and what is owed.
type NetWorth struct {
	Assets Money
	Debts  Money
}

// Net is assets minus debts.
func (n NetWorth) Net() Money { return n.Assets - n.Debts }

// ComputeNetWorth sums asset balances and debt magnitudes.
func ComputeNetWorth(wallets []Wallet) NetWorth {
	var n NetWorth
	for _, w := range wallets {
		if IsDebt(w) {
			n.Debts += w.Balance.Abs()
		} else {
			n.Assets += w.Balance
		}
	}
	return n
}

// Summarize aggregates the transactions dated in year/month (in loc).
// Transfers and debt movements are bookkeeping, not spending, so the reserved
// transfer and debt categories are left out of both totals.
func Summarize(s AppState, year, month int, loc *time.Location) MonthOverview {
	if loc == nil {
		loc = time.UTC
	}
	ov := MonthOverview{Year: year, Month: month}
	byCat := map[string]Money{}
	names := map[string]string{}
	var order []string

	for _, t := range s.Transactions {
		d := t.Date.In(loc)
		if d.Year() != year || int(d.Month()) != month {
			continue
		}
		if isBookkeeping(t.CategoryID) {
			continue
		}
		switch t.Type {
		case Income:
			ov.TotalIncome += t.Amount
		case Expense:
			ov.TotalExpense += t.Amount
			if _, seen := byCat[t.CategoryID]; !seen {
				order = append(order, t.CategoryID)
				names[t.CategoryID], _ = t.Display(s.Categories)
			}
			byCat[t.CategoryID] += t.Amount
		}
	}

	for _, id := range order {
		ca := CategoryAmount{CategoryID: id, Name: names[id], Amount: byCat[id]}
		if c, ok := ResolveCategory(s.Categories, id); ok && c.Budget > 0 {
			ca.Budget = c.Budget
			ca.BudgetUsed = percent(ca.Amount, c.Budget)
		}
		ov.ByCategory = append(ov.ByCategory, ca)
	}
	return ov
}

func isBookkeeping(categoryID string) bool {
	switch categoryID {
	case CategoryTransfer, CategoryDebtRepayment, CategoryLoanAdvance:
		return true
	}
	return false
}

func percent(part, whole Money) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}
