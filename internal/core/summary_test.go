package core

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	s := NewDefaultState("")
	for i := range s.Categories {
		if s.Categories[i].ID == "1" {
			s.Categories[i].Budget = 100000
		}
	}
	at := func(day int) time.Time { return time.Date(2025, 5, day, 9, 0, 0, 0, time.UTC) }
	s.Transactions = []Transaction{
		{ID: "a", Amount: 80000, CategoryID: "1", Type: Expense, Date: at(1)},
		{ID: "b", Amount: 40000, CategoryID: "1", Type: Expense, Date: at(2)},
		{ID: "c", Amount: 30000, CategoryID: "2", Type: Expense, Date: at(3)},
		{ID: "d", Amount: 9000000, CategoryID: "7", Type: Income, Date: at(5)},
		{ID: "e", Amount: 500000, CategoryID: CategoryTransfer, Type: Expense, Date: at(6)},
		{ID: "e-in", Amount: 500000, CategoryID: CategoryTransfer, Type: Income, Date: at(6)},
		{ID: "f", Amount: 200000, CategoryID: CategoryDebtRepayment, Type: Expense, Date: at(7)},
		{ID: "g", Amount: 70000, CategoryID: "1", Type: Expense, Date: time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)},
		{ID: "h", Amount: 5000, CategoryID: "c-gone", CategoryName: "Parking", Type: Expense, Date: at(8)},
	}

	ov := Summarize(s, 2025, 5, time.UTC)
	if ov.TotalExpense != 155000 {
		t.Fatalf("TotalExpense = %d, want 155000", ov.TotalExpense)
	}
	if ov.TotalIncome != 9000000 {
		t.Fatalf("TotalIncome = %d, want 9000000", ov.TotalIncome)
	}
	if len(ov.ByCategory) != 3 {
		t.Fatalf("expected 3 categories, got %+v", ov.ByCategory)
	}
	food := ov.ByCategory[0]
	if food.CategoryID != "1" || food.Amount != 120000 || food.Budget != 100000 {
		t.Fatalf("unexpected food row %+v", food)
	}
	if food.BudgetUsed != 120 || !food.OverBudget() {
		t.Fatalf("expected 120%% over budget, got %v", food.BudgetUsed)
	}
	if ov.ByCategory[2].Name != "Parking" {
		t.Fatalf("dangling category should use denormalized name, got %q", ov.ByCategory[2].Name)
	}
}
