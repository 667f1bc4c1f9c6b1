package core

// DefaultCategories is the category set a fresh install starts with.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Food & drinks", Icon: "🍔", Type: Expense, Color: "#ef4444"},
		{ID: "2", Name: "Transport", Icon: "🚗", Type: Expense, Color: "#f59e0b"},
		{ID: "3", Name: "Shopping", Icon: "🛍️", Type: Expense, Color: "#3b82f6"},
		{ID: "4", Name: "Entertainment", Icon: "🎮", Type: Expense, Color: "#8b5cf6"},
		{ID: "5", Name: "Health", Icon: "💊", Type: Expense, Color: "#10b981"},
		{ID: "6", Name: "Bills", Icon: "⚡", Type: Expense, Color: "#6366f1"},
		{ID: CategoryDebtRepayment, Name: "Debt repayment", Icon: "💸", Type: Expense, Color: "#f43f5e"},
		{ID: "7", Name: "Salary", Icon: "💰", Type: Income, Color: "#10b981"},
		{ID: "8", Name: "Bonus", Icon: "🎁", Type: Income, Color: "#fbbf24"},
		{ID: CategoryDebtCollected, Name: "Debt collected", Icon: "📥", Type: Income, Color: "#06b6d4"},
		{ID: CategoryTransfer, Name: "Transfer", Icon: "🔄", Type: Transfer, Color: "#6366f1"},
		{ID: CategoryLoanAdvance, Name: "Loan advance", Icon: "🏦", Type: Income, Color: "#e11d48"},
		{ID: "9", Name: "Other", Icon: "✨", Type: Income, Color: "#94a3b8"},
	}
}

// DefaultWallets is the wallet set a fresh install starts with.
func DefaultWallets() []Wallet {
	return []Wallet{
		{ID: "w1", Name: "Cash", Balance: 5000000, Icon: "💵", Color: "#10b981", Kind: KindAsset},
		{ID: "w-vcb", Name: "Vietcombank", Balance: 15000000, Icon: "💳", Color: "#059669", Kind: KindAsset},
		{ID: "w-tcb", Name: "Techcombank", Balance: 10000000, Icon: "💳", Color: "#dc2626", Kind: KindAsset},
		{ID: "w-cafe-127", Name: "CAFE 127 tab", Balance: 0, Icon: "☕", Color: "#78350f", Kind: KindDebt},
	}
}

// DefaultFavorites is the quick-entry set a fresh install starts with.
func DefaultFavorites() []FavoriteItem {
	return []FavoriteItem{
		{ID: "f1", Name: "Iced coffee", Price: 16000, CategoryID: "1", Icon: "☕", ShopName: "CAFE 127", DefaultWalletID: "w-cafe-127"},
		{ID: "f2", Name: "Cigarettes", Price: 18000, CategoryID: "1", Icon: "🚬", ShopName: "CAFE 127", DefaultWalletID: "w-cafe-127"},
		{ID: "f3", Name: "Bac xiu", Price: 22000, CategoryID: "1", Icon: "🥛", ShopName: "CAFE 127", DefaultWalletID: "w-cafe-127"},
		{ID: "f4", Name: "Beef pho", Price: 45000, CategoryID: "1", Icon: "🍜", ShopName: "Breakfast stall", DefaultWalletID: "w1"},
	}
}

// NewDefaultState returns the seed state. The password is stored as given;
// callers hash it before persisting.
func NewDefaultState(password string) AppState {
	return AppState{
		Wallets:          DefaultWallets(),
		Transactions:     []Transaction{},
		Categories:       DefaultCategories(),
		Favorites:        DefaultFavorites(),
		SettingsPassword: password,
	}
}

// EnsureReservedCategories re-adds any reserved category missing from cats,
// e.g. after a pull from a remote that never stored them.
func EnsureReservedCategories(cats []Category) []Category {
	out := append([]Category(nil), cats...)
	for _, def := range DefaultCategories() {
		if !IsReservedCategory(def.ID) {
			continue
		}
		if _, ok := ResolveCategory(out, def.ID); !ok {
			out = append(out, def)
		}
	}
	return out
}
