package state

import (
	"errors"
	"testing"

	"spendwise/internal/core"
)

func ptr[T any](v T) *T { return &v }

func TestAddWallet(t *testing.T) {
	s := localState()
	got, err := AddWallet(s, core.Wallet{ID: "w-debt-9", Name: "Card"})
	if err != nil {
		t.Fatalf("AddWallet() error = %v", err)
	}
	w, _ := got.Wallet("w-debt-9")
	if w.Kind != core.KindDebt {
		t.Errorf("kind = %q, want inferred debt", w.Kind)
	}
	if len(s.Wallets) != 1 {
		t.Errorf("input state mutated")
	}

	if _, err := AddWallet(got, core.Wallet{ID: "w1", Name: "Dup"}); !errors.Is(err, core.ErrDuplicateID) {
		t.Errorf("duplicate: err = %v", err)
	}
	if _, err := AddWallet(got, core.Wallet{ID: "w2", Name: " "}); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name: err = %v", err)
	}
}

func TestUpdateWallet_RenameKeepsKind(t *testing.T) {
	s := localState()
	s.Wallets = append(s.Wallets, core.Wallet{ID: "w-9", Name: "Nợ anh Ba", Balance: 50})

	got, err := UpdateWallet(s, "w-9", WalletPatch{Name: ptr("Brother"), Balance: ptr(core.Money(30))})
	if err != nil {
		t.Fatalf("UpdateWallet() error = %v", err)
	}
	w, _ := got.Wallet("w-9")
	if w.Name != "Brother" || w.Balance != 30 || !core.IsDebt(w) {
		t.Errorf("wallet = %+v", w)
	}
	if len(got.Transactions) != len(s.Transactions) {
		t.Errorf("balance correction wrote a transaction")
	}

	if _, err := UpdateWallet(s, "nope", WalletPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing wallet: err = %v", err)
	}
}

func TestDeleteWallet_ClearsFavoriteDefaults(t *testing.T) {
	s := localState()
	s.Favorites[0].DefaultWalletID = "w1"
	got, err := DeleteWallet(s, "w1")
	if err != nil {
		t.Fatalf("DeleteWallet() error = %v", err)
	}
	if len(got.Wallets) != 0 {
		t.Errorf("wallet not removed")
	}
	if got.Favorites[0].DefaultWalletID != "" {
		t.Errorf("favorite still points at deleted wallet")
	}
	if s.Favorites[0].DefaultWalletID != "w1" {
		t.Errorf("input state mutated")
	}
}

func TestCategoryEdits(t *testing.T) {
	s := localState()

	if _, err := AddCategory(s, core.Category{ID: core.CategoryTransfer, Name: "X", Type: core.Expense}); !errors.Is(err, core.ErrReservedCategory) {
		t.Errorf("reserved add: err = %v", err)
	}
	if _, err := DeleteCategory(s, core.CategoryDebtRepayment); !errors.Is(err, core.ErrReservedCategory) {
		t.Errorf("reserved delete: err = %v", err)
	}
	if _, err := AddCategory(s, core.Category{ID: "c-1", Name: "Gifts", Type: core.Income, Budget: 100}); !errors.Is(err, core.ErrBudgetNotAllowed) {
		t.Errorf("income budget: err = %v", err)
	}

	got, err := AddCategory(s, core.Category{ID: "c-1", Name: "Pets", Type: core.Expense})
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	got, err = UpdateCategory(got, "c-1", CategoryPatch{Budget: ptr(core.Money(500000))})
	if err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	c, _ := core.ResolveCategory(got.Categories, "c-1")
	if c.Budget != 500000 {
		t.Errorf("budget = %v", c.Budget)
	}
	got, err = DeleteCategory(got, "c-1")
	if err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if _, ok := core.ResolveCategory(got.Categories, "c-1"); ok {
		t.Errorf("category not removed")
	}
}

func TestFavoriteEdits(t *testing.T) {
	s := localState()
	s.Favorites = append(s.Favorites,
		core.FavoriteItem{ID: "f2", Name: "Tea", Price: 10000, ShopName: "CAFE 127"},
		core.FavoriteItem{ID: "f3", Name: "Pho", Price: 45000, ShopName: "Stall"},
		core.FavoriteItem{ID: "f4", Name: "Cake", Price: 20000, ShopName: "CAFE 127"},
	)

	got, n := RenameShop(s, "CAFE 127", "Cafe One")
	if n != 2 {
		t.Errorf("renamed %d favorites, want 2", n)
	}
	if want := []string{"Cafe One", "Stall"}; len(Shops(got.Favorites)) != 2 || Shops(got.Favorites)[0] != want[0] {
		t.Errorf("Shops() = %v, want %v", Shops(got.Favorites), want)
	}
	if _, n := RenameShop(s, "CAFE 127", "  "); n != 0 {
		t.Errorf("blank rename changed %d favorites", n)
	}

	if _, err := UpdateFavorite(s, "f2", FavoritePatch{Price: ptr(core.Money(0))}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero price: err = %v", err)
	}
	got, err := DeleteFavorite(s, "f3")
	if err != nil || len(got.Favorites) != 3 {
		t.Errorf("DeleteFavorite() = %d favorites, err %v", len(got.Favorites), err)
	}
	if _, err := AddFavorite(s, core.FavoriteItem{ID: "f1", Name: "Again", Price: 1}); !errors.Is(err, core.ErrDuplicateID) {
		t.Errorf("duplicate favorite: err = %v", err)
	}
}
