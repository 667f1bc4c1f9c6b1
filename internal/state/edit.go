package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"spendwise/internal/core"
)

var ErrNotFound = errors.New("not found")

// WalletPatch lists the wallet fields a user may edit. Nil fields are left
// alone. The kind is fixed at creation and cannot be patched.
type WalletPatch struct {
	Name         *string
	Icon         *string
	Color        *string
	Balance      *core.Money
	StartDate    *time.Time
	InterestRate *float64
	TermMonths   *int
}

type CategoryPatch struct {
	Name   *string
	Icon   *string
	Color  *string
	Budget *core.Money
}

type FavoritePatch struct {
	Name            *string
	Price           *core.Money
	CategoryID      *string
	Icon            *string
	ShopName        *string
	DefaultWalletID *string
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, it := range items {
		if key(it) == id {
			return i
		}
	}
	return -1
}

func walletID(w core.Wallet) string         { return w.ID }
func categoryID(c core.Category) string     { return c.ID }
func favoriteID(f core.FavoriteItem) string { return f.ID }

// AddWallet appends w with its kind pinned.
func AddWallet(s core.AppState, w core.Wallet) (core.AppState, error) {
	if err := w.Validate(); err != nil {
		return s, fmt.Errorf("wallet %q: %w", w.Name, err)
	}
	if indexOf(s.Wallets, w.ID, walletID) >= 0 {
		return s, fmt.Errorf("wallet %s: %w", w.ID, core.ErrDuplicateID)
	}
	out := s.Clone()
	out.Wallets = append(out.Wallets, w.Normalized())
	return out, nil
}

// UpdateWallet edits a wallet in place. Setting Balance is a manual
// correction: it writes no transaction.
func UpdateWallet(s core.AppState, id string, p WalletPatch) (core.AppState, error) {
	i := indexOf(s.Wallets, id, walletID)
	if i < 0 {
		return s, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	w := out.Wallets[i].Normalized()
	set(&w.Name, p.Name)
	set(&w.Icon, p.Icon)
	set(&w.Color, p.Color)
	set(&w.Balance, p.Balance)
	set(&w.InterestRate, p.InterestRate)
	set(&w.TermMonths, p.TermMonths)
	if p.StartDate != nil {
		d := *p.StartDate
		w.StartDate = &d
	}
	if err := w.Validate(); err != nil {
		return s, fmt.Errorf("wallet %s: %w", id, err)
	}
	out.Wallets[i] = w
	return out, nil
}

// DeleteWallet removes the wallet and clears favorites that defaulted to it.
// Transactions keep their denormalized wallet names.
func DeleteWallet(s core.AppState, id string) (core.AppState, error) {
	i := indexOf(s.Wallets, id, walletID)
	if i < 0 {
		return s, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	out.Wallets = append(out.Wallets[:i], out.Wallets[i+1:]...)
	for j := range out.Favorites {
		if out.Favorites[j].DefaultWalletID == id {
			out.Favorites[j].DefaultWalletID = ""
		}
	}
	return out, nil
}

// AddCategory appends a user category. Reserved IDs are refused.
func AddCategory(s core.AppState, c core.Category) (core.AppState, error) {
	if core.IsReservedCategory(c.ID) {
		return s, fmt.Errorf("category %s: %w", c.ID, core.ErrReservedCategory)
	}
	if err := c.Validate(); err != nil {
		return s, fmt.Errorf("category %q: %w", c.Name, err)
	}
	if indexOf(s.Categories, c.ID, categoryID) >= 0 {
		return s, fmt.Errorf("category %s: %w", c.ID, core.ErrDuplicateID)
	}
	out := s.Clone()
	out.Categories = append(out.Categories, c)
	return out, nil
}

// UpdateCategory edits display fields and budget. Reserved categories may be
// renamed and re-iconed but never change type.
func UpdateCategory(s core.AppState, id string, p CategoryPatch) (core.AppState, error) {
	i := indexOf(s.Categories, id, categoryID)
	if i < 0 {
		return s, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	c := out.Categories[i]
	set(&c.Name, p.Name)
	set(&c.Icon, p.Icon)
	set(&c.Color, p.Color)
	set(&c.Budget, p.Budget)
	if err := c.Validate(); err != nil {
		return s, fmt.Errorf("category %s: %w", id, err)
	}
	out.Categories[i] = c
	return out, nil
}

// DeleteCategory removes a user category. Records referencing it fall back to
// their denormalized name on display.
func DeleteCategory(s core.AppState, id string) (core.AppState, error) {
	if core.IsReservedCategory(id) {
		return s, fmt.Errorf("category %s: %w", id, core.ErrReservedCategory)
	}
	i := indexOf(s.Categories, id, categoryID)
	if i < 0 {
		return s, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	out.Categories = append(out.Categories[:i], out.Categories[i+1:]...)
	return out, nil
}

func AddFavorite(s core.AppState, f core.FavoriteItem) (core.AppState, error) {
	if err := f.Validate(); err != nil {
		return s, fmt.Errorf("favorite %q: %w", f.Name, err)
	}
	if indexOf(s.Favorites, f.ID, favoriteID) >= 0 {
		return s, fmt.Errorf("favorite %s: %w", f.ID, core.ErrDuplicateID)
	}
	out := s.Clone()
	out.Favorites = append(out.Favorites, f)
	return out, nil
}

func UpdateFavorite(s core.AppState, id string, p FavoritePatch) (core.AppState, error) {
	i := indexOf(s.Favorites, id, favoriteID)
	if i < 0 {
		return s, fmt.Errorf("favorite %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	f := out.Favorites[i]
	set(&f.Name, p.Name)
	set(&f.Price, p.Price)
	set(&f.CategoryID, p.CategoryID)
	set(&f.Icon, p.Icon)
	set(&f.ShopName, p.ShopName)
	set(&f.DefaultWalletID, p.DefaultWalletID)
	if err := f.Validate(); err != nil {
		return s, fmt.Errorf("favorite %s: %w", id, err)
	}
	out.Favorites[i] = f
	return out, nil
}

func DeleteFavorite(s core.AppState, id string) (core.AppState, error) {
	i := indexOf(s.Favorites, id, favoriteID)
	if i < 0 {
		return s, fmt.Errorf("favorite %s: %w", id, ErrNotFound)
	}
	out := s.Clone()
	out.Favorites = append(out.Favorites[:i], out.Favorites[i+1:]...)
	return out, nil
}

// RenameShop moves every favorite from shop from to shop to. It returns the
// number of favorites changed.
func RenameShop(s core.AppState, from, to string) (core.AppState, int) {
	to = strings.TrimSpace(to)
	if from == "" || to == "" || from == to {
		return s, 0
	}
	out := s.Clone()
	var n int
	for i := range out.Favorites {
		if out.Favorites[i].ShopName == from {
			out.Favorites[i].ShopName = to
			n++
		}
	}
	return out, n
}

// Shops lists distinct shop names in favorite order.
func Shops(favs []core.FavoriteItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range favs {
		if f.ShopName == "" || seen[f.ShopName] {
			continue
		}
		seen[f.ShopName] = true
		out = append(out, f.ShopName)
	}
	return out
}
