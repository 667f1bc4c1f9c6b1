package core

import (
	"errors"
	"strings"
	"time"
)

// CategoryType is the direction of money for a category or a transaction record.
type CategoryType string

const (
	Expense  CategoryType = "EXPENSE"
	Income   CategoryType = "INCOME"
	Transfer CategoryType = "TRANSFER"
)

// Reserved category IDs. The ledger recognises these; users can neither create
// nor delete them.
const (
	CategoryDebtRepayment = "10"
	CategoryDebtCollected = "11"
	CategoryTransfer      = "12"
	CategoryLoanAdvance   = "13"
)

type (
	Category struct {
		ID     string       `json:"id"`
		Name   string       `json:"name"`
		Icon   string       `json:"icon"`
		Type   CategoryType `json:"type"`
		Color  string       `json:"color"`
		Budget Money        `json:"budget,omitempty"` // monthly cap, expense categories only
	}

	// Transaction is an immutable ledger record. CategoryName, WalletName and
	// ToWalletName are captured at creation so history stays readable after
	// renames or deletions.
	Transaction struct {
		ID           string       `json:"id"`
		Amount       Money        `json:"amount"`
		CategoryID   string       `json:"categoryId"`
		WalletID     string       `json:"walletId"`
		ToWalletID   string       `json:"toWalletId,omitempty"`
		Date         time.Time    `json:"date"`
		Note         string       `json:"note"`
		Type         CategoryType `json:"type"`
		Icon         string       `json:"icon,omitempty"`
		CategoryName string       `json:"categoryName,omitempty"`
		WalletName   string       `json:"walletName,omitempty"`
		ToWalletName string       `json:"toWalletName,omitempty"`
	}

	// FavoriteItem is a quick-entry template. Its category and default wallet
	// references may dangle.
	FavoriteItem struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Price           Money  `json:"price"`
		CategoryID      string `json:"categoryId"`
		Icon            string `json:"icon"`
		ShopName        string `json:"shopName"`
		DefaultWalletID string `json:"defaultWalletId"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrReservedCategory    = errors.New("reserved category")
	ErrBudgetNotAllowed    = errors.New("budget is only allowed on expense categories")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrInvalidWalletKind   = errors.New("invalid wallet kind")
)

// IsReservedCategory reports whether id is one of the system category IDs.
func IsReservedCategory(id string) bool {
	switch id {
	case CategoryDebtRepayment, CategoryDebtCollected, CategoryTransfer, CategoryLoanAdvance:
		return true
	}
	return false
}

func (t CategoryType) Valid() bool {
	switch t {
	case Expense, Income, Transfer:
		return true
	}
	return false
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidCategoryType
	}
	if c.Budget < 0 {
		return ErrInvalidAmount
	}
	if c.Budget > 0 && c.Type != Expense {
		return ErrBudgetNotAllowed
	}
	return nil
}

func (f FavoriteItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	return f.Price.Validate()
}

// ResolveCategory finds the category with the given id.
func ResolveCategory(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultIcon is shown when neither the category nor the record carries an icon.
const DefaultIcon = "✨"

// Display returns the label and icon to show for t. The live category wins;
// when it no longer exists the denormalized fields captured at creation are used.
func (t Transaction) Display(categories []Category) (name, icon string) {
	if c, ok := ResolveCategory(categories, t.CategoryID); ok {
		name, icon = c.Name, c.Icon
	} else {
		name = t.CategoryName
	}
	if t.Icon != "" {
		icon = t.Icon
	}
	if name == "" {
		name = "Uncategorized"
	}
	if icon == "" {
		icon = DefaultIcon
	}
	return name, icon
}
