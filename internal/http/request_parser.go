package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/state"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Amount accepts a JSON number or a grouped string such as "1.000.000".
type Amount core.Money

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		m, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(m)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = Amount(n)
	return nil
}

// Date accepts YYYY-MM-DD or RFC 3339.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current month in loc as defaults. Out of range months fall back too.
func ParseMonthParams(query url.Values, loc *time.Location) MonthParams {
	now := time.Now().In(loc)
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}
	return params
}

// ParseLimit reads a non-negative ?limit, defaulting to def.
func ParseLimit(query url.Values, def int) int {
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// sanitizeInput removes control characters except tab and newlines and trims
// whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

type transactionRequest struct {
	Amount     Amount            `json:"amount"`
	CategoryID string            `json:"categoryId"`
	WalletID   string            `json:"walletId"`
	ToWalletID string            `json:"toWalletId"`
	Type       core.CategoryType `json:"type"`
	Note       string            `json:"note"`
	Icon       string            `json:"icon"`
	Date       Date              `json:"date"`
}

func (r transactionRequest) input() ledger.Input {
	return ledger.Input{
		Amount:     core.Money(r.Amount),
		CategoryID: r.CategoryID,
		WalletID:   r.WalletID,
		ToWalletID: r.ToWalletID,
		Type:       core.CategoryType(strings.ToUpper(string(r.Type))),
		Note:       sanitizeInput(r.Note),
		Icon:       r.Icon,
		Date:       r.Date.Time,
	}
}

type debtRequest struct {
	// WalletID is the other side: the paying wallet for a repayment, the
	// receiving wallet for a loan advance, the funding wallet for a draw.
	WalletID   string `json:"walletId"`
	CategoryID string `json:"categoryId"`
	Amount     Amount `json:"amount"`
	Note       string `json:"note"`
}

type walletRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Icon         string          `json:"icon"`
	Color        string          `json:"color"`
	Kind         core.WalletKind `json:"kind"`
	Balance      int64           `json:"balance"`
	StartDate    *Date           `json:"startDate"`
	InterestRate float64         `json:"interestRate"`
	TermMonths   int             `json:"termMonths"`
}

func (r walletRequest) wallet() core.Wallet {
	return core.Wallet{
		ID:           r.ID,
		Name:         sanitizeInput(r.Name),
		Icon:         r.Icon,
		Color:        r.Color,
		Kind:         r.Kind,
		Balance:      core.Money(r.Balance),
		StartDate:    r.StartDate.ptr(),
		InterestRate: r.InterestRate,
		TermMonths:   r.TermMonths,
	}
}

type walletPatchRequest struct {
	Name         *string  `json:"name"`
	Icon         *string  `json:"icon"`
	Color        *string  `json:"color"`
	Balance      *int64   `json:"balance"`
	StartDate    *Date    `json:"startDate"`
	InterestRate *float64 `json:"interestRate"`
	TermMonths   *int     `json:"termMonths"`
}

func (r walletPatchRequest) patch() state.WalletPatch {
	p := state.WalletPatch{
		Name:         sanitizePtr(r.Name),
		Icon:         r.Icon,
		Color:        r.Color,
		StartDate:    r.StartDate.ptr(),
		InterestRate: r.InterestRate,
		TermMonths:   r.TermMonths,
	}
	if r.Balance != nil {
		b := core.Money(*r.Balance)
		p.Balance = &b
	}
	return p
}

type categoryRequest struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Icon   string            `json:"icon"`
	Color  string            `json:"color"`
	Type   core.CategoryType `json:"type"`
	Budget int64             `json:"budget"`
}

func (r categoryRequest) category() core.Category {
	return core.Category{
		ID:     r.ID,
		Name:   sanitizeInput(r.Name),
		Icon:   r.Icon,
		Color:  r.Color,
		Type:   core.CategoryType(strings.ToUpper(string(r.Type))),
		Budget: core.Money(r.Budget),
	}
}

type categoryPatchRequest struct {
	Name   *string `json:"name"`
	Icon   *string `json:"icon"`
	Color  *string `json:"color"`
	Budget *int64  `json:"budget"`
}

func (r categoryPatchRequest) patch() state.CategoryPatch {
	p := state.CategoryPatch{Name: sanitizePtr(r.Name), Icon: r.Icon, Color: r.Color}
	if r.Budget != nil {
		b := core.Money(*r.Budget)
		p.Budget = &b
	}
	return p
}

type favoriteRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           Amount `json:"price"`
	CategoryID      string `json:"categoryId"`
	Icon            string `json:"icon"`
	ShopName        string `json:"shopName"`
	DefaultWalletID string `json:"defaultWalletId"`
}

func (r favoriteRequest) favorite() core.FavoriteItem {
	return core.FavoriteItem{
		ID:              r.ID,
		Name:            sanitizeInput(r.Name),
		Price:           core.Money(r.Price),
		CategoryID:      r.CategoryID,
		Icon:            r.Icon,
		ShopName:        sanitizeInput(r.ShopName),
		DefaultWalletID: r.DefaultWalletID,
	}
}

type favoritePatchRequest struct {
	Name            *string `json:"name"`
	Price           *Amount `json:"price"`
	CategoryID      *string `json:"categoryId"`
	Icon            *string `json:"icon"`
	ShopName        *string `json:"shopName"`
	DefaultWalletID *string `json:"defaultWalletId"`
}

func (r favoritePatchRequest) patch() state.FavoritePatch {
	p := state.FavoritePatch{
		Name:            sanitizePtr(r.Name),
		CategoryID:      r.CategoryID,
		Icon:            r.Icon,
		ShopName:        sanitizePtr(r.ShopName),
		DefaultWalletID: r.DefaultWalletID,
	}
	if r.Price != nil {
		m := core.Money(*r.Price)
		p.Price = &m
	}
	return p
}

type useFavoriteRequest struct {
	WalletID string `json:"walletId"`
	Amount   Amount `json:"amount"`
}

type renameShopRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type passwordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}
