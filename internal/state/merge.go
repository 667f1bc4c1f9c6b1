// Package state holds the whole-state transforms that sit next to the ledger:
// merging a pulled remote payload and editing wallets, categories and
// favorites. Like the ledger engine, nothing here persists or does I/O.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"spendwise/internal/core"
)

// ErrRemoteError is returned when the remote answered with an error payload.
var ErrRemoteError = errors.New("remote returned an error")

// Payload is a decoded pull result. A nil slice means the field was absent,
// empty or malformed; Merge then keeps the local value.
type Payload struct {
	Wallets          []core.Wallet
	Categories       []core.Category
	Favorites        []core.FavoriteItem
	Transactions     []core.Transaction
	SettingsPassword string

	// Skipped names the fields that were present but could not be decoded.
	Skipped []string
}

// Empty reports whether the payload carries nothing to merge.
func (p Payload) Empty() bool {
	return len(p.Wallets) == 0 && len(p.Categories) == 0 && len(p.Favorites) == 0 &&
		len(p.Transactions) == 0 && p.SettingsPassword == ""
}

type rawPayload struct {
	Error            string          `json:"error"`
	Wallets          json.RawMessage `json:"wallets"`
	Categories       json.RawMessage `json:"categories"`
	Favorites        json.RawMessage `json:"favorites"`
	Transactions     json.RawMessage `json:"transactions"`
	SettingsPassword json.RawMessage `json:"settingsPassword"`
}

// DecodePayload parses a pull response field by field. A field with the wrong
// shape is skipped without affecting the others. Only a body that is not a
// JSON object at all, or one carrying an "error" message, fails.
func DecodePayload(body []byte) (Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, fmt.Errorf("decode pull payload: %w", err)
	}
	if raw.Error != "" {
		return Payload{}, fmt.Errorf("%w: %s", ErrRemoteError, raw.Error)
	}

	var p Payload
	decodeField(&p, "wallets", raw.Wallets, &p.Wallets)
	decodeField(&p, "categories", raw.Categories, &p.Categories)
	decodeField(&p, "favorites", raw.Favorites, &p.Favorites)
	decodeField(&p, "transactions", raw.Transactions, &p.Transactions)
	decodeField(&p, "settingsPassword", raw.SettingsPassword, &p.SettingsPassword)
	return p, nil
}

func decodeField[T any](p *Payload, name string, raw json.RawMessage, dst *T) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		p.Skipped = append(p.Skipped, name)
		return
	}
	*dst = v
}

// Merge applies p over local with replace-if-non-empty semantics: each
// non-empty array replaces the local one after de-duplication by ID (first
// occurrence wins, entries without an ID are dropped). Empty or missing
// arrays never clear local data.
func Merge(local core.AppState, p Payload) core.AppState {
	out := local.Clone()
	if ws := dedupe(p.Wallets, func(w core.Wallet) string { return w.ID }); len(ws) > 0 {
		out.Wallets = ws
	}
	if cs := dedupe(p.Categories, func(c core.Category) string { return c.ID }); len(cs) > 0 {
		out.Categories = cs
	}
	if fs := dedupe(p.Favorites, func(f core.FavoriteItem) string { return f.ID }); len(fs) > 0 {
		out.Favorites = fs
	}
	if ts := dedupe(p.Transactions, func(t core.Transaction) string { return t.ID }); len(ts) > 0 {
		out.Transactions = ts
	}
	if p.SettingsPassword != "" {
		out.SettingsPassword = p.SettingsPassword
	}
	out.Normalize()
	out.Categories = core.EnsureReservedCategories(out.Categories)
	return out
}

func dedupe[T any](items []T, id func(T) string) []T {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := id(it)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
