package google

import (
	"encoding/json"
	"fmt"
	"strings"
)

// itemRows encodes items as [id, json] rows.
func itemRows[T any](items []T, id func(T) string) ([][]any, error) {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{id(it), string(b)})
	}
	return rows, nil
}

// parseItems returns the JSON column of each row. Rows with no JSON cell or
// with text that is not a JSON object are skipped.
func parseItems(values [][]any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(values))
	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[1]))
		if !strings.HasPrefix(cell, "{") || !json.Valid([]byte(cell)) {
			continue
		}
		out = append(out, json.RawMessage(cell))
	}
	return out
}

// findItem returns the index and JSON cell of the row whose id is id.
func findItem(values [][]any, id string) (int, string, bool) {
	for i, row := range values {
		if len(row) < 2 || strings.TrimSpace(fmt.Sprint(row[0])) != id {
			continue
		}
		return i, fmt.Sprint(row[1]), true
	}
	return 0, "", false
}

// parseSettings reads key/value rows.
func parseSettings(values [][]any) map[string]string {
	out := map[string]string{}
	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		k := strings.TrimSpace(fmt.Sprint(row[0]))
		if k == "" {
			continue
		}
		out[k] = fmt.Sprint(row[1])
	}
	return out
}

// buildPayload assembles the pull object in the same shape the web app
// endpoint returns.
func buildPayload(wallets, categories, favorites, transactions, settings [][]any) ([]byte, error) {
	p := map[string]any{
		"wallets":      parseItems(wallets),
		"categories":   parseItems(categories),
		"favorites":    parseItems(favorites),
		"transactions": parseItems(transactions),
	}
	if pw := parseSettings(settings)[settingsPasswordKey]; pw != "" {
		p[settingsPasswordKey] = pw
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pull payload: %w", err)
	}
	return b, nil
}
