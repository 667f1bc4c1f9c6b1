package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
	"spendwise/internal/state"
)

// fakeSheets serves the values endpoints the client uses over an in-memory
// grid. Rows are kept from row 1.
type fakeSheets struct {
	mu   sync.Mutex
	tabs map[string][][]any
}

// cellRef splits "Tab!B3:C" into the tab and the zero-based start cell.
func cellRef(rng string) (tab string, row, col int) {
	tab, ref, _ := strings.Cut(rng, "!")
	ref, _, _ = strings.Cut(ref, ":")
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if col > 0 {
		col--
	}
	if n, err := strconv.Atoi(ref[i:]); err == nil && n > 0 {
		row = n - 1
	}
	return tab, row, col
}

func (f *fakeSheets) write(rng string, values [][]any) {
	tab, row, col := cellRef(rng)
	rows := f.tabs[tab]
	for len(rows) < row+len(values) {
		rows = append(rows, nil)
	}
	for i, v := range values {
		r := rows[row+i]
		for len(r) < col+len(v) {
			r = append(r, "")
		}
		copy(r[col:], v)
		rows[row+i] = r
	}
	f.tabs[tab] = rows
}

func (f *fakeSheets) read(rng string) [][]any {
	tab, row, col := cellRef(rng)
	rows := f.tabs[tab]
	if row >= len(rows) {
		return nil
	}
	var out [][]any
	for _, r := range rows[row:] {
		if col < len(r) {
			out = append(out, append([]any(nil), r[col:]...))
		} else {
			out = append(out, []any{})
		}
	}
	return out
}

func (f *fakeSheets) rows(tab string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[tab]
}

func (f *fakeSheets) clear(rng string) {
	tab, row, _ := cellRef(rng)
	if rows := f.tabs[tab]; len(rows) > row {
		f.tabs[tab] = rows[:row]
	}
}

func (f *fakeSheets) append(rng string, values [][]any) {
	tab, row, _ := cellRef(rng)
	start := len(f.tabs[tab])
	if start < row {
		start = row
	}
	f.write(tab+"!A"+strconv.Itoa(start+1), values)
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/")
	var resp any = map[string]string{"spreadsheetId": "sheet-1"}
	switch {
	case path == "values:batchClear":
		var req gsheet.BatchClearValuesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rng := range req.Ranges {
			f.clear(rng)
		}
	case path == "values:batchUpdate":
		var req gsheet.BatchUpdateValuesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, vr := range req.Data {
			f.write(vr.Range, vr.Values)
		}
	case path == "values:batchGet":
		out := &gsheet.BatchGetValuesResponse{SpreadsheetId: "sheet-1"}
		for _, rng := range r.URL.Query()["ranges"] {
			out.ValueRanges = append(out.ValueRanges, &gsheet.ValueRange{Range: rng, Values: f.read(rng)})
		}
		resp = out
	case strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.append(strings.TrimSuffix(strings.TrimPrefix(path, "values/"), ":append"), vr.Values)
	case strings.HasPrefix(path, "values/") && r.Method == http.MethodGet:
		rng := strings.TrimPrefix(path, "values/")
		resp = &gsheet.ValueRange{Range: rng, Values: f.read(rng)}
	case strings.HasPrefix(path, "values/") && r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.write(strings.TrimPrefix(path, "values/"), vr.Values)
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &Client{svc: svc, spreadsheetID: "sheet-1"}, fake
}

func pullPayload(t *testing.T, c *Client) state.Payload {
	t.Helper()
	body, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	p, err := state.DecodePayload(body)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	return p
}

func balanceOf(p state.Payload, id string) (core.Money, bool) {
	for _, w := range p.Wallets {
		if w.ID == id {
			return w.Balance, true
		}
	}
	return 0, false
}

func TestClient_PushThenPull(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	s := core.NewDefaultState("hash")
	s.Transactions = []core.Transaction{
		{ID: "t1", Amount: 45000, Type: core.Expense, WalletID: "w1", CategoryID: "1"},
		{ID: "t2", Amount: 10000, Type: core.Expense, WalletID: "w1", CategoryID: "1"},
	}
	if err := c.Push(ctx, s.Snapshot()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	p := pullPayload(t, c)
	if len(p.Wallets) != len(s.Wallets) || len(p.Favorites) != len(s.Favorites) || len(p.Categories) != len(s.Categories) {
		t.Errorf("pulled %d wallets, %d favorites, %d categories", len(p.Wallets), len(p.Favorites), len(p.Categories))
	}
	if len(p.Transactions) != 2 || p.SettingsPassword != "hash" {
		t.Errorf("transactions = %d, password = %q", len(p.Transactions), p.SettingsPassword)
	}

	// A smaller snapshot leaves no stale rows behind.
	s.Transactions = s.Transactions[:1]
	if err := c.Push(ctx, s.Snapshot()); err != nil {
		t.Fatalf("second Push() error = %v", err)
	}
	if p := pullPayload(t, c); len(p.Transactions) != 1 {
		t.Errorf("after shrink: %d transactions, want 1", len(p.Transactions))
	}
	if got := len(fake.rows(SheetTransactions)); got != 2 {
		t.Errorf("Transactions tab has %d rows, want header + 1", got)
	}
}

func TestClient_PublishAppliesEvents(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	if err := c.Push(ctx, core.NewDefaultState("hash").Snapshot()); err != nil {
		t.Fatal(err)
	}

	tx := core.Transaction{ID: "t9", Amount: 5000, Type: core.Income, WalletID: "w1", CategoryID: "7", Date: at}
	if err := c.Publish(ctx, core.TransactionAdded(tx, 5_005_000)); err != nil {
		t.Fatalf("Publish(add_transaction) error = %v", err)
	}
	if err := c.Publish(ctx, core.WalletBalanceUpdated("w-cafe-127", 7000, at)); err != nil {
		t.Fatalf("Publish(update_wallet_balance) error = %v", err)
	}
	if err := c.Publish(ctx, core.WalletBalanceUpdated("w-unknown", 1, at)); err != nil {
		t.Errorf("unknown wallet error = %v", err)
	}

	p := pullPayload(t, c)
	if len(p.Transactions) != 1 || p.Transactions[0].ID != "t9" {
		t.Errorf("transactions = %+v", p.Transactions)
	}
	if got, _ := balanceOf(p, "w1"); got != 5_005_000 {
		t.Errorf("w1 = %d, want 5005000", got)
	}
	if got, ok := balanceOf(p, "w-cafe-127"); !ok || got != 7000 {
		t.Errorf("w-cafe-127 = %d, %v", got, ok)
	}
	if _, ok := balanceOf(p, "w-unknown"); ok {
		t.Error("event created a wallet")
	}

	log := fake.rows(SheetLog)
	if len(log) != 3 || log[0][1] != core.ActionAddTransaction {
		t.Errorf("Log tab = %v", log)
	}
}
