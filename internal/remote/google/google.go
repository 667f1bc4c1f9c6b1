// Package google stores the remote copy of the state in a Google Sheets
// spreadsheet: one tab per collection with an id and a JSON column, a
// Settings tab, and an append-only Log tab for audit events. Published
// events are also applied to the Transactions and Wallets tabs.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
	"spendwise/internal/remote"
)

// Tab names.
const (
	SheetWallets      = "Wallets"
	SheetCategories   = "Categories"
	SheetFavorites    = "Favorites"
	SheetTransactions = "Transactions"
	SheetSettings     = "Settings"
	SheetLog          = "Log"
)

const settingsPasswordKey = "settingsPassword"

type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string

	// A user token from cmd/oauth-init takes precedence over the service
	// account when OAuthTokenFile is set.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ remote.Client = (*Client)(nil)

// New creates a Sheets client authenticated with a service account or a
// saved user token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither field is set.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with user token", "token_file", cfg.OAuthTokenFile)
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func itemsRange(sheet string) string { return sheet + "!A2:B" }

// Push rewrites every collection tab with the snapshot contents.
func (c *Client) Push(ctx context.Context, s core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	wallets, err := itemRows(s.Wallets, func(w core.Wallet) string { return w.ID })
	if err != nil {
		return fmt.Errorf("encode wallets: %w", err)
	}
	categories, err := itemRows(s.Categories, func(c core.Category) string { return c.ID })
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	favorites, err := itemRows(s.Favorites, func(f core.FavoriteItem) string { return f.ID })
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	transactions, err := itemRows(s.Transactions, func(t core.Transaction) string { return t.ID })
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}

	data := []*gsheet.ValueRange{
		{Range: itemsRange(SheetWallets), Values: wallets},
		{Range: itemsRange(SheetCategories), Values: categories},
		{Range: itemsRange(SheetFavorites), Values: favorites},
		{Range: itemsRange(SheetTransactions), Values: transactions},
	}
	data = append(data, &gsheet.ValueRange{
		Range:  SheetSettings + "!A1:B1",
		Values: [][]any{{settingsPasswordKey, s.SettingsPassword}},
	})

	clearReq := &gsheet.BatchClearValuesRequest{Ranges: []string{
		itemsRange(SheetWallets), itemsRange(SheetCategories),
		itemsRange(SheetFavorites), itemsRange(SheetTransactions),
	}}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, clearReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear collection tabs: %w", err)
	}

	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write collection tabs: %w", err)
	}
	return nil
}

// Publish appends the event to the Log tab and applies it: add_transaction
// appends the record and sets its wallet balance, update_wallet_balance sets
// the balance.
func (c *Client) Publish(ctx context.Context, ev core.Event) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, err := logRow(ev)
	if err != nil {
		return err
	}
	if err := c.appendRows(ctx, SheetLog+"!A:C", [][]any{row}); err != nil {
		return err
	}

	switch ev.Action {
	case core.ActionAddTransaction:
		if ev.Transaction == nil {
			return nil
		}
		rows, err := itemRows([]core.Transaction{*ev.Transaction}, func(t core.Transaction) string { return t.ID })
		if err != nil {
			return fmt.Errorf("encode transaction: %w", err)
		}
		if err := c.appendRows(ctx, itemsRange(SheetTransactions), rows); err != nil {
			return err
		}
		if ev.NewBalance != nil {
			return c.setWalletBalance(ctx, ev.Transaction.WalletID, *ev.NewBalance)
		}
	case core.ActionUpdateWalletBalance:
		if ev.Balance != nil {
			return c.setWalletBalance(ctx, ev.WalletID, *ev.Balance)
		}
	}
	return nil
}

func (c *Client) appendRows(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

// setWalletBalance rewrites the JSON cell of one wallet row. A wallet the
// tab does not hold yet is left to the next snapshot.
func (c *Client) setWalletBalance(ctx context.Context, walletID string, balance core.Money) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, itemsRange(SheetWallets)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", SheetWallets, err)
	}
	i, cell, ok := findItem(resp.Values, walletID)
	if !ok {
		return nil
	}
	var w core.Wallet
	if err := json.Unmarshal([]byte(cell), &w); err != nil {
		return fmt.Errorf("decode wallet %s: %w", walletID, err)
	}
	w.Balance = balance
	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet %s: %w", walletID, err)
	}

	// Item rows start on row 2.
	rng := fmt.Sprintf("%s!B%d", SheetWallets, i+2)
	vr := &gsheet.ValueRange{Values: [][]any{{string(b)}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// Pull reads every tab and returns them as one JSON object.
func (c *Client) Pull(ctx context.Context) ([]byte, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ranges := []string{
		itemsRange(SheetWallets), itemsRange(SheetCategories),
		itemsRange(SheetFavorites), itemsRange(SheetTransactions),
		SheetSettings + "!A1:B",
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tabs: %w", err)
	}
	if len(resp.ValueRanges) != len(ranges) {
		return nil, fmt.Errorf("read tabs: got %d ranges, want %d", len(resp.ValueRanges), len(ranges))
	}
	return buildPayload(
		resp.ValueRanges[0].Values,
		resp.ValueRanges[1].Values,
		resp.ValueRanges[2].Values,
		resp.ValueRanges[3].Values,
		resp.ValueRanges[4].Values,
	)
}

func logRow(ev core.Event) ([]any, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return []any{at.UTC().Format(time.RFC3339), ev.Action, string(b)}, nil
}
