package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether state is loaded and the outbox is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"state": map[string]any{"version": s.ledger.Version(), "wallets": len(s.ledger.State().Wallets)},
	}
	if s.queue != nil {
		st, err := s.queue.Stats(ctx)
		if err != nil {
			checks["outbox"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["outbox"] = map[string]int64{"pending": st.Pending, "failed": st.Failed}
		}
	} else {
		checks["outbox"] = "not_configured"
	}
	checks["rate_limiter"] = map[string]int{"active_clients": s.rateLimiter.ActiveClients()}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rlMetrics := s.rateLimiter.GetMetrics()
	secMetrics := s.securityDetector.GetMetrics()
	st := s.ledger.State()

	metric := func(name, help, typ string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, typ, name, v)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rlMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rlMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", secMetrics.SuspiciousRequests)
	metric("ledger_state_version", "Committed state version since start", "counter", s.ledger.Version())
	metric("ledger_transactions", "Records in the transaction log", "gauge", len(st.Transactions))
	metric("ledger_wallets", "Configured wallets", "gauge", len(st.Wallets))
	if s.queue != nil {
		if qs, err := s.queue.Stats(r.Context()); err == nil {
			fmt.Fprintf(w, "# HELP sync_outbox_items Outbox items by status\n# TYPE sync_outbox_items gauge\n")
			fmt.Fprintf(w, "sync_outbox_items{status=\"pending\"} %d\n", qs.Pending)
			fmt.Fprintf(w, "sync_outbox_items{status=\"processing\"} %d\n", qs.Processing)
			fmt.Fprintf(w, "sync_outbox_items{status=\"completed\"} %d\n", qs.Completed)
			fmt.Fprintf(w, "sync_outbox_items{status=\"failed\"} %d\n\n", qs.Failed)
		}
	}
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.started).Seconds()))
}

type stateResponse struct {
	Version    uint64              `json:"version"`
	Wallets    []core.Wallet       `json:"wallets"`
	Categories []core.Category     `json:"categories"`
	Favorites  []core.FavoriteItem `json:"favorites"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.ledger.State()
	NewResponse().JSON(stateResponse{
		Version:    s.ledger.Version(),
		Wallets:    st.Wallets,
		Categories: st.Categories,
		Favorites:  st.Favorites,
	}).Write(w)
}

type resultResponse struct {
	Transactions []core.Transaction   `json:"transactions"`
	Balances     map[string]core.Money `json:"balances"`
}

// newResultResponse lists the written records and the new balance of every
// wallet they touched.
func newResultResponse(res ledger.Result) resultResponse {
	out := resultResponse{Transactions: res.Transactions, Balances: map[string]core.Money{}}
	note := func(id string) {
		if id == "" {
			return
		}
		if wl, ok := res.State.Wallet(id); ok {
			out.Balances[id] = wl.Balance
		}
	}
	for _, t := range res.Transactions {
		note(t.WalletID)
		note(t.ToWalletID)
	}
	for _, ev := range res.Events {
		note(ev.WalletID)
	}
	if out.Transactions == nil {
		out.Transactions = []core.Transaction{}
	}
	return out
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res ledger.Result, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newResultResponse(res)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.ledger.SubmitInput(r.Context(), req.input())
	if err == nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction recorded",
			log.FieldWalletID, req.WalletID, log.FieldAmount, int64(req.Amount))
	}
	s.writeResult(w, r, res, err)
}

type debtOp int

const (
	debtRepay debtOp = iota
	debtBorrow
	debtDraw
)

func (s *Server) handleDebt(op debtOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req debtRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		debtID, amt, note := r.PathValue("id"), core.Money(req.Amount), sanitizeInput(req.Note)

		var (
			res ledger.Result
			err error
		)
		switch op {
		case debtRepay:
			res, err = s.ledger.PayDebt(r.Context(), req.WalletID, debtID, amt, note)
		case debtBorrow:
			res, err = s.ledger.BorrowMore(r.Context(), debtID, req.WalletID, amt, note)
		case debtDraw:
			res, err = s.ledger.Draw(r.Context(), debtID, req.WalletID, req.CategoryID, amt, note)
		}
		s.writeResult(w, r, res, err)
	}
}

type debtEntryView struct {
	core.Transaction
	Kind ledger.EntryKind `json:"kind"`
}

type debtLedgerResponse struct {
	WalletID         string          `json:"walletId"`
	Entries          []debtEntryView `json:"entries"`
	TotalBorrowed    core.Money      `json:"totalBorrowed"`
	TotalRepaid      core.Money      `json:"totalRepaid"`
	RemainingBalance core.Money      `json:"remainingBalance"`
	Progress         float64         `json:"progress"`
	Unreconciled     core.Money      `json:"unreconciled"`
}

func (s *Server) handleDebtLedger(w http.ResponseWriter, r *http.Request) {
	l, err := s.ledger.DebtLedger(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := debtLedgerResponse{
		WalletID:         l.WalletID,
		Entries:          make([]debtEntryView, 0, len(l.Entries)),
		TotalBorrowed:    l.TotalBorrowed,
		TotalRepaid:      l.TotalRepaid,
		RemainingBalance: l.RemainingBalance,
		Progress:         l.Progress(),
		Unreconciled:     l.Unreconciled(),
	}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, debtEntryView{Transaction: e.Transaction, Kind: e.Kind})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.State().Wallets).Write(w)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wl, err := s.ledger.AddWallet(r.Context(), req.wallet())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(wl).Write(w)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.ledger.UpdateWallet(r.Context(), id, req.patch()); err != nil {
		writeError(w, r, err)
		return
	}
	wl, _ := s.ledger.State().Wallet(id)
	NewResponse().JSON(wl).Write(w)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteWallet(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleWalletTransactions lists a wallet's records newest first.
func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.ledger.State().Wallet(id); !ok {
		writeError(w, r, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, id))
		return
	}
	txs := s.ledger.TransactionsForWallet(id)
	limit := ParseLimit(r.URL.Query(), 50)

	out := make([]core.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0 && (limit == 0 || len(out) < limit); i-- {
		out = append(out, txs[i])
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.State().Categories).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.AddCategory(r.Context(), req.category())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.ledger.UpdateCategory(r.Context(), id, req.patch()); err != nil {
		writeError(w, r, err)
		return
	}
	c, _ := core.ResolveCategory(s.ledger.State().Categories, id)
	NewResponse().JSON(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.State().Favorites).Write(w)
}

func (s *Server) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.ledger.AddFavorite(r.Context(), req.favorite())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(f).Write(w)
}

func (s *Server) handleUpdateFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoritePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.UpdateFavorite(r.Context(), r.PathValue("id"), req.patch()); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteFavorite(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleUseFavorite(w http.ResponseWriter, r *http.Request) {
	var req useFavoriteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	res, err := s.ledger.SubmitFavorite(r.Context(), r.PathValue("id"), req.WalletID, core.Money(req.Amount))
	s.writeResult(w, r, res, err)
}

func (s *Server) handleListShops(w http.ResponseWriter, r *http.Request) {
	shops := s.ledger.Shops()
	if shops == nil {
		shops = []string{}
	}
	NewResponse().JSON(shops).Write(w)
}

func (s *Server) handleRenameShop(w http.ResponseWriter, r *http.Request) {
	var req renameShopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.ledger.RenameShop(r.Context(), sanitizeInput(req.From), sanitizeInput(req.To))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]int{"renamed": n}).Write(w)
}

type categoryAmountView struct {
	CategoryID string     `json:"categoryId"`
	Name       string     `json:"name"`
	Amount     core.Money `json:"amount"`
	Budget     core.Money `json:"budget,omitempty"`
	BudgetUsed float64    `json:"budgetUsed,omitempty"`
	OverBudget bool       `json:"overBudget,omitempty"`
}

type summaryResponse struct {
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	TotalExpense core.Money           `json:"totalExpense"`
	TotalIncome  core.Money           `json:"totalIncome"`
	ByCategory   []categoryAmountView `json:"byCategory"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query(), s.loc)
	ov := s.ledger.MonthlySummary(p.Year, p.Month)
	out := summaryResponse{
		Year:         ov.Year,
		Month:        ov.Month,
		TotalExpense: ov.TotalExpense,
		TotalIncome:  ov.TotalIncome,
		ByCategory:   make([]categoryAmountView, 0, len(ov.ByCategory)),
	}
	for _, c := range ov.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountView{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Amount:     c.Amount,
			Budget:     c.Budget,
			BudgetUsed: c.BudgetUsed,
			OverBudget: c.OverBudget(),
		})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	nw := s.ledger.NetWorth()
	NewResponse().JSON(map[string]core.Money{
		"assets": nw.Assets,
		"debts":  nw.Debts,
		"net":    nw.Net(),
	}).Write(w)
}

type savingsView struct {
	WalletID  string     `json:"walletId"`
	Name      string     `json:"name"`
	Principal core.Money `json:"principal"`
	Interest  core.Money `json:"interest"`
	Total     core.Money `json:"total"`
	MaturesAt *time.Time `json:"maturesAt,omitempty"`
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	projections := s.ledger.Savings()
	out := make([]savingsView, 0, len(projections))
	for _, p := range projections {
		out = append(out, savingsView{
			WalletID:  p.Wallet.ID,
			Name:      p.Wallet.Name,
			Principal: p.Maturity.Principal,
			Interest:  p.Maturity.Interest,
			Total:     p.Maturity.Total,
			MaturesAt: p.Maturity.MaturesAt,
		})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Pull(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	NewResponse().JSON(map[string]any{
		"applied": res.Applied,
		"skipped": skipped,
		"version": s.ledger.Version(),
	}).Write(w)
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]bool{"valid": s.ledger.VerifyPassword(req.Password)}).Write(w)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.ChangePassword(r.Context(), req.Password, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
