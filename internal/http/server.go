// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
	"spendwise/internal/state"
	"spendwise/internal/storage"
)

// Ledger is what the API reads and mutates. *services.Tracker implements it.
type Ledger interface {
	State() core.AppState
	Version() uint64

	SubmitInput(ctx context.Context, in ledger.Input) (ledger.Result, error)
	SubmitFavorite(ctx context.Context, favoriteID, walletID string, amount core.Money) (ledger.Result, error)
	PayDebt(ctx context.Context, fromWalletID, debtWalletID string, amount core.Money, note string) (ledger.Result, error)
	BorrowMore(ctx context.Context, debtWalletID, intoWalletID string, amount core.Money, note string) (ledger.Result, error)
	Draw(ctx context.Context, debtWalletID, fundingWalletID, categoryID string, amount core.Money, note string) (ledger.Result, error)

	DebtLedger(walletID string) (ledger.DebtLedger, error)
	TransactionsForWallet(walletID string) []core.Transaction
	MonthlySummary(year, month int) core.MonthOverview
	NetWorth() core.NetWorth
	Savings() []services.SavingsProjection

	AddWallet(ctx context.Context, w core.Wallet) (core.Wallet, error)
	UpdateWallet(ctx context.Context, id string, p state.WalletPatch) error
	DeleteWallet(ctx context.Context, id string) error
	AddCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, id string, p state.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string) error
	AddFavorite(ctx context.Context, f core.FavoriteItem) (core.FavoriteItem, error)
	UpdateFavorite(ctx context.Context, id string, p state.FavoritePatch) error
	DeleteFavorite(ctx context.Context, id string) error
	RenameShop(ctx context.Context, from, to string) (int, error)
	Shops() []string

	VerifyPassword(pw string) bool
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	Pull(ctx context.Context) (services.PullResult, error)
}

var _ Ledger = (*services.Tracker)(nil)

// QueueStats reports the sync outbox for readiness and metrics.
type QueueStats interface {
	Stats(ctx context.Context) (storage.QueueStats, error)
}

type Server struct {
	http.Server
	ledger Ledger
	queue  QueueStats
	loc    *time.Location
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// Options tune the middleware stack.
type Options struct {
	RequestsPerMinute int
	BlockSuspicious   bool
	TrustedProxies    []string
	Location          *time.Location
	Queue             QueueStats
	Logger            *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, l Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	detector := security.NewDetector()
	detector.Block = opts.BlockSuspicious
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	rlCfg := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RequestsPerMinute
	}

	s := &Server{
		ledger:           l,
		queue:            opts.Queue,
		loc:              loc,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(rlCfg),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		started:          time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	api := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(mux)
	api = detector.Middleware(api)
	api = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(api)
	api = s.traceMiddleware.Middleware(api)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           api,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/state", s.handleState)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/debts/{id}/repay", s.handleDebt(debtRepay))
	mux.HandleFunc("POST /api/debts/{id}/borrow", s.handleDebt(debtBorrow))
	mux.HandleFunc("POST /api/debts/{id}/draw", s.handleDebt(debtDraw))
	mux.HandleFunc("GET /api/debts/{id}/ledger", s.handleDebtLedger)

	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	mux.HandleFunc("PATCH /api/wallets/{id}", s.handleUpdateWallet)
	mux.HandleFunc("DELETE /api/wallets/{id}", s.handleDeleteWallet)
	mux.HandleFunc("GET /api/wallets/{id}/transactions", s.handleWalletTransactions)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/favorites", s.handleListFavorites)
	mux.HandleFunc("POST /api/favorites", s.handleCreateFavorite)
	mux.HandleFunc("PATCH /api/favorites/{id}", s.handleUpdateFavorite)
	mux.HandleFunc("DELETE /api/favorites/{id}", s.handleDeleteFavorite)
	mux.HandleFunc("POST /api/favorites/{id}/use", s.handleUseFavorite)
	mux.HandleFunc("GET /api/shops", s.handleListShops)
	mux.HandleFunc("POST /api/shops/rename", s.handleRenameShop)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/networth", s.handleNetWorth)
	mux.HandleFunc("GET /api/savings", s.handleSavings)

	mux.HandleFunc("POST /api/sync/pull", s.handlePull)

	mux.HandleFunc("POST /api/settings/password/verify", s.handleVerifyPassword)
	mux.HandleFunc("PUT /api/settings/password", s.handleChangePassword)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
