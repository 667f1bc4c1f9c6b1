// Package cli holds the process bootstrap shared by the commands under cmd/.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendwise/internal/backend"
	"spendwise/internal/config"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

// LoadEnvFile loads a .env file for local development. A missing file is
// not an error.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.Setup(cfg.LogLevel, cfg.LogFormat)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Open creates the backend collaborators described by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger, withRelay bool) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	f := backend.NewFactory(logger)
	f.WithRelay = withRelay
	return f.Create(ctx, bc)
}

// NewTracker builds a Tracker over an opened backend.
func NewTracker(ctx context.Context, cfg *config.Config, logger *log.Logger, be *backend.Result) (*services.Tracker, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	engine := ledger.New(ledger.WithLoanAdvanceMode(ledger.LoanAdvanceMode(cfg.LoanAdvanceMode)))
	return services.NewTracker(ctx, be.Store,
		services.WithOutbox(be.Store),
		services.WithPuller(be.Remote),
		services.WithEngine(engine),
		services.WithPushDebounce(cfg.SyncDebounce),
		services.WithLocation(loc),
		services.WithLogger(logger),
		services.WithDefaultPassword(cfg.SettingsPasswordDefault),
	)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, cancel
}

// ShutdownContext bounds cleanup after the main context is done.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
