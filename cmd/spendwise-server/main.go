// Command spendwise-server serves the ledger as a JSON API. Sync deliveries
// are queued to the shared outbox and drained by spendwise-worker.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	apphttp "spendwise/internal/http"
	"spendwise/internal/log"
)

func main() {
	envFile := flag.String("env-file", "", "dotenv file to load (default: .env)")
	flag.Parse()

	var paths []string
	if *envFile != "" {
		paths = append(paths, *envFile)
	}
	if err := cli.LoadEnvFile(paths...); err != nil {
		log.FromContext(context.Background()).Error("Failed to load env file", log.FieldError, err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.FromContext(context.Background()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	be, err := cli.Open(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", log.FieldError, err)
		}
	}()

	tracker, err := cli.NewTracker(ctx, cfg, logger, be)
	if err != nil {
		return err
	}
	defer tracker.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	janitor := cache.NewJanitor()
	for _, c := range tracker.Caches() {
		janitor.Register(c)
	}
	janitor.Start(ctx, 5*time.Minute)
	defer janitor.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, tracker, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		BlockSuspicious:   cfg.BlockSuspicious,
		TrustedProxies:    cfg.TrustedProxies,
		Location:          loc,
		Queue:             be.Store,
		Logger:            logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting spendwise server",
			"port", cfg.Port,
			"state_backend", cfg.StateBackend,
			"sync_backend", cfg.SyncBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, scancel := cli.ShutdownContext(30 * time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		return err
	}
	return nil
}
