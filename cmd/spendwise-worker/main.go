// Command spendwise-worker drains the sync outbox to the remote, optionally
// through an AMQP relay, and periodically merges the remote copy back.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/worker"
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
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)
	logger.Info("Starting spendwise-worker",
		"state_backend", cfg.StateBackend,
		"sync_backend", cfg.SyncBackend,
		"relay", cfg.AMQPURL != "")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if cfg.SyncBackend == config.SyncNone {
		return errors.New("SYNC_BACKEND is none: nothing to deliver")
	}
	be, err := cli.Open(ctx, cfg, logger, true)
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

	// With a relay the outbox feeds the queue and the consumer talks to the
	// remote; otherwise the outbox goes to the remote directly.
	var target services.Deliverer = be.Remote
	if be.Relay != nil {
		target = be.Relay
	}
	pcfg := services.DefaultSyncProcessorConfig()
	pcfg.BatchSize = cfg.SyncBatchSize
	pcfg.PollInterval = cfg.SyncInterval
	pcfg.MaxSnapshotRetries = cfg.SyncMaxSnapshotRetries
	processor := services.NewSyncProcessor(be.Store, target, pcfg)

	sw := worker.NewSyncWorker(be.Remote, tracker, logger)
	if err := sw.Refresh(ctx); err != nil {
		logger.Error("Startup refresh failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
	}

	janitor := cache.NewJanitor()
	for _, c := range tracker.Caches() {
		janitor.Register(c)
	}
	janitor.Start(ctx, 5*time.Minute)
	defer janitor.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sctx, cancel := cli.ShutdownContext(30 * time.Second)
		defer cancel()
		return processor.Stop(sctx)
	})

	if be.Relay != nil {
		g.Go(func() error {
			err := be.Relay.ConsumeMessages(gctx, sw.HandleMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error { return sw.RunRefresh(gctx, cfg.SyncRefreshInterval) })

	return g.Wait()
}
