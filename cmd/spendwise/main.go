// Command spendwise records spending, transfers and debts against a local
// ledger and queues changes for the configured remote.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

// app carries what PersistentPreRunE opened for the subcommands.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.Result
	tracker *services.Tracker
}

var (
	envFile string
	current app
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spendwise",
		Short:         "Personal ledger for wallets, debts and savings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return open(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return closeApp()
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env)")

	cmd.AddCommand(expenseCmd())
	cmd.AddCommand(incomeCmd())
	cmd.AddCommand(transferCmd())
	cmd.AddCommand(payDebtCmd())
	cmd.AddCommand(borrowCmd())
	cmd.AddCommand(drawCmd())
	cmd.AddCommand(walletsCmd())
	cmd.AddCommand(categoriesCmd())
	cmd.AddCommand(favoritesCmd())
	cmd.AddCommand(historyCmd())
	cmd.AddCommand(debtLedgerCmd())
	cmd.AddCommand(summaryCmd())
	cmd.AddCommand(netWorthCmd())
	cmd.AddCommand(savingsCmd())
	cmd.AddCommand(passwordCmd())
	cmd.AddCommand(pullCmd())
	cmd.AddCommand(pushCmd())
	cmd.AddCommand(queueCmd())
	return cmd
}

func open(ctx context.Context) error {
	var paths []string
	if envFile != "" {
		paths = append(paths, envFile)
	}
	if err := cli.LoadEnvFile(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	be, err := cli.Open(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	tr, err := cli.NewTracker(ctx, cfg, logger, be)
	if err != nil {
		be.Cleanup()
		return err
	}
	current = app{cfg: cfg, logger: logger, backend: be, tracker: tr}
	return nil
}

func closeApp() error {
	a := current
	current = app{}
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.backend != nil {
		return a.backend.Cleanup()
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		closeApp()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
