package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spendwise/internal/config"
	"spendwise/internal/remote"
	"spendwise/internal/services"
)

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Merge the remote copy into the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := current.tracker.Pull(cmd.Context())
			if errors.Is(err, remote.ErrDisabled) {
				return errors.New("no sync backend configured (set SYNC_BACKEND)")
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Applied {
				fmt.Fprintln(out, "Remote is empty, nothing merged")
				return nil
			}
			fmt.Fprintln(out, "Merged remote state")
			if len(res.Skipped) > 0 {
				fmt.Fprintf(out, "Kept local values for malformed fields: %s\n", strings.Join(res.Skipped, ", "))
			}
			return nil
		},
	}
}

func newProcessor() *services.SyncProcessor {
	cfg := services.DefaultSyncProcessorConfig()
	cfg.BatchSize = current.cfg.SyncBatchSize
	cfg.MaxSnapshotRetries = current.cfg.SyncMaxSnapshotRetries
	return services.NewSyncProcessor(current.backend.Store, current.backend.Remote, cfg)
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Deliver queued snapshots and events to the remote now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if current.cfg.SyncBackend == config.SyncNone {
				return errors.New("no sync backend configured (set SYNC_BACKEND)")
			}
			// Pending config edits are flushed into the queue first.
			current.tracker.Close()

			ctx := cmd.Context()
			p := newProcessor()
			total := 0
			for {
				n := p.ProcessOnce(ctx)
				total += n
				if n == 0 || ctx.Err() != nil {
					break
				}
			}
			stats, err := p.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d items; %d pending, %d failed\n", total, stats.Pending, stats.Failed)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the sync outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := newProcessor().Stats(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd)
			fmt.Fprintln(tw, "PENDING\tPROCESSING\tCOMPLETED\tFAILED")
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", stats.Pending, stats.Processing, stats.Completed, stats.Failed)
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "retry",
		Short: "Move failed items back to pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return newProcessor().RetryFailed(cmd.Context())
		},
	})
	return cmd
}
