package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/core"
)

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <wallet>",
		Short: "List the records booked on a wallet, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := current.tracker.State()
			if _, ok := s.Wallet(args[0]); !ok {
				return fmt.Errorf("unknown wallet %q", args[0])
			}
			txs := current.tracker.TransactionsForWallet(args[0])
			tw := newTable(cmd)
			fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tCATEGORY\tNOTE")
			for i, n := len(txs)-1, 0; i >= 0 && (limit <= 0 || n < limit); i, n = i-1, n+1 {
				t := txs[i]
				name, icon := t.Display(s.Categories)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
					t.Date.Local().Format("2006-01-02 15:04"), t.Type, t.Amount, icon, name, t.Note)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows, 0 for all")
	return cmd
}

func debtLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <debt-wallet>",
		Short: "Show the borrowing and repayment history of a debt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := current.tracker.DebtLedger(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Borrowed:  %s\nRepaid:    %s\nRemaining: %s\nProgress:  %.2f%%\n",
				l.TotalBorrowed, l.TotalRepaid, l.RemainingBalance, l.Progress())
			if gap := l.Unreconciled(); gap != 0 {
				fmt.Fprintf(out, "Unrecorded balance changes: %s\n", gap)
			}
			tw := newTable(cmd)
			fmt.Fprintln(tw, "\nDATE\tKIND\tAMOUNT\tNOTE")
			for _, e := range l.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Date.Local().Format("2006-01-02"), e.Kind, e.Amount, e.Note)
			}
			return tw.Flush()
		},
	}
}

func summaryCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Monthly spending per category with budget usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now()
			if month != "" {
				var err error
				if at, err = time.Parse("2006-01", month); err != nil {
					return fmt.Errorf("invalid --month: %w", err)
				}
			}
			ov := current.tracker.MonthlySummary(at.Year(), int(at.Month()))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%04d-%02d  expense %s  income %s\n", ov.Year, ov.Month, ov.TotalExpense, ov.TotalIncome)

			tw := newTable(cmd)
			fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tBUDGET\tUSED")
			for _, c := range ov.ByCategory {
				budget, used := "-", "-"
				if c.Budget > 0 {
					budget = c.Budget.String()
					used = strconv.FormatFloat(c.BudgetUsed, 'f', 1, 64) + "%"
					if c.OverBudget() {
						used += " !"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Amount, budget, used)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM, default current")
	return cmd
}

func netWorthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networth",
		Short: "Total assets, debts and the difference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nw := current.tracker.NetWorth()
			fmt.Fprintf(cmd.OutOrStdout(), "Assets: %s\nDebts:  %s\nNet:    %s\n", nw.Assets, nw.Debts, nw.Net())
			return nil
		},
	}
}

func savingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "savings",
		Short: "Projected interest and maturity of savings wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := newTable(cmd)
			fmt.Fprintln(tw, "WALLET\tPRINCIPAL\tINTEREST\tTOTAL\tMATURES")
			for _, p := range current.tracker.Savings() {
				when := "-"
				if p.Maturity.MaturesAt != nil {
					when = p.Maturity.MaturesAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.Wallet.Name, p.Maturity.Principal, p.Maturity.Interest, p.Maturity.Total, when)
			}
			return tw.Flush()
		},
	}
}

func kindLabel(w core.Wallet) string {
	return string(core.Classify(w))
}
