package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
)

type entryFlags struct {
	note string
	icon string
	date string
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.note, "note", "n", "", "note")
	cmd.Flags().StringVar(&f.icon, "icon", "", "icon override")
	cmd.Flags().StringVar(&f.date, "date", "", "date (YYYY-MM-DD), default now")
}

func (f *entryFlags) apply(in ledger.Intent) (ledger.Intent, error) {
	if f.icon != "" {
		in.Icon = f.icon
	}
	if f.date != "" {
		d, err := time.ParseInLocation("2006-01-02", f.date, time.Local)
		if err != nil {
			return in, fmt.Errorf("invalid --date: %w", err)
		}
		in.Date = d
	}
	return in, nil
}

func parseAmount(s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return m, nil
}

// printResult lists the written records and the new balance of every wallet
// they touched.
func printResult(w io.Writer, res ledger.Result) {
	seen := map[string]bool{}
	var touched []string
	note := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			touched = append(touched, id)
		}
	}
	for _, t := range res.Transactions {
		to := ""
		if t.ToWalletName != "" {
			to = " -> " + t.ToWalletName
		}
		fmt.Fprintf(w, "%s %-7s %12s  %s%s  [%s]\n", t.Icon, t.Type, t.Amount, t.WalletName, to, t.ID)
		note(t.WalletID)
		note(t.ToWalletID)
	}
	for _, ev := range res.Events {
		note(ev.WalletID)
	}
	for _, id := range touched {
		if wl, ok := res.State.Wallet(id); ok {
			fmt.Fprintf(w, "  %s: %s\n", wl.Name, wl.Balance)
		}
	}
}

func submit(cmd *cobra.Command, f *entryFlags, in ledger.Intent) error {
	in, err := f.apply(in)
	if err != nil {
		return err
	}
	res, err := current.tracker.Submit(cmd.Context(), in)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func expenseCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "expense <wallet> <category> <amount>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.Expense(args[0], args[1], amt, f.note))
		},
	}
	f.bind(cmd)
	return cmd
}

func incomeCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "income <wallet> <category> <amount>",
		Short: "Record income",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.Income(args[0], args[1], amt, f.note))
		},
	}
	f.bind(cmd)
	return cmd
}

func transferCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move money between two wallets",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.Transfer(args[0], args[1], amt, f.note))
		},
	}
	f.bind(cmd)
	return cmd
}

func payDebtCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "pay-debt <from> <debt-wallet> <amount>",
		Short: "Repay part of a debt from an asset wallet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.DebtRepayment(args[0], args[1], amt, f.note))
		},
	}
	f.bind(cmd)
	return cmd
}

func borrowCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "borrow <debt-wallet> <into> <amount>",
		Short: "Borrow more on a debt and receive the cash in another wallet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.LoanAdvance(args[0], args[1], amt, f.note))
		},
	}
	f.bind(cmd)
	return cmd
}

func drawCmd() *cobra.Command {
	var (
		f        entryFlags
		funding  string
		category string
	)
	cmd := &cobra.Command{
		Use:   "draw <debt-wallet> <amount>",
		Short: "Charge spending to a debt wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return submit(cmd, &f, ledger.DebtDraw(args[0], funding, category, amt, f.note))
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&funding, "from", "", "asset wallet that pays out the borrowed amount")
	cmd.Flags().StringVar(&category, "category", "", "category (default: debt repayment)")
	return cmd
}
