package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/core"
	"spendwise/internal/state"
)

func walletsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "List and manage wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := newTable(cmd)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tBALANCE")
			for _, w := range current.tracker.State().Wallets {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", w.ID, w.Icon, w.Name, kindLabel(w), w.Balance)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(walletAddCmd(), walletUpdateCmd(), walletDeleteCmd())
	return cmd
}

type walletFlags struct {
	icon, color, kind, start string
	balance                  string
	rate                     float64
	term                     int
}

func (f *walletFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.icon, "icon", "", "icon")
	cmd.Flags().StringVar(&f.color, "color", "", "color")
	cmd.Flags().StringVar(&f.balance, "balance", "", "balance (manual correction on update)")
	cmd.Flags().StringVar(&f.start, "start", "", "savings start date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "savings annual interest rate in percent")
	cmd.Flags().IntVar(&f.term, "term", 0, "savings term in months")
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &d, nil
}

// parseBalance accepts zero, unlike transaction amounts.
func parseBalance(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "0" {
		return 0, nil
	}
	return parseAmount(s)
}

func walletAddCmd() *cobra.Command {
	var f walletFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := core.Wallet{
				Name:         args[0],
				Icon:         f.icon,
				Color:        f.color,
				Kind:         core.WalletKind(f.kind),
				InterestRate: f.rate,
				TermMonths:   f.term,
			}
			if f.balance != "" {
				b, err := parseBalance(f.balance)
				if err != nil {
					return err
				}
				w.Balance = b
			}
			start, err := parseDate(f.start)
			if err != nil {
				return err
			}
			w.StartDate = start

			w, err = current.tracker.AddWallet(cmd.Context(), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s wallet %s (%s)\n", kindLabel(w), w.Name, w.ID)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.kind, "kind", string(core.KindAsset), "asset, debt or savings")
	return cmd
}

func walletUpdateCmd() *cobra.Command {
	var (
		f    walletFlags
		name string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a wallet; --balance overwrites the balance without a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p state.WalletPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("icon") {
				p.Icon = &f.icon
			}
			if flags.Changed("color") {
				p.Color = &f.color
			}
			if flags.Changed("balance") {
				b, err := parseBalance(f.balance)
				if err != nil {
					return err
				}
				p.Balance = &b
			}
			if flags.Changed("start") {
				d, err := parseDate(f.start)
				if err != nil {
					return err
				}
				p.StartDate = d
			}
			if flags.Changed("rate") {
				p.InterestRate = &f.rate
			}
			if flags.Changed("term") {
				p.TermMonths = &f.term
			}
			return current.tracker.UpdateWallet(cmd.Context(), args[0], p)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	return cmd
}

func walletDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a wallet; its records stay in history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.tracker.DeleteWallet(cmd.Context(), args[0])
		},
	}
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List and manage categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := newTable(cmd)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tBUDGET")
			for _, c := range current.tracker.State().Categories {
				budget := "-"
				if c.Budget > 0 {
					budget = c.Budget.String()
				}
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", c.ID, c.Icon, c.Name, c.Type, budget)
			}
			return tw.Flush()
		},
	}

	var icon, color, typ, budget string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := core.Category{Name: args[0], Icon: icon, Color: color, Type: core.CategoryType(strings.ToUpper(typ))}
			if budget != "" {
				b, err := parseAmount(budget)
				if err != nil {
					return err
				}
				c.Budget = b
			}
			c, err := current.tracker.AddCategory(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "icon")
	add.Flags().StringVar(&color, "color", "", "color")
	add.Flags().StringVar(&typ, "type", string(core.Expense), "EXPENSE or INCOME")
	add.Flags().StringVar(&budget, "budget", "", "monthly budget (expense categories only)")

	var newName, newBudget string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a category or change its budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p state.CategoryPatch
			if cmd.Flags().Changed("name") {
				p.Name = &newName
			}
			if cmd.Flags().Changed("budget") {
				b, err := parseBalance(newBudget)
				if err != nil {
					return err
				}
				p.Budget = &b
			}
			return current.tracker.UpdateCategory(cmd.Context(), args[0], p)
		},
	}
	update.Flags().StringVar(&newName, "name", "", "new name")
	update.Flags().StringVar(&newBudget, "budget", "", "monthly budget, 0 to clear")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.tracker.DeleteCategory(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, update, del)
	return cmd
}

func favoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Quick-entry favorites",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := newTable(cmd)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSHOP\tWALLET")
			for _, f := range current.tracker.State().Favorites {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n", f.ID, f.Icon, f.Name, f.Price, f.ShopName, f.DefaultWalletID)
			}
			return tw.Flush()
		},
	}

	var wallet, amount string
	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Record a favorite as an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amt core.Money
			if amount != "" {
				var err error
				if amt, err = parseAmount(amount); err != nil {
					return err
				}
			}
			res, err := current.tracker.SubmitFavorite(cmd.Context(), args[0], wallet, amt)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	use.Flags().StringVar(&wallet, "wallet", "", "wallet, default the favorite's own")
	use.Flags().StringVar(&amount, "amount", "", "amount, default the favorite's price")

	var fav core.FavoriteItem
	var price string
	add := &cobra.Command{
		Use:   "add <name> <price>",
		Short: "Create a favorite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			f := fav
			f.Name, f.Price = args[0], p
			f, err = current.tracker.AddFavorite(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created favorite %s (%s)\n", f.Name, f.ID)
			return nil
		},
	}
	add.Flags().StringVar(&fav.CategoryID, "category", "", "category id")
	add.Flags().StringVar(&fav.Icon, "icon", "", "icon")
	add.Flags().StringVar(&fav.ShopName, "shop", "", "shop name")
	add.Flags().StringVar(&fav.DefaultWalletID, "wallet", "", "default wallet id")

	var patch struct{ name, category, icon, shop, wallet string }
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p state.FavoritePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &patch.name
			}
			if flags.Changed("category") {
				p.CategoryID = &patch.category
			}
			if flags.Changed("icon") {
				p.Icon = &patch.icon
			}
			if flags.Changed("shop") {
				p.ShopName = &patch.shop
			}
			if flags.Changed("wallet") {
				p.DefaultWalletID = &patch.wallet
			}
			if flags.Changed("price") {
				v, err := parseAmount(price)
				if err != nil {
					return err
				}
				p.Price = &v
			}
			return current.tracker.UpdateFavorite(cmd.Context(), args[0], p)
		},
	}
	update.Flags().StringVar(&patch.name, "name", "", "name")
	update.Flags().StringVar(&price, "price", "", "price")
	update.Flags().StringVar(&patch.category, "category", "", "category id")
	update.Flags().StringVar(&patch.icon, "icon", "", "icon")
	update.Flags().StringVar(&patch.shop, "shop", "", "shop name")
	update.Flags().StringVar(&patch.wallet, "wallet", "", "default wallet id")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return current.tracker.DeleteFavorite(cmd.Context(), args[0])
		},
	}

	shops := &cobra.Command{
		Use:   "shops",
		Short: "List shop names used by favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range current.tracker.Shops() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename-shop <from> <to>",
		Short: "Rename a shop on every favorite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := current.tracker.RenameShop(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed on %d favorites\n", n)
			return nil
		},
	}

	cmd.AddCommand(use, add, update, del, shops, rename)
	return cmd
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Verify or change the settings password",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check a password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readLine(cmd, "Password: ")
			if err != nil {
				return err
			}
			if !current.tracker.VerifyPassword(pw) {
				return errors.New("wrong password")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "change",
		Short: "Change the password; old and new are read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := bufio.NewReader(cmd.InOrStdin())
			fmt.Fprint(cmd.ErrOrStderr(), "Current password: ")
			oldPW, _ := r.ReadString('\n')
			fmt.Fprint(cmd.ErrOrStderr(), "New password: ")
			newPW, _ := r.ReadString('\n')
			return current.tracker.ChangePassword(cmd.Context(),
				strings.TrimRight(oldPW, "\r\n"), strings.TrimRight(newPW, "\r\n"))
		},
	})
	return cmd
}
