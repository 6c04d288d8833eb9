package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/app"
	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/spf13/cobra"
)

func (r *root) addBudget(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"b"},
		Short:   "Track income, expenses and monthly limits.",
	}

	var (
		income      bool
		comment     string
		date        string
		categoryArg string
	)
	add := &cobra.Command{
		Use:   "add <amount> [category]",
		Short: "Record a transaction. Expense unless --income.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := budget.ParseAmount(args[0])
			if err != nil {
				return err
			}
			typ := budget.Expense
			if income {
				typ = budget.Income
			}
			category := categoryArg
			if len(args) == 2 {
				category = args[1]
			}
			if category == "" {
				table := budget.Categories(typ)
				category = table[len(table)-1].ID
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				in := budget.Input{Amount: amount, Type: typ, Category: category, Comment: comment}
				if date != "" {
					d, err := time.ParseInLocation("2006-01-02", date, a.Budget.Location())
					if err != nil {
						return fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
					}
					in.Date = &d
				}
				tx, err := a.Budget.AddTransaction(ctx, in)
				if err != nil {
					return err
				}
				return r.emit(cmd, tx, func(w io.Writer) {
					fmt.Fprintf(w, "added %s %s %s\n", signed(tx), budget.LookupCategory(tx.Category, tx.Type).Label, faint(tx.ID))
				})
			})
		},
	}
	add.Flags().BoolVarP(&income, "income", "i", false, "Record income instead of an expense.")
	add.Flags().StringVarP(&comment, "comment", "m", "", "Free text comment.")
	add.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD, default now.")
	add.Flags().StringVarP(&categoryArg, "category", "c", "", "Category id. See budget categories.")

	var year, month, top int
	monthCmd := &cobra.Command{
		Use:   "month",
		Short: "Show the month report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month < 0 || month > 12 {
				return fmt.Errorf("month must be 1-12, got %d", month)
			}
			return r.run(cmd, func(_ context.Context, a *app.App) error {
				now := time.Now().In(a.Budget.Location())
				y, m := now.Year(), int(now.Month())
				if year != 0 {
					y = year
				}
				if month != 0 {
					m = month
				}
				report := a.Budget.Report(y, m-1, top)
				return r.emit(cmd, report, func(w io.Writer) {
					printReport(w, report)
				})
			})
		},
	}
	monthCmd.Flags().IntVar(&year, "year", 0, "Year, default current.")
	monthCmd.Flags().IntVar(&month, "month", 0, "Month 1-12, default current.")
	monthCmd.Flags().IntVar(&top, "top", budget.DefaultTopN, "Number of top expenses.")

	limit := &cobra.Command{
		Use:   "limit <category> <amount>",
		Short: "Set the monthly limit of an expense category.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := budget.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Budget.SetLimit(ctx, args[0], amount); err != nil {
					return err
				}
				state := map[string]any{"category": args[0], "limit": amount}
				return r.emit(cmd, state, func(w io.Writer) {
					fmt.Fprintf(w, "%s limit set to %s\n", budget.LookupCategory(args[0], budget.Expense).Label, amount.StringFixed(2))
				})
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a transaction.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				found := false
				for _, tx := range a.Budget.Transactions() {
					if tx.ID == args[0] {
						found = true
					}
				}
				if !found {
					return fmt.Errorf("transaction %s: %w", args[0], errNotFound)
				}
				if err := a.Budget.DeleteTransaction(ctx, args[0]); err != nil {
					return err
				}
				return r.emit(cmd, map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) {
					fmt.Fprintln(w, "deleted")
				})
			})
		},
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List category ids.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables := map[budget.Type][]budget.Category{
				budget.Expense: budget.ExpenseCategories,
				budget.Income:  budget.IncomeCategories,
			}
			return r.emit(cmd, tables, func(w io.Writer) {
				for _, typ := range []budget.Type{budget.Expense, budget.Income} {
					title(w, strings.ToUpper(string(typ)[:1])+string(typ)[1:])
					tbl := newTable("ID", "LABEL")
					for _, c := range tables[typ] {
						tbl.AddRow(c.ID, c.Label)
					}
					printTable(w, tbl)
				}
			})
		},
	}

	cmd.AddCommand(add, monthCmd, limit, rm, categories)
	parent.AddCommand(cmd)
}

func signed(tx *budget.Transaction) string {
	s := tx.Amount.StringFixed(2)
	if tx.Type == budget.Income {
		return green("+" + s)
	}
	return red("-" + s)
}

func printReport(w io.Writer, r budget.Report) {
	title(w, time.Date(r.Year, time.Month(r.Month+1), 1, 0, 0, 0, 0, time.UTC).Format("January 2006"))

	tbl := newTable()
	tbl.AddRow("Income", green(r.Stats.Income.StringFixed(2)))
	tbl.AddRow("Expense", red(r.Stats.Expense.StringFixed(2)))
	balance := r.Stats.Balance.StringFixed(2)
	if r.Stats.Balance.IsNegative() {
		balance = red(balance)
	}
	tbl.AddRow("Balance", bold(balance))
	tbl.AddRow("Used", fmt.Sprintf("%.0f%% of income", r.BudgetUsed))
	tbl.AddRow("vs last month", r.ExpenseDelta.StringFixed(2))
	printTable(w, tbl)

	fmt.Fprintf(w, "\n%s\n", bold("Top expenses"))
	if len(r.TopExpenses) == 0 {
		none(w)
	} else {
		top := newTable()
		for _, tx := range r.TopExpenses {
			comment := ""
			if tx.Comment != nil {
				comment = *tx.Comment
			}
			top.AddRow(shortDate(tx.Date), budget.LookupCategory(tx.Category, tx.Type).Label, signed(tx), faint(comment))
		}
		printTable(w, top)
	}

	if len(r.Limits) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Limits"))
		lim := newTable()
		for _, u := range r.Limits {
			pct := fmt.Sprintf("%.0f%%", u.Pct)
			switch {
			case u.Over:
				pct = red(pct)
			case u.Warn:
				pct = yellow(pct)
			}
			lim.AddRow(budget.LookupCategory(u.Category, budget.Expense).Label,
				u.Spent.StringFixed(2)+" / "+u.Limit.StringFixed(2), pct)
		}
		printTable(w, lim)
	}
}
