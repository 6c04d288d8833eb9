package budget

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// WarnPct is the usage percentage at which a limit starts warning.
const WarnPct = 80

var warnPct = decimal.NewFromInt(WarnPct)

// MonthStats totals one month of transactions.
type MonthStats struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []*Transaction  `json:"transactions"`
}

// DayTotal is the income and expense of one day of the month.
type DayTotal struct {
	Day     int             `json:"day"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// CategoryUsage is the spend of a category measured against its limit.
type CategoryUsage struct {
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
	Limit    decimal.Decimal `json:"limit"`
	Pct      float64         `json:"pct"`
	Over     bool            `json:"over"`
	Warn     bool            `json:"warn"`
}

// Report is everything the month view shows.
type Report struct {
	Year          int                        `json:"year"`
	Month         int                        `json:"month"`
	Stats         MonthStats                 `json:"stats"`
	CategorySpend map[string]decimal.Decimal `json:"category_spend"`
	Daily         []DayTotal                 `json:"daily"`
	TopExpenses   []*Transaction             `json:"top_expenses"`
	ExpenseDelta  decimal.Decimal            `json:"expense_delta"`
	BudgetUsed    float64                    `json:"budget_used_pct"`
	Limits        []CategoryUsage            `json:"limits"`
}

func inMonth(t time.Time, year, month0 int, loc *time.Location) bool {
	local := t.In(loc)
	return local.Year() == year && int(local.Month())-1 == month0
}

// MonthTransactions filters txs to those dated in the given month of loc,
// keeping their order. month0 is zero-based.
func MonthTransactions(txs []*Transaction, year, month0 int, loc *time.Location) []*Transaction {
	if loc == nil {
		loc = time.Local
	}
	out := []*Transaction{}
	for _, tx := range txs {
		if inMonth(tx.Date, year, month0, loc) {
			out = append(out, tx)
		}
	}
	return out
}

// Totals sums txs by type.
func Totals(txs []*Transaction) MonthStats {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount)
		case Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	if txs == nil {
		txs = []*Transaction{}
	}
	return MonthStats{
		Income:       income,
		Expense:      expense,
		Balance:      income.Sub(expense),
		Transactions: txs,
	}
}

// ComputeMonthStats totals the given month.
func ComputeMonthStats(txs []*Transaction, year, month0 int, loc *time.Location) MonthStats {
	return Totals(MonthTransactions(txs, year, month0, loc))
}

// CategorySpend sums expense amounts per category.
func CategorySpend(txs []*Transaction) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// DailySeries totals txs per day of month in loc. Days where both totals
// are zero are left out.
func DailySeries(txs []*Transaction, loc *time.Location) []DayTotal {
	if loc == nil {
		loc = time.Local
	}
	byDay := map[int]*DayTotal{}
	for _, tx := range txs {
		day := tx.Date.In(loc).Day()
		d, ok := byDay[day]
		if !ok {
			d = &DayTotal{Day: day, Income: decimal.Zero, Expense: decimal.Zero}
			byDay[day] = d
		}
		switch tx.Type {
		case Income:
			d.Income = d.Income.Add(tx.Amount)
		case Expense:
			d.Expense = d.Expense.Add(tx.Amount)
		}
	}

	out := []DayTotal{}
	for _, d := range byDay {
		if d.Income.IsZero() && d.Expense.IsZero() {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// TopExpenses returns up to n expenses by amount, largest first. Equal
// amounts keep their order in txs.
func TopExpenses(txs []*Transaction, n int) []*Transaction {
	out := []*Transaction{}
	for _, tx := range txs {
		if tx.Type == Expense {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// PrevMonth returns the month before (year, month0), wrapping January.
func PrevMonth(year, month0 int) (int, int) {
	if month0 == 0 {
		return year - 1, 11
	}
	return year, month0 - 1
}

// NextMonth returns the month after (year, month0), wrapping December.
func NextMonth(year, month0 int) (int, int) {
	if month0 == 11 {
		return year + 1, 0
	}
	return year, month0 + 1
}

// ExpenseDelta is current expense minus previous expense.
func ExpenseDelta(current, previous MonthStats) decimal.Decimal {
	return current.Expense.Sub(previous.Expense)
}

// BudgetUsedPct is expense as a percentage of income, capped at 100. It is
// 0 when there is no income. The value is unrounded.
func BudgetUsedPct(stats MonthStats) float64 {
	if !stats.Income.IsPositive() {
		return 0
	}
	return capPct(stats.Expense.Div(stats.Income).Mul(hundred))
}

func capPct(pct decimal.Decimal) float64 {
	if pct.GreaterThan(hundred) {
		return 100
	}
	if pct.IsNegative() {
		return 0
	}
	return pct.InexactFloat64()
}

// LimitUsage measures spend against limits for every category that has
// both a positive limit and some spend. Known expense categories come
// first in table order, then any others by name.
func LimitUsage(spend, limits map[string]decimal.Decimal) []CategoryUsage {
	var cats []string
	seen := map[string]bool{}
	for _, c := range ExpenseCategories {
		cats = append(cats, c.ID)
		seen[c.ID] = true
	}
	var extra []string
	for c := range limits {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	cats = append(cats, extra...)

	out := []CategoryUsage{}
	for _, c := range cats {
		limit, ok := limits[c]
		spent := spend[c]
		if !ok || !limit.IsPositive() || !spent.IsPositive() {
			continue
		}
		ratio := spent.Div(limit).Mul(hundred)
		over := spent.GreaterThan(limit)
		out = append(out, CategoryUsage{
			Category: c,
			Spent:    spent,
			Limit:    limit,
			Pct:      capPct(ratio),
			Over:     over,
			Warn:     ratio.GreaterThanOrEqual(warnPct) && !over,
		})
	}
	return out
}

// DefaultTopN is the size of the top expense ranking in a Report.
const DefaultTopN = 5

// BuildReport computes the month view for (year, month0).
func BuildReport(txs []*Transaction, limits map[string]decimal.Decimal, year, month0, topN int, loc *time.Location) Report {
	if loc == nil {
		loc = time.Local
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	current := ComputeMonthStats(txs, year, month0, loc)
	py, pm := PrevMonth(year, month0)
	previous := ComputeMonthStats(txs, py, pm, loc)
	spend := CategorySpend(current.Transactions)

	return Report{
		Year:          year,
		Month:         month0,
		Stats:         current,
		CategorySpend: spend,
		Daily:         DailySeries(current.Transactions, loc),
		TopExpenses:   TopExpenses(current.Transactions, topN),
		ExpenseDelta:  ExpenseDelta(current, previous),
		BudgetUsed:    BudgetUsedPct(current),
		Limits:        LimitUsage(spend, limits),
	}
}
