package budget

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func tx(id string, typ Type, category string, amount int64, date time.Time) *Transaction {
	return &Transaction{
		ID:       id,
		Amount:   decimal.NewFromInt(amount),
		Type:     typ,
		Category: category,
		Date:     date,
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func txIDs(txs []*Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.ID)
	}
	return out
}

func TestComputeMonthStats(t *testing.T) {
	txs := []*Transaction{
		tx("feb", Expense, "food", 50, day(2024, time.February, 28)),
		tx("food", Expense, "food", 1000, day(2024, time.March, 5)),
		tx("salary", Income, "salary", 3000, day(2024, time.March, 1)),
		tx("apr", Income, "salary", 9999, day(2024, time.April, 1)),
	}

	stats := ComputeMonthStats(txs, 2024, 2, time.UTC)
	require.Equal(t, "3000", stats.Income.String())
	require.Equal(t, "1000", stats.Expense.String())
	require.Equal(t, "2000", stats.Balance.String())
	require.Equal(t, []string{"food", "salary"}, txIDs(stats.Transactions))
}

func TestComputeMonthStats_EmptyMonth(t *testing.T) {
	stats := ComputeMonthStats([]*Transaction{
		tx("a", Expense, "food", 10, day(2024, time.March, 5)),
	}, 2023, 6, time.UTC)

	require.True(t, stats.Income.IsZero())
	require.True(t, stats.Expense.IsZero())
	require.True(t, stats.Balance.IsZero())
	require.NotNil(t, stats.Transactions)
	require.Empty(t, stats.Transactions)
}

func TestMonthTransactions_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2024-03-31 20:00 UTC is already April 1st in Tokyo.
	late := &Transaction{ID: "late", Type: Expense, Amount: decimal.NewFromInt(1),
		Date: time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC)}

	require.Len(t, MonthTransactions([]*Transaction{late}, 2024, 2, time.UTC), 1)
	require.Empty(t, MonthTransactions([]*Transaction{late}, 2024, 2, tokyo))
	require.Len(t, MonthTransactions([]*Transaction{late}, 2024, 3, tokyo), 1)
}

func TestAggregationInvariants(t *testing.T) {
	cats := []string{"food", "transport", "fun", "mystery"}
	var txs []*Transaction
	for i := 0; i < 40; i++ {
		typ := Expense
		if i%3 == 0 {
			typ = Income
		}
		txs = append(txs, tx(fmt.Sprint(i), typ, cats[i%len(cats)], int64(17*i+3), day(2024, time.May, 1+i%28)))
	}

	stats := Totals(txs)
	require.True(t, stats.Income.Sub(stats.Expense).Equal(stats.Balance))

	sum := decimal.Zero
	for _, v := range CategorySpend(txs) {
		sum = sum.Add(v)
	}
	require.True(t, sum.Equal(stats.Expense))

	pct := BudgetUsedPct(stats)
	require.GreaterOrEqual(t, pct, 0.0)
	require.LessOrEqual(t, pct, 100.0)

	daily := decimal.Zero
	for _, d := range DailySeries(txs, time.UTC) {
		daily = daily.Add(d.Expense)
	}
	require.True(t, daily.Equal(stats.Expense))
}

func TestCategorySpend_ExpenseOnly(t *testing.T) {
	spend := CategorySpend([]*Transaction{
		tx("a", Expense, "food", 10, day(2024, time.March, 1)),
		tx("b", Expense, "food", 15, day(2024, time.March, 2)),
		tx("c", Income, "salary", 100, day(2024, time.March, 2)),
	})
	require.Len(t, spend, 1)
	require.Equal(t, "25", spend["food"].String())
}

func TestBudgetUsedPct(t *testing.T) {
	require.Equal(t, 0.0, BudgetUsedPct(MonthStats{Expense: decimal.NewFromInt(500)}))
	require.Equal(t, 25.0, BudgetUsedPct(MonthStats{Income: decimal.NewFromInt(400), Expense: decimal.NewFromInt(100)}))
	require.Equal(t, 100.0, BudgetUsedPct(MonthStats{Income: decimal.NewFromInt(100), Expense: decimal.NewFromInt(400)}))
	require.InDelta(t, 33.3333, BudgetUsedPct(MonthStats{Income: decimal.NewFromInt(3), Expense: decimal.NewFromInt(1)}), 0.0001)
}

func TestLimitUsage_WarnUsesUnroundedRatio(t *testing.T) {
	usage := LimitUsage(
		map[string]decimal.Decimal{"food": decimal.RequireFromString("79.996"), "fun": decimal.NewFromInt(80)},
		map[string]decimal.Decimal{"food": decimal.NewFromInt(100), "fun": decimal.NewFromInt(100)},
	)
	require.Len(t, usage, 2)
	require.Equal(t, "food", usage[0].Category)
	require.False(t, usage[0].Warn)
	require.InDelta(t, 79.996, usage[0].Pct, 1e-9)
	require.Equal(t, "fun", usage[1].Category)
	require.True(t, usage[1].Warn)
}

func TestDailySeries(t *testing.T) {
	series := DailySeries([]*Transaction{
		tx("a", Expense, "food", 10, day(2024, time.March, 9)),
		tx("b", Income, "salary", 100, day(2024, time.March, 1)),
		tx("c", Expense, "fun", 5, day(2024, time.March, 9)),
	}, time.UTC)

	require.Len(t, series, 2)
	require.Equal(t, 1, series[0].Day)
	require.Equal(t, "100", series[0].Income.String())
	require.Equal(t, 9, series[1].Day)
	require.Equal(t, "15", series[1].Expense.String())
	require.True(t, series[1].Income.IsZero())
}

func TestTopExpenses_StableDescending(t *testing.T) {
	txs := []*Transaction{
		tx("small", Expense, "food", 5, day(2024, time.March, 1)),
		tx("big1", Expense, "food", 50, day(2024, time.March, 2)),
		tx("income", Income, "salary", 500, day(2024, time.March, 3)),
		tx("mid", Expense, "fun", 20, day(2024, time.March, 4)),
		tx("big2", Expense, "fun", 50, day(2024, time.March, 5)),
	}

	require.Equal(t, []string{"big1", "big2", "mid"}, txIDs(TopExpenses(txs, 3)))
	require.Equal(t, []string{"big1", "big2", "mid", "small"}, txIDs(TopExpenses(txs, 10)))
	require.Empty(t, TopExpenses(txs, 0))
}

func TestPrevNextMonth(t *testing.T) {
	y, m := PrevMonth(2024, 0)
	require.Equal(t, []int{2023, 11}, []int{y, m})
	y, m = PrevMonth(2024, 5)
	require.Equal(t, []int{2024, 4}, []int{y, m})
	y, m = NextMonth(2023, 11)
	require.Equal(t, []int{2024, 0}, []int{y, m})
	y, m = NextMonth(2024, 2)
	require.Equal(t, []int{2024, 3}, []int{y, m})
}

func TestExpenseDelta_AcrossYear(t *testing.T) {
	txs := []*Transaction{
		tx("dec", Expense, "food", 300, day(2023, time.December, 20)),
		tx("jan", Expense, "food", 120, day(2024, time.January, 3)),
	}
	py, pm := PrevMonth(2024, 0)
	delta := ExpenseDelta(ComputeMonthStats(txs, 2024, 0, time.UTC), ComputeMonthStats(txs, py, pm, time.UTC))
	require.Equal(t, "-180", delta.String())
}

func TestLimitUsage(t *testing.T) {
	spend := map[string]decimal.Decimal{
		"food":      decimal.NewFromInt(6000),
		"transport": decimal.NewFromInt(850),
		"fun":       decimal.NewFromInt(100),
		"shopping":  decimal.NewFromInt(300),
	}
	limits := map[string]decimal.Decimal{
		"food":      decimal.NewFromInt(5000),
		"transport": decimal.NewFromInt(1000),
		"fun":       decimal.NewFromInt(1000),
		"subs":      decimal.NewFromInt(200),
	}

	usage := LimitUsage(spend, limits)
	require.Len(t, usage, 3)

	food := usage[0]
	require.Equal(t, "food", food.Category)
	require.True(t, food.Over)
	require.False(t, food.Warn)
	require.Equal(t, 100.0, food.Pct)

	transport := usage[1]
	require.Equal(t, "transport", transport.Category)
	require.False(t, transport.Over)
	require.True(t, transport.Warn)
	require.Equal(t, 85.0, transport.Pct)

	fun := usage[2]
	require.Equal(t, "fun", fun.Category)
	require.False(t, fun.Over)
	require.False(t, fun.Warn)
	require.Equal(t, 10.0, fun.Pct)
}

func TestLookupCategory_FallsBack(t *testing.T) {
	require.Equal(t, "Food", LookupCategory("food", Expense).Label)
	require.Equal(t, "other", LookupCategory("nope", Expense).ID)
	require.Equal(t, "other_inc", LookupCategory("food", Income).ID)
	require.True(t, KnownCategory("bonus", Income))
	require.False(t, KnownCategory("bonus", Expense))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 12.50 ")
	require.NoError(t, err)
	require.Equal(t, "12.5", d.String())

	_, err = ParseAmount("twelve")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseAmount("")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBuildReport(t *testing.T) {
	txs := []*Transaction{
		tx("a", Expense, "food", 6000, day(2024, time.March, 5)),
		tx("b", Income, "salary", 10000, day(2024, time.March, 1)),
		tx("c", Expense, "food", 1000, day(2024, time.February, 10)),
	}
	r := BuildReport(txs, map[string]decimal.Decimal{"food": decimal.NewFromInt(5000)}, 2024, 2, 0, time.UTC)

	require.Equal(t, "4000", r.Stats.Balance.String())
	require.Equal(t, "5000", r.ExpenseDelta.String())
	require.Equal(t, 60.0, r.BudgetUsed)
	require.Len(t, r.Daily, 2)
	require.Equal(t, []string{"a"}, txIDs(r.TopExpenses))
	require.Len(t, r.Limits, 1)
	require.True(t, r.Limits[0].Over)
}
