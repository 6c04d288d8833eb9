package budget

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a missing, non-numeric or non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput indicates an unknown type or category.
	ErrInvalidInput = errors.New("invalid transaction input")
)

// Type tells income from expense.
type Type string

const (
	Income  Type = "income"
	Expense Type = "expense"
)

func (t Type) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is one entry of the ledger.
type Transaction struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      Type            `json:"type"`
	Category  string          `json:"category"`
	Comment   *string         `json:"comment,omitempty"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t *Transaction) GetID() string { return t.ID }

// Input describes a new transaction. A nil Date means now.
type Input struct {
	Amount   decimal.Decimal
	Type     Type
	Category string
	Comment  string
	Date     *time.Time
}

// ParseAmount reads a user supplied amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Category is an entry of one of the two fixed category tables.
type Category struct {
	ID    string
	Label string
	Color string
}

// ExpenseCategories ends with its fallback entry.
var ExpenseCategories = []Category{
	{ID: "food", Label: "Food", Color: "#f97316"},
	{ID: "transport", Label: "Transport", Color: "#3b82f6"},
	{ID: "shopping", Label: "Shopping", Color: "#a855f7"},
	{ID: "business", Label: "Business/Projects", Color: "#6366f1"},
	{ID: "subs", Label: "Subscriptions", Color: "#06b6d4"},
	{ID: "fun", Label: "Entertainment", Color: "#ec4899"},
	{ID: "other", Label: "Other", Color: "#6b7280"},
}

// IncomeCategories ends with its fallback entry.
var IncomeCategories = []Category{
	{ID: "salary", Label: "Salary", Color: "#22c55e"},
	{ID: "parttime", Label: "Part-time", Color: "#3b82f6"},
	{ID: "business_inc", Label: "Business", Color: "#8b5cf6"},
	{ID: "bonus", Label: "Bonus", Color: "#f59e0b"},
	{ID: "gift", Label: "Gift", Color: "#ec4899"},
	{ID: "other_inc", Label: "Other", Color: "#6b7280"},
}

// Categories returns the table for t.
func Categories(t Type) []Category {
	if t == Income {
		return IncomeCategories
	}
	return ExpenseCategories
}

// LookupCategory finds id in the table for t, falling back to the table's
// last entry. The stored category is not changed.
func LookupCategory(id string, t Type) Category {
	table := Categories(t)
	for _, c := range table {
		if c.ID == id {
			return c
		}
	}
	return table[len(table)-1]
}

// KnownCategory reports whether id is in the table for t.
func KnownCategory(id string, t Type) bool {
	for _, c := range Categories(t) {
		if c.ID == id {
			return true
		}
	}
	return false
}
