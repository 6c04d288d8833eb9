package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collection names.
const (
	Thoughts      = "thoughts"
	Projects      = "projects"
	ProjectStages = "project_stages"
	ProjectTasks  = "project_tasks"
	ProjectNotes  = "project_notes"
	ProjectLinks  = "project_links"
	Transactions  = "transactions"
	BudgetLimits  = "budget_limits"
)

// Kind is the storage kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindTime
	KindJSON
	KindDecimal
)

// Column describes one field of a collection.
type Column struct {
	Name string
	Kind Kind
}

// Parent links a child collection to the owner-scoped row it belongs to.
type Parent struct {
	Field      string
	Collection string
}

// Table describes a collection: its columns, unique keys and whether rows
// carry an owner_id. Rows of a table with a Parent are owned through it.
type Table struct {
	Name        string
	Columns     []Column
	Unique      [][]string
	OwnerScoped bool
	Parent      *Parent
}

var projectParent = &Parent{Field: "project_id", Collection: Projects}

var tables = map[string]Table{
	Thoughts: {
		Name: Thoughts,
		Columns: []Column{
			{"id", KindText},
			{"owner_id", KindText},
			{"content", KindText},
			{"tags", KindJSON},
			{"pinned", KindBool},
			{"created_at", KindTime},
		},
		OwnerScoped: true,
	},
	Projects: {
		Name: Projects,
		Columns: []Column{
			{"id", KindText},
			{"owner_id", KindText},
			{"name", KindText},
			{"description", KindText},
			{"deadline", KindTime},
			{"status", KindText},
			{"color", KindText},
			{"created_at", KindTime},
		},
		OwnerScoped: true,
	},
	ProjectStages: {
		Name: ProjectStages,
		Columns: []Column{
			{"id", KindText},
			{"project_id", KindText},
			{"name", KindText},
			{"status", KindText},
			{"order", KindInt},
			{"created_at", KindTime},
		},
		Parent: projectParent,
	},
	ProjectTasks: {
		Name: ProjectTasks,
		Columns: []Column{
			{"id", KindText},
			{"project_id", KindText},
			{"stage_id", KindText},
			{"title", KindText},
			{"done", KindBool},
			{"deadline", KindTime},
			{"created_at", KindTime},
		},
		Parent: projectParent,
	},
	ProjectNotes: {
		Name: ProjectNotes,
		Columns: []Column{
			{"id", KindText},
			{"project_id", KindText},
			{"content", KindText},
			{"created_at", KindTime},
		},
		Parent: projectParent,
	},
	ProjectLinks: {
		Name: ProjectLinks,
		Columns: []Column{
			{"id", KindText},
			{"project_id", KindText},
			{"title", KindText},
			{"url", KindText},
			{"created_at", KindTime},
		},
		Parent: projectParent,
	},
	Transactions: {
		Name: Transactions,
		Columns: []Column{
			{"id", KindText},
			{"owner_id", KindText},
			{"amount", KindDecimal},
			{"type", KindText},
			{"category", KindText},
			{"comment", KindText},
			{"date", KindTime},
			{"created_at", KindTime},
		},
		OwnerScoped: true,
	},
	BudgetLimits: {
		Name: BudgetLimits,
		Columns: []Column{
			{"id", KindText},
			{"owner_id", KindText},
			{"category", KindText},
			{"amount", KindDecimal},
			{"created_at", KindTime},
		},
		Unique:      [][]string{{"owner_id", "category"}},
		OwnerScoped: true,
	},
}

// Lookup returns the table definition for a collection.
func Lookup(collection string) (Table, error) {
	t, ok := tables[collection]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return t, nil
}

// Collections lists every known collection name in creation order.
func Collections() []string {
	return []string{Thoughts, Projects, ProjectStages, ProjectTasks, ProjectNotes, ProjectLinks, Transactions, BudgetLimits}
}

// Column returns the column definition by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has reports whether the table has a column.
func (t Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// HasUnique reports whether cols is one of the table's unique keys.
func (t Table) HasUnique(cols []string) bool {
	for _, key := range t.Unique {
		if len(key) != len(cols) {
			continue
		}
		match := true
		for i := range key {
			if key[i] != cols[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ValidateQuery checks that every field a query references exists.
func (t Table) ValidateQuery(q Query) error {
	for _, f := range q.Filters {
		if !t.Has(f.Field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name, f.Field)
		}
	}
	for _, o := range q.Orders {
		if !t.Has(o.Field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name, o.Field)
		}
	}
	for _, e := range q.Expand {
		child, err := Lookup(e.Collection)
		if err != nil {
			return err
		}
		if !child.Has(e.ForeignKey) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, child.Name, e.ForeignKey)
		}
		if strings.TrimSpace(e.As) == "" {
			return fmt.Errorf("%w: expansion of %s needs a name", ErrInvalidInput, e.Collection)
		}
	}
	return nil
}

// Stamp returns a copy of row with id and created_at filled in when the
// table has those columns and the caller left them empty.
func (t Table) Stamp(row Row, now time.Time) Row {
	out := make(Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	if t.Has("id") {
		if id, _ := out["id"].(string); id == "" {
			out["id"] = uuid.NewString()
		}
	}
	if t.Has("created_at") {
		if v, ok := out["created_at"]; !ok || v == nil {
			out["created_at"] = now.UTC()
		}
	}
	return out
}

// Normalize coerces every value of row to the canonical Go type of its
// column: string, bool, int64, time.Time, decimal.Decimal or
// json.RawMessage. Nil stays nil.
func (t Table) Normalize(row Row) (Row, error) {
	out := make(Row, len(row))
	for k, v := range row {
		col, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name, k)
		}
		nv, err := normalize(col.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidInput, t.Name, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// NormalizeValue coerces a filter value for the named column.
func (t Table) NormalizeValue(field string, v any) (any, error) {
	col, ok := t.Column(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name, field)
	}
	nv, err := normalize(col.Kind, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidInput, t.Name, field, err)
	}
	return nv, nil
}

func normalize(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case *string:
			if x == nil {
				return nil, nil
			}
			return *x, nil
		case []byte:
			return string(x), nil
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case int:
			return x != 0, nil
		case float64:
			return x != 0, nil
		}
	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case json.Number:
			return x.Int64()
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case *time.Time:
			if x == nil {
				return nil, nil
			}
			return x.UTC(), nil
		case string:
			return parseTime(x)
		case []byte:
			return parseTime(string(x))
		}
	case KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case string:
			return decimal.NewFromString(x)
		case []byte:
			return decimal.NewFromString(string(x))
		case float64:
			return decimal.NewFromFloat(x), nil
		case int64:
			return decimal.NewFromInt(x), nil
		case int:
			return decimal.NewFromInt(int64(x)), nil
		case json.Number:
			return decimal.NewFromString(x.String())
		}
	case KindJSON:
		switch x := v.(type) {
		case json.RawMessage:
			return x, nil
		case string:
			if !json.Valid([]byte(x)) {
				return nil, fmt.Errorf("not json")
			}
			return json.RawMessage(x), nil
		case []byte:
			if !json.Valid(x) {
				return nil, fmt.Errorf("not json")
			}
			return json.RawMessage(x), nil
		default:
			data, err := json.Marshal(x)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(data), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// Restore converts a raw value read back from a backend into the
// JSON-friendly form rows carry: times as time.Time, decimals as strings,
// JSON columns decoded.
func (t Table) Restore(row Row) (Row, error) {
	out := make(Row, len(row))
	for k, v := range row {
		col, ok := t.Column(k)
		if !ok {
			out[k] = v
			continue
		}
		nv, err := normalize(col.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("restoring %s.%s: %w", t.Name, k, err)
		}
		switch x := nv.(type) {
		case decimal.Decimal:
			nv = x.String()
		case json.RawMessage:
			var decoded any
			if err := json.Unmarshal(x, &decoded); err != nil {
				return nil, fmt.Errorf("restoring %s.%s: %w", t.Name, k, err)
			}
			nv = decoded
		}
		out[k] = nv
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
