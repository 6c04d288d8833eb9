package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/shopspring/decimal"
)

// timeFormat is fixed width so stored times compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store implements remote.Store for SQLite
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Select returns rows matching the query, with requested child collections attached
func (s *Store) Select(ctx context.Context, collection string, q remote.Query) ([]remote.Row, error) {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if err := tbl.ValidateQuery(q); err != nil {
		return nil, err
	}

	where, args, err := whereClause(tbl, q.Filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s%s",
		columnList(tbl), quote(tbl.Name), where, orderClause(q.Orders))

	rows, err := s.query(ctx, tbl, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", collection, err)
	}

	for _, exp := range q.Expand {
		if err := s.expand(ctx, rows, exp); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func (s *Store) expand(ctx context.Context, parents []remote.Row, exp remote.Expand) error {
	child, err := remote.Lookup(exp.Collection)
	if err != nil {
		return err
	}

	ids := make([]any, 0, len(parents))
	for _, p := range parents {
		if id, ok := p["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	grouped := make(map[string][]remote.Row, len(ids))
	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
			columnList(child), quote(child.Name), quote(exp.ForeignKey), placeholders, defaultOrder(child))

		children, err := s.query(ctx, child, query, ids...)
		if err != nil {
			return fmt.Errorf("failed to expand %s: %w", exp.Collection, err)
		}
		for _, c := range children {
			key, _ := c[exp.ForeignKey].(string)
			grouped[key] = append(grouped[key], c)
		}
	}

	for _, p := range parents {
		id, _ := p["id"].(string)
		kids := grouped[id]
		if kids == nil {
			kids = []remote.Row{}
		}
		p[exp.As] = kids
	}
	return nil
}

// Insert stores a new row and returns it as persisted
func (s *Store) Insert(ctx context.Context, collection string, row remote.Row) (remote.Row, error) {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}

	normalized, err := tbl.Normalize(tbl.Stamp(row, s.now()))
	if err != nil {
		return nil, err
	}

	cols, placeholders, args := insertParts(tbl, normalized)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(tbl.Name), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapWriteError("insert into "+collection, err)
	}

	return s.getBy(ctx, tbl, []string{"id"}, normalized)
}

// Update sets fields on the row with the given id
func (s *Store) Update(ctx context.Context, collection, id string, fields remote.Row) error {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return err
	}
	if _, ok := fields["id"]; ok {
		return fmt.Errorf("%w: id is immutable", remote.ErrInvalidInput)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", remote.ErrInvalidInput)
	}

	normalized, err := tbl.Normalize(fields)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	for _, col := range tbl.Columns {
		v, ok := normalized[col.Name]
		if !ok {
			continue
		}
		sets = append(sets, quote(col.Name)+" = ?")
		args = append(args, sqlValue(v))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quote(tbl.Name), strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError("update "+collection, err)
	}
	return requireAffected(result)
}

// Delete removes the row with the given id
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(tbl.Name)), id)
	if err != nil {
		return mapWriteError("delete from "+collection, err)
	}
	return requireAffected(result)
}

// Upsert inserts a row or updates the existing row sharing the onConflict key
func (s *Store) Upsert(ctx context.Context, collection string, row remote.Row, onConflict []string) (remote.Row, error) {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if !tbl.HasUnique(onConflict) {
		return nil, fmt.Errorf("%w: %v is not a unique key of %s", remote.ErrInvalidInput, onConflict, collection)
	}

	normalized, err := tbl.Normalize(tbl.Stamp(row, s.now()))
	if err != nil {
		return nil, err
	}
	for _, key := range onConflict {
		if normalized[key] == nil {
			return nil, fmt.Errorf("%w: upsert key %s is empty", remote.ErrInvalidInput, key)
		}
	}

	cols, placeholders, args := insertParts(tbl, normalized)

	conflict := make([]string, 0, len(onConflict))
	for _, key := range onConflict {
		conflict = append(conflict, quote(key))
	}

	var updates []string
	for _, col := range tbl.Columns {
		if _, ok := normalized[col.Name]; !ok || col.Name == "id" || col.Name == "created_at" || contains(onConflict, col.Name) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(col.Name), quote(col.Name)))
	}
	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) %s",
		quote(tbl.Name), strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(conflict, ", "), action)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapWriteError("upsert into "+collection, err)
	}

	return s.getBy(ctx, tbl, onConflict, normalized)
}

func (s *Store) getBy(ctx context.Context, tbl remote.Table, keys []string, values remote.Row) (remote.Row, error) {
	filters := make([]remote.Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, remote.Filter{Field: k, Value: values[k]})
	}
	where, args, err := whereClause(tbl, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, tbl, fmt.Sprintf("SELECT %s FROM %s%s", columnList(tbl), quote(tbl.Name), where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read back %s: %w", tbl.Name, err)
	}
	if len(rows) == 0 {
		return nil, remote.ErrNotFound
	}
	return rows[0], nil
}

// query runs a select and fully drains the result before returning, so
// callers can issue follow-up queries on a single connection.
func (s *Store) query(ctx context.Context, tbl remote.Table, query string, args ...any) ([]remote.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []remote.Row{}
	for rows.Next() {
		values := make([]any, len(tbl.Columns))
		dest := make([]any, len(tbl.Columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", tbl.Name, err)
		}

		raw := make(remote.Row, len(tbl.Columns))
		for i, col := range tbl.Columns {
			raw[col.Name] = values[i]
		}
		row, err := tbl.Restore(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", tbl.Name, err)
	}
	return out, nil
}

func whereClause(tbl remote.Table, filters []remote.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		v, err := tbl.NormalizeValue(f.Field, f.Value)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			conds = append(conds, quote(f.Field)+" IS NULL")
			continue
		}
		conds = append(conds, quote(f.Field)+" = ?")
		args = append(args, sqlValue(v))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func orderClause(orders []remote.Order) string {
	parts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, quote(o.Field)+" "+dir)
	}
	// rowid keeps equal keys in insertion order
	parts = append(parts, "rowid ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func defaultOrder(tbl remote.Table) string {
	if tbl.Has("created_at") {
		return `"created_at" ASC, rowid ASC`
	}
	return "rowid ASC"
}

func insertParts(tbl remote.Table, row remote.Row) ([]string, []string, []any) {
	var cols, placeholders []string
	var args []any
	for _, col := range tbl.Columns {
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		cols = append(cols, quote(col.Name))
		placeholders = append(placeholders, "?")
		args = append(args, sqlValue(v))
	}
	return cols, placeholders, args
}

func columnList(tbl remote.Table) string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		cols = append(cols, quote(c.Name))
	}
	return strings.Join(cols, ", ")
}

// sqlValue converts a normalized value into what the driver stores.
func sqlValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(timeFormat)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case decimal.Decimal:
		return x.String()
	case json.RawMessage:
		return string(x)
	default:
		return v
	}
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
