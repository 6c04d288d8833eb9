// Package postgres implements remote.Store on PostgreSQL through GORM.
//
// Rows are read and written as maps rather than models so one Store serves
// every collection in the schema. Column names are checked against
// remote.Table before they reach SQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Schema mirrors the SQLite schema with native Postgres types.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS thoughts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		tags JSONB NOT NULL DEFAULT '[]',
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_owner_thoughts ON thoughts(owner_id)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		deadline TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'frozen', 'done')),
		color TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_owner_projects ON projects(owner_id)`,
	`CREATE TABLE IF NOT EXISTS project_stages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in_progress', 'done')),
		"order" INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		stage_id TEXT REFERENCES project_stages(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		deadline TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_notes (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_links (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		amount NUMERIC(14, 2) NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
		category TEXT NOT NULL,
		comment TEXT,
		date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_owner_transactions ON transactions(owner_id)`,
	`CREATE TABLE IF NOT EXISTS budget_limits (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		category TEXT NOT NULL,
		amount NUMERIC(14, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (owner_id, category)
	)`,
}

// Store implements remote.Store on a GORM connection.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to PostgreSQL using a libpq-style DSN.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an existing GORM handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Select(ctx context.Context, collection string, q remote.Query) ([]remote.Row, error) {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if err := tbl.ValidateQuery(q); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Table(tbl.Name).Select(columnNames(tbl))
	for _, f := range q.Filters {
		v, err := tbl.NormalizeValue(f.Field, f.Value)
		if err != nil {
			return nil, err
		}
		if v == nil {
			tx = tx.Where(quote(f.Field) + " IS NULL")
			continue
		}
		tx = tx.Where(quote(f.Field)+" = ?", pgValue(v))
	}
	for _, o := range q.Orders {
		dir := " ASC"
		if o.Descending {
			dir = " DESC"
		}
		tx = tx.Order(quote(o.Field) + dir)
	}

	rows, err := s.find(tx, tbl)
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

	ids := make([]string, 0, len(parents))
	for _, p := range parents {
		if id, ok := p["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	grouped := make(map[string][]remote.Row, len(ids))
	if len(ids) > 0 {
		tx := s.db.WithContext(ctx).Table(child.Name).
			Select(columnNames(child)).
			Where(quote(exp.ForeignKey)+" IN ?", ids).
			Order(`"created_at" ASC`)
		children, err := s.find(tx, child)
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

func (s *Store) Insert(ctx context.Context, collection string, row remote.Row) (remote.Row, error) {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return nil, err
	}
	normalized, err := tbl.Normalize(tbl.Stamp(row, s.now()))
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Table(tbl.Name).Create(pgValues(normalized)).Error; err != nil {
		return nil, mapError("insert into "+collection, err)
	}
	return s.getBy(ctx, tbl, []string{"id"}, normalized)
}

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

	res := s.db.WithContext(ctx).Table(tbl.Name).Where("id = ?", id).Updates(pgValues(normalized))
	if res.Error != nil {
		return mapError("update "+collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tbl, err := remote.Lookup(collection)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(tbl.Name)), id)
	if res.Error != nil {
		return mapError("delete from "+collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

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

	conflict := make([]clause.Column, 0, len(onConflict))
	for _, key := range onConflict {
		conflict = append(conflict, clause.Column{Name: key})
	}
	var updates []string
	for _, col := range tbl.Columns {
		if _, ok := normalized[col.Name]; !ok || col.Name == "id" || col.Name == "created_at" {
			continue
		}
		skip := false
		for _, key := range onConflict {
			if key == col.Name {
				skip = true
			}
		}
		if !skip {
			updates = append(updates, col.Name)
		}
	}

	onConflictClause := clause.OnConflict{Columns: conflict, DoNothing: len(updates) == 0}
	if len(updates) > 0 {
		onConflictClause.DoUpdates = clause.AssignmentColumns(updates)
	}

	err = s.db.WithContext(ctx).Table(tbl.Name).Clauses(onConflictClause).Create(pgValues(normalized)).Error
	if err != nil {
		return nil, mapError("upsert into "+collection, err)
	}
	return s.getBy(ctx, tbl, onConflict, normalized)
}

func (s *Store) getBy(ctx context.Context, tbl remote.Table, keys []string, values remote.Row) (remote.Row, error) {
	tx := s.db.WithContext(ctx).Table(tbl.Name).Select(columnNames(tbl))
	for _, k := range keys {
		tx = tx.Where(quote(k)+" = ?", pgValue(values[k]))
	}
	rows, err := s.find(tx.Limit(1), tbl)
	if err != nil {
		return nil, fmt.Errorf("failed to read back %s: %w", tbl.Name, err)
	}
	if len(rows) == 0 {
		return nil, remote.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) find(tx *gorm.DB, tbl remote.Table) ([]remote.Row, error) {
	var raw []map[string]any
	if err := tx.Find(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]remote.Row, 0, len(raw))
	for _, r := range raw {
		row, err := tbl.Restore(remote.Row(r))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func columnNames(tbl remote.Table) []string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		cols = append(cols, quote(c.Name))
	}
	return cols
}

func pgValues(row remote.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = pgValue(v)
	}
	return out
}

func pgValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case json.RawMessage:
		return string(x)
	default:
		return v
	}
}

func mapError(op string, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "SQLSTATE 23505"):
		return fmt.Errorf("failed to %s: %w", op, remote.ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated) || strings.Contains(msg, "SQLSTATE 23503"):
		return fmt.Errorf("failed to %s: %w", op, remote.ErrForeignKeyViolation)
	case strings.Contains(msg, "SQLSTATE 23514") || strings.Contains(msg, "SQLSTATE 23502"):
		return fmt.Errorf("failed to %s: %w: %v", op, remote.ErrInvalidInput, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func quote(ident string) string {
	return `"` + ident + `"`
}
