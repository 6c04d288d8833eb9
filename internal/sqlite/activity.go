package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/domain/activity"
)

// ActivityLog persists the write journal so it survives restarts. It keeps
// at most capacity entries.
type ActivityLog struct {
	db       *DB
	capacity int
	logger   *slog.Logger
	now      func() time.Time
}

// NewActivityLog creates an ActivityLog. A capacity of zero or less means
// activity.DefaultCapacity.
func NewActivityLog(db *DB, capacity int, logger *slog.Logger) *ActivityLog {
	if capacity <= 0 {
		capacity = activity.DefaultCapacity
	}
	return &ActivityLog{db: db, capacity: capacity, logger: logger, now: time.Now}
}

// Log inserts an entry and drops the oldest beyond capacity. Failures are
// logged; the write being journaled has already happened.
func (l *ActivityLog) Log(ctx context.Context, entry activity.Entry) {
	if err := l.insert(ctx, entry); err != nil && l.logger != nil {
		l.logger.Warn("failed to journal write", "collection", entry.Collection, "op", entry.Op, "error", err)
	}
}

func (l *ActivityLog) insert(ctx context.Context, entry activity.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO write_journal (collection, op, record_id, error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.Collection,
		string(entry.Op),
		nullString(entry.RecordID),
		nullString(entry.Error),
		createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`DELETE FROM write_journal WHERE id <= (SELECT MAX(id) FROM write_journal) - ?`, l.capacity)
	if err != nil {
		return fmt.Errorf("failed to trim activity: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (l *ActivityLog) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `SELECT id, collection, op, record_id, error, created_at FROM write_journal`

	var args []any
	var conditions []string
	if opts.Collection != "" {
		conditions = append(conditions, "collection = ?")
		args = append(args, opts.Collection)
	}
	if opts.FailedOnly {
		conditions = append(conditions, "error IS NOT NULL AND error != ''")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []activity.Entry{}
	for rows.Next() {
		var entry activity.Entry
		var op, createdAt string
		var recordID, errText sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Collection, &op, &recordID, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entry.Op = activity.Op(op)
		entry.RecordID = recordID.String
		entry.Error = errText.String
		if entry.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse activity time: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
