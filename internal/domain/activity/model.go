package activity

import "time"

// Op is the kind of remote write an entry records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpUpsert Op = "upsert"
)

// Entry records the outcome of one remote write made by a store.
type Entry struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Op         Op        `json:"op"`
	RecordID   string    `json:"record_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Failed reports whether the write was rejected.
func (e Entry) Failed() bool {
	return e.Error != ""
}
