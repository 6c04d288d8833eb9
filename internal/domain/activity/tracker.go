package activity

import (
	"context"
	"log/slog"
)

// Tracker reports remote write outcomes to a logger and an optional
// Recorder. The zero value discards everything.
type Tracker struct {
	Recorder Recorder
	Logger   *slog.Logger
}

// NewTracker creates a Tracker. Either argument may be nil.
func NewTracker(recorder Recorder, logger *slog.Logger) Tracker {
	return Tracker{Recorder: recorder, Logger: logger}
}

// Write records one write and returns err unchanged.
func (t Tracker) Write(ctx context.Context, collection string, op Op, id string, err error) error {
	entry := Entry{Collection: collection, Op: op, RecordID: id}
	if err != nil {
		entry.Error = err.Error()
		if t.Logger != nil {
			t.Logger.Warn("remote write failed", "collection", collection, "op", op, "id", id, "error", err)
		}
	}
	if t.Recorder != nil {
		t.Recorder.Log(ctx, entry)
	}
	return err
}

// Fetch logs a failed load and returns err unchanged.
func (t Tracker) Fetch(collection string, err error) error {
	if err != nil && t.Logger != nil {
		t.Logger.Warn("remote fetch failed", "collection", collection, "error", err)
	}
	return err
}
