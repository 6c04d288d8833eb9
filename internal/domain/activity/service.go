package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 200

// Service keeps the most recent write outcomes in memory.
type Service struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	nextID   int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a journal holding up to capacity entries. A capacity
// of zero or less means DefaultCapacity.
func NewService(capacity int, logger *slog.Logger) *Service {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Service{capacity: capacity, logger: logger, now: time.Now}
}

// Log appends an entry, dropping the oldest once full.
func (s *Service) Log(_ context.Context, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	if len(s.entries) == s.capacity {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, entry)

	if s.logger != nil {
		s.logger.Debug("write recorded", "collection", entry.Collection, "op", entry.Op, "id", entry.RecordID, "failed", entry.Failed())
	}
}

// Recent lists entries newest first.
func (s *Service) Recent(opts ListOptions) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.FailedOnly && !e.Failed() {
			continue
		}
		if opts.Collection != "" && e.Collection != opts.Collection {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}

// List is Recent behind the Journal interface.
func (s *Service) List(_ context.Context, opts ListOptions) ([]Entry, error) {
	return s.Recent(opts), nil
}
