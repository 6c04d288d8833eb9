package thought

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/hq/internal/collection"
	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/remote"
)

// Store mirrors the owner's thoughts.
type Store struct {
	remote  remote.Store
	ownerID string
	items   *collection.Collection[*Thought]
	seq     *collection.Sequencer
	track   activity.Tracker
}

// NewStore creates a Store for ownerID. recorder and logger may be nil.
func NewStore(rs remote.Store, ownerID string, recorder activity.Recorder, logger *slog.Logger) *Store {
	return &Store{
		remote:  rs,
		ownerID: ownerID,
		items:   collection.New[*Thought](),
		seq:     collection.NewSequencer(),
		track:   activity.NewTracker(recorder, logger),
	}
}

// Load fetches every thought, pinned first then newest first. On failure
// the current list is kept.
func (s *Store) Load(ctx context.Context) error {
	err := s.items.Load(ctx, func(ctx context.Context) ([]*Thought, error) {
		rows, err := s.remote.Select(ctx, remote.Thoughts, remote.Query{}.
			Where("owner_id", s.ownerID).
			OrderBy("pinned", true).
			OrderBy("created_at", true))
		if err != nil {
			return nil, err
		}
		return remote.DecodeAll[*Thought](rows)
	})
	if err != nil {
		return s.track.Fetch(remote.Thoughts, fmt.Errorf("loading thoughts: %w", err))
	}
	return nil
}

// List returns the current snapshot.
func (s *Store) List() []*Thought {
	return s.items.Snapshot()
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	return s.items.Loading()
}

// Subscribe registers fn for every new snapshot.
func (s *Store) Subscribe(fn func([]*Thought)) (cancel func()) {
	return s.items.Subscribe(fn)
}

// Add creates a thought with tags parsed from content and puts it first.
func (s *Store) Add(ctx context.Context, content string) (*Thought, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	row, err := s.remote.Insert(ctx, remote.Thoughts, remote.Row{
		"owner_id": s.ownerID,
		"content":  content,
		"tags":     ParseTags(content),
		"pinned":   false,
	})
	if err != nil {
		return nil, s.track.Write(ctx, remote.Thoughts, activity.OpInsert, "", fmt.Errorf("creating thought: %w", err))
	}

	t, err := remote.Decode[*Thought](row)
	if err != nil {
		return nil, fmt.Errorf("creating thought: %w", err)
	}
	_ = s.track.Write(ctx, remote.Thoughts, activity.OpInsert, t.ID, nil)

	s.items.Patch(collection.Prepend(t))
	return t, nil
}

// Remove deletes a thought. The local copy is dropped even if the remote
// delete fails.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.seq.Do(id, func() error {
		err := s.remote.Delete(ctx, remote.Thoughts, id)
		s.items.Patch(collection.RemoveByID[*Thought](id))
		if err != nil {
			err = fmt.Errorf("deleting thought: %w", err)
		}
		return s.track.Write(ctx, remote.Thoughts, activity.OpDelete, id, err)
	})
}

// TogglePin flips pinned from currentPinned and re-sorts the list.
func (s *Store) TogglePin(ctx context.Context, id string, currentPinned bool) error {
	return s.seq.Do(id, func() error {
		pinned := !currentPinned
		err := s.remote.Update(ctx, remote.Thoughts, id, remote.Row{"pinned": pinned})
		s.items.Patch(collection.Chain(
			collection.ReplaceByID(id, func(t *Thought) *Thought {
				cp := *t
				cp.Pinned = pinned
				return &cp
			}),
			collection.Sort(Less),
		))
		if err != nil {
			err = fmt.Errorf("updating thought: %w", err)
		}
		return s.track.Write(ctx, remote.Thoughts, activity.OpUpdate, id, err)
	})
}

// Filter applies Filter to the current snapshot.
func (s *Store) Filter(window Window, tag string, now time.Time) []*Thought {
	return Filter(s.List(), window, tag, now)
}

// Tags lists distinct tags across the current snapshot.
func (s *Store) Tags() []string {
	return AllTags(s.List())
}
