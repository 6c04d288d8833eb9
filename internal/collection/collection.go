// Package collection holds the in-memory mirror of a remote collection.
//
// A Collection keeps the current list as an immutable snapshot. Every change
// builds a new slice and swaps it in; slices handed out by Snapshot are never
// written to again, so readers can keep them without copying. Subscribers
// are called with each new snapshot.
package collection

import (
	"context"
	"sort"
	"sync"
)

// Identified is implemented by items that carry a record id.
type Identified interface {
	GetID() string
}

// PatchFunc derives the next snapshot from the current one. It must not
// modify its argument.
type PatchFunc[T any] func([]T) []T

// Collection is a locally mirrored list of records.
type Collection[T Identified] struct {
	mu      sync.RWMutex
	items   []T
	loading bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]T)
}

// New creates an empty collection.
func New[T Identified]() *Collection[T] {
	return &Collection[T]{items: []T{}, subs: make(map[int]func([]T))}
}

// Snapshot returns the current items. Treat the result as read-only.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Loading reports whether a Load is in flight.
func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Find returns the item with the given id.
func (c *Collection[T]) Find(id string) (T, bool) {
	for _, item := range c.Snapshot() {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Subscribe registers fn to receive every new snapshot. The returned func
// removes the subscription.
func (c *Collection[T]) Subscribe(fn func([]T)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Set replaces the snapshot wholesale.
func (c *Collection[T]) Set(items []T) {
	if items == nil {
		items = []T{}
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.notify(items)
}

// Patch applies fn to the current snapshot under the write lock and
// publishes the result.
func (c *Collection[T]) Patch(fn PatchFunc[T]) {
	c.mu.Lock()
	next := fn(c.items)
	if next == nil {
		next = []T{}
	}
	c.items = next
	c.mu.Unlock()
	c.notify(next)
}

// Load fetches the full list and replaces the snapshot. On error the
// previous snapshot is kept. The loading flag is cleared either way.
func (c *Collection[T]) Load(ctx context.Context, fetch func(context.Context) ([]T, error)) error {
	c.setLoading(true)
	defer c.setLoading(false)

	items, err := fetch(ctx)
	if err != nil {
		return err
	}
	c.Set(items)
	return nil
}

func (c *Collection[T]) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func (c *Collection[T]) notify(items []T) {
	c.subMu.Lock()
	fns := make([]func([]T), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

// Prepend puts item at the front.
func Prepend[T any](item T) PatchFunc[T] {
	return func(items []T) []T {
		out := make([]T, 0, len(items)+1)
		out = append(out, item)
		return append(out, items...)
	}
}

// Append puts item at the end.
func Append[T any](item T) PatchFunc[T] {
	return func(items []T) []T {
		out := make([]T, 0, len(items)+1)
		out = append(out, items...)
		return append(out, item)
	}
}

// ReplaceByID swaps the item with the given id for fn(item). Other entries
// are carried over unchanged. A missing id leaves the list as is.
func ReplaceByID[T Identified](id string, fn func(T) T) PatchFunc[T] {
	return func(items []T) []T {
		out := make([]T, len(items))
		copy(out, items)
		for i, item := range out {
			if item.GetID() == id {
				out[i] = fn(item)
			}
		}
		return out
	}
}

// RemoveByID drops every item with the given id.
func RemoveByID[T Identified](id string) PatchFunc[T] {
	return func(items []T) []T {
		out := make([]T, 0, len(items))
		for _, item := range items {
			if item.GetID() != id {
				out = append(out, item)
			}
		}
		return out
	}
}

// Sort orders a copy of the list with a stable sort.
func Sort[T any](less func(a, b T) bool) PatchFunc[T] {
	return func(items []T) []T {
		out := make([]T, len(items))
		copy(out, items)
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
		return out
	}
}

// Chain applies patches left to right as one replacement.
func Chain[T any](patches ...PatchFunc[T]) PatchFunc[T] {
	return func(items []T) []T {
		for _, p := range patches {
			items = p(items)
		}
		return items
	}
}
