package collection

import "sync"

// Sequencer runs functions one at a time per key. Calls with different keys
// do not wait on each other.
type Sequencer struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSequencer creates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{locks: make(map[string]*keyLock)}
}

// Do runs fn while no other Do for key is running. Waiting calls for the
// same key are not released in any particular order.
func (s *Sequencer) Do(key string, fn func() error) error {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*keyLock)
	}
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}()

	return fn()
}
