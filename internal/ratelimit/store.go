package ratelimit

import (
	"sync"
	"time"
)

// entry is one fixed window: a running count and when the window resets.
type entry struct {
	count int
	reset time.Time
}

// Store holds fixed-window counters keyed by caller-scoped strings.
// Windows reset lazily: the first charge after the reset time starts a
// fresh window.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewStore creates an empty counter store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Take charges weight against the key's current window, starting a new
// window when none is active or the active one has expired. It returns
// the post-charge count and the window's reset time.
func (s *Store) Take(key string, weight int, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		e = &entry{count: weight, reset: now.Add(window)}
		s.entries[key] = e
		return e.count, e.reset
	}

	e.count += weight
	return e.count, e.reset
}

// Peek reports the key's current count without charging it. When no
// window is active it reports zero and the reset a new window started
// now would have.
func (s *Store) Peek(key string, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		return 0, now.Add(window)
	}
	return e.count, e.reset
}

// Sweep drops expired windows so the store does not accumulate keys for
// idle callers. Callers run it periodically.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if now.After(e.reset) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
