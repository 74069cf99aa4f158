// Package store implements the single-slot dedup cache shared between the
// inbound and outbound clip directions.
package store

import (
	"sync"

	"github.com/kuuji/clipshare/internal/clip"
)

// Store holds the last clip accepted from either direction. It is safe for
// concurrent use, though in practice the worker only ever touches it from
// its own main-loop goroutine.
type Store struct {
	mu   sync.Mutex
	last *clip.Clip
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Add accepts candidate as the new last-known clip iff the store is empty
// or candidate.NewerThan(last). On acceptance it returns true and last is
// replaced; otherwise it returns false and the store is left untouched.
func (s *Store) Add(candidate clip.Clip) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && !candidate.NewerThan(*s.last) {
		return false
	}
	c := candidate
	s.last = &c
	return true
}

// Last returns the current last-known clip, if any.
func (s *Store) Last() (clip.Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return clip.Clip{}, false
	}
	return *s.last, true
}
