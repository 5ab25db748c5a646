// Package dedup tracks the identifiers already seen during a scan session.
package dedup

import "sync"

// Set is the in-memory set of identifiers seen for the active order.
// Keys are the exact normalized identifier strings, case-sensitive. The set
// is always recoverable by replaying the order log.
type Set struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		seen: make(map[string]struct{}),
	}
}

// Contains reports whether id was already seen.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.seen[id]
	return exists
}

// Insert records id as seen.
func (s *Set) Insert(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[id] = struct{}{}
}

// Clear removes every identifier. Used by the explicit session reset.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = make(map[string]struct{})
}

// Len returns the number of distinct identifiers seen.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.seen)
}
