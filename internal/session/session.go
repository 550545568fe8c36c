package session

import (
	"sync"

	"knowledge-scout/internal/rag"
)

// Store holds the current index. It starts empty; each successful upload
// replaces the index as a whole.
type Store struct {
	mu        sync.RWMutex
	current   *rag.Index
	issued    uint64
	committed uint64
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the index queries should use, or nil before the first
// successful upload. The returned index is never modified afterwards.
func (s *Store) Current() *rag.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Begin hands out the ticket for an upload that is about to start.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Commit installs ix if no upload that started later has already committed.
// It reports whether ix became current.
func (s *Store) Commit(ticket uint64, ix *rag.Index) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket <= s.committed {
		return false
	}
	s.committed = ticket
	s.current = ix
	return true
}

// IsCurrent reports whether the upload holding ticket is the last one committed.
func (s *Store) IsCurrent(ticket uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ticket == s.committed
}

// Restore installs ix at startup, before any upload has begun.
func (s *Store) Restore(ix *rag.Index) {
	s.Commit(s.Begin(), ix)
}
