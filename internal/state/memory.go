package state

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]Position
	prefs     map[string]Preferences
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]Position),
		prefs:     make(map[string]Preferences),
	}
}

func (s *MemoryStore) Save(_ context.Context, docID string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	pos = pos.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[docID] = pos
	return nil
}

func (s *MemoryStore) Load(_ context.Context, docID string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[docID], nil
}

func (s *MemoryStore) Clear(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, docID)
	delete(s.prefs, docID)
	return nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, docID string, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[docID] = prefs
	return nil
}

func (s *MemoryStore) LoadPreferences(_ context.Context, docID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[docID], nil
}

func (s *MemoryStore) Close() error { return nil }
