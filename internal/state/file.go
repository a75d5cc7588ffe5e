package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const stateFileName = "positions.json"

var _ Store = (*FileStore)(nil)

type fileRecord struct {
	Position    *Position    `json:"position,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// FileStore keeps every document's record in a single JSON file.
type FileStore struct {
	path string
	data map[string]fileRecord
	mu   sync.RWMutex
}

// NewFileStore creates or loads state from dir. An empty dir means
// XDG_STATE_HOME/readaloud.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = StateDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	store := &FileStore{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]fileRecord),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = make(map[string]fileRecord)
	}
	return store, nil
}

// StateDir returns XDG_STATE_HOME/readaloud or ~/.local/state/readaloud
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "readaloud")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "readaloud")
}

// Path is the backing JSON file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, docID string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	pos = pos.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.data[docID]
	rec.Position = &pos
	s.data[docID] = rec
	return s.save()
}

func (s *FileStore) Load(_ context.Context, docID string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.data[docID]; ok && rec.Position != nil {
		return *rec.Position, nil
	}
	return Position{}, nil
}

// Clear removes the saved position and preferences for docID.
func (s *FileStore) Clear(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[docID]; !ok {
		return nil
	}
	delete(s.data, docID)
	return s.save()
}

func (s *FileStore) SavePreferences(_ context.Context, docID string, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.data[docID]
	rec.Preferences = &prefs
	s.data[docID] = rec
	return s.save()
}

func (s *FileStore) LoadPreferences(_ context.Context, docID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.data[docID]; ok && rec.Preferences != nil {
		return *rec.Preferences, nil
	}
	return Preferences{}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

// save writes to a temp file and renames it so a crash never leaves a
// truncated positions file behind.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
