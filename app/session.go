package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SessionStore persists the connected public key between runs.
type SessionStore interface {
	// Load returns the persisted public key, or "" when there is none.
	Load() (string, error)
	Save(publicKey string) error
	Clear() error
}

type sessionFile struct {
	PublicKey string `json:"public_key"`
}

// FileSessionStore keeps the session in a JSON file readable only by its owner.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore returns a store backed by the file at path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path returns the session file location.
func (s *FileSessionStore) Path() string {
	return s.path
}

// Load reads the session file. A missing file is an empty session.
func (s *FileSessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading session file %s: %w", s.path, err)
	}

	var session sessionFile
	if err := json.Unmarshal(data, &session); err != nil {
		return "", fmt.Errorf("parsing session file %s: %w", s.path, err)
	}
	return session.PublicKey, nil
}

// Save writes the session file, creating its directory with mode 0700.
func (s *FileSessionStore) Save(publicKey string) error {
	data, err := json.MarshalIndent(sessionFile{PublicKey: publicKey}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing session file %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the session file. Clearing an empty session is not an error.
func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file %s: %w", s.path, err)
	}
	return nil
}

// MemorySessionStore keeps the session in memory.
type MemorySessionStore struct {
	mu        sync.Mutex
	publicKey string
}

// NewMemorySessionStore returns an empty in-memory session.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicKey, nil
}

func (s *MemorySessionStore) Save(publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKey = publicKey
	return nil
}

func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKey = ""
	return nil
}
