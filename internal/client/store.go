package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/router-for-me/StationPortal/internal/http/api/schema"
)

// storeKey is the single key the session lives under.
const storeKey = "user"

// StoredSession is the persisted sign-in: the token plus the user it resolved to.
type StoredSession struct {
	AccessToken string       `json:"access_token"`
	User        *schema.User `json:"user"`
}

// Store persists the session between runs.
type Store interface {
	// Load returns nil, nil when nothing is stored.
	Load() (*StoredSession, error)
	Save(*StoredSession) error
	Clear() error
}

// FileStore keeps the session as {"user": {...}} in a JSON file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the stored session. A corrupt file is treated as empty.
func (s *FileStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, errRead := os.ReadFile(s.path)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("client: read session: %w", errRead)
	}
	var doc map[string]*StoredSession
	if errDecode := json.Unmarshal(data, &doc); errDecode != nil {
		return nil, nil
	}
	stored := doc[storeKey]
	if stored == nil || stored.AccessToken == "" {
		return nil, nil
	}
	return stored, nil
}

// Save replaces the stored session.
func (s *FileStore) Save(stored *StoredSession) error {
	if stored == nil {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, errEncode := json.MarshalIndent(map[string]*StoredSession{storeKey: stored}, "", "  ")
	if errEncode != nil {
		return fmt.Errorf("client: encode session: %w", errEncode)
	}
	if errMkdir := os.MkdirAll(filepath.Dir(s.path), 0o700); errMkdir != nil {
		return fmt.Errorf("client: create session dir: %w", errMkdir)
	}
	tmp := s.path + ".tmp"
	if errWrite := os.WriteFile(tmp, data, 0o600); errWrite != nil {
		return fmt.Errorf("client: write session: %w", errWrite)
	}
	if errRename := os.Rename(tmp, s.path); errRename != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("client: write session: %w", errRename)
	}
	return nil
}

// Clear removes the stored session.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errRemove := os.Remove(s.path); errRemove != nil && !errors.Is(errRemove, os.ErrNotExist) {
		return fmt.Errorf("client: clear session: %w", errRemove)
	}
	return nil
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	mu     sync.Mutex
	stored *StoredSession
}

// Load returns the held session.
func (s *MemoryStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, nil
}

// Save holds stored.
func (s *MemoryStore) Save(stored *StoredSession) error {
	s.mu.Lock()
	s.stored = stored
	s.mu.Unlock()
	return nil
}

// Clear drops the held session.
func (s *MemoryStore) Clear() error {
	return s.Save(nil)
}
