package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

const lastUpdatedLayout = "2006-01-02 15:04:05"

// Compile-time checks that the JSON stores implement the store ports.
var (
	_ ports.WhitelistStore = (*JSONWhitelistStore)(nil)
	_ ports.FuseStore      = (*JSONFuseStore)(nil)
)

type whitelistFile struct {
	AllowedUsers []string `json:"allowed_users"`
	LastUpdated  string   `json:"last_updated"`
}

// JSONWhitelistStore keeps the whitelist in a JSON file.
type JSONWhitelistStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewJSONWhitelistStore creates a new JSONWhitelistStore.
func NewJSONWhitelistStore(path string) *JSONWhitelistStore {
	return &JSONWhitelistStore{path: path, now: time.Now}
}

// Load reads the whitelist. A missing file is reported as not found.
func (s *JSONWhitelistStore) Load() ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file whitelistFile
	found, err := readJSON(s.path, &file)
	if err != nil || !found {
		return nil, found, err
	}
	return file.AllowedUsers, true, nil
}

// Save writes the whitelist sorted by name.
func (s *JSONWhitelistStore) Save(users []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := slices.Clone(users)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}

	return writeJSON(s.path, whitelistFile{
		AllowedUsers: sorted,
		LastUpdated:  s.now().Format(lastUpdatedLayout),
	})
}

type fuseFile struct {
	FusedKeys []string `json:"fused_keys"`
}

// JSONFuseStore keeps redeemed admin keys in a JSON file. The file is read
// once and then served from memory.
type JSONFuseStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	keys   []string
}

// NewJSONFuseStore creates a new JSONFuseStore.
func NewJSONFuseStore(path string) *JSONFuseStore {
	return &JSONFuseStore{path: path}
}

// Contains reports whether key was already redeemed.
func (s *JSONFuseStore) Contains(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return false, err
	}
	return slices.Contains(s.keys, key), nil
}

// Add records key as redeemed and persists the set.
func (s *JSONFuseStore) Add(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if slices.Contains(s.keys, key) {
		return nil
	}

	keys := append(slices.Clone(s.keys), key)
	if err := writeJSON(s.path, fuseFile{FusedKeys: keys}); err != nil {
		return err
	}
	s.keys = keys
	return nil
}

func (s *JSONFuseStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	var file fuseFile
	if _, err := readJSON(s.path, &file); err != nil {
		return err
	}
	s.keys = file.FusedKeys
	s.loaded = true
	return nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// writeJSON replaces path atomically so a crash never leaves a truncated file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
