// Package settings provides a thread-safe store for per-user application
// state: window geometry, the last run version and the dev stream token.
// It manages a single JSON file under the user's config directory.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the settings file inside the app's config directory.
const FileName = "settings.json"

// Settings is the persisted state. The zero value is a valid first run.
type Settings struct {
	WindowWidth  int  `json:"window_width,omitempty"`
	WindowHeight int  `json:"window_height,omitempty"`
	WindowX      int  `json:"window_x,omitempty"`
	WindowY      int  `json:"window_y,omitempty"`
	HasPosition  bool `json:"has_position,omitempty"`
	Maximised    bool `json:"maximised,omitempty"`

	LastVersion string `json:"last_version,omitempty"`
	DevToken    string `json:"dev_token,omitempty"`
}

// Store manages settings persisted to a JSON file.
type Store struct {
	mu       sync.RWMutex
	cur      Settings
	filePath string
}

// DefaultDir returns the per-user config directory for the given app slug.
func DefaultDir(slug string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings: user config dir: %w", err)
	}
	return filepath.Join(base, slug), nil
}

// Open loads the settings file in dir, creating nothing on disk yet. A
// missing file is a normal first run; a corrupt one is an error.
func Open(dir string) (*Store, error) {
	abs, err := filepath.Abs(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("settings: resolve path: %w", err)
	}

	s := &Store{filePath: abs}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cur
}

// Update applies fn to the settings under the lock and persists the
// result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	fn(&s.cur)
	snap := s.cur
	s.mu.Unlock()

	return s.persistSnapshot(snap)
}

// Path returns the absolute settings file path.
func (s *Store) Path() string { return s.filePath }

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("settings: read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var loaded Settings
	if err := json.Unmarshal(trimmed, &loaded); err != nil {
		return fmt.Errorf("settings: parse file: %w", err)
	}
	s.cur = loaded

	return nil
}

// persistSnapshot writes the snapshot to disk. Called outside the lock so
// blocking I/O does not hold the mutex.
func (s *Store) persistSnapshot(snap Settings) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o750); err != nil {
		return fmt.Errorf("settings: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("settings: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("settings: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("settings: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("settings: rename temp file: %w", err)
	}

	return nil
}
