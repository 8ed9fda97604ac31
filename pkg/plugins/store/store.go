// Package store provides the store plugin: a persisted key-value store
// the frontend uses for small application state. Values are arbitrary
// JSON; every mutation is written through to disk atomically.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Name is the plugin name used in permissions and command paths.
const Name = "store"

// FileName is the backing file inside the app data directory.
const FileName = "store.json"

// Store is the store plugin.
type Store struct {
	mu       sync.RWMutex
	data     map[string]json.RawMessage
	filePath string
	log      zerolog.Logger
}

// New creates an empty store plugin; Setup loads the backing file.
func New() *Store {
	return &Store{
		data: make(map[string]json.RawMessage),
	}
}

// Name implements plugin.Plugin.
func (s *Store) Name() string { return Name }

// Setup implements plugin.Plugin. It binds the store to the app data
// directory and loads existing state. A corrupt file aborts startup.
func (s *Store) Setup(ctx context.Context, host plugin.Host) error {
	s.filePath = filepath.Join(host.DataDir(), FileName)
	s.log = host.Logger().With().Str("plugin", Name).Logger()

	if err := s.load(); err != nil {
		return err
	}
	s.log.Debug().Int("keys", len(s.data)).Msg("store loaded")
	return nil
}

// Shutdown implements plugin.Plugin. Mutations persist eagerly, so there
// is nothing left to flush.
func (s *Store) Shutdown(ctx context.Context) error { return nil }

// Commands implements plugin.Plugin.
func (s *Store) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "get",
			Description: "Read the value stored under a key. Returns null for missing keys.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
			Handler:     s.handleGet,
		},
		{
			Name:        "set",
			Description: "Store a JSON value under a key and persist it.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"},"value":{}},"required":["key","value"]}`),
			Handler:     s.handleSet,
		},
		{
			Name:        "has",
			Description: "Report whether a key exists.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
			Handler:     s.handleHas,
		},
		{
			Name:        "delete",
			Description: "Remove a key. Returns whether it existed.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
			Handler:     s.handleDelete,
		},
		{
			Name:        "keys",
			Description: "List all keys, sorted.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     s.handleKeys,
		},
		{
			Name:        "clear",
			Description: "Remove all keys.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     s.handleClear,
		},
	}
}

type keyInput struct {
	Key string `json:"key"`
}

type setInput struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func parseKey(args json.RawMessage) (string, error) {
	var in keyInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Key == "" {
		return "", plugin.Errorf(plugin.CodeBadRequest, "key must not be empty")
	}
	return in.Key, nil
}

func (s *Store) handleGet(ctx context.Context, inv plugin.Invocation) (any, error) {
	key, err := parseKey(inv.Args)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (s *Store) handleSet(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in setInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.Key == "" {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "key must not be empty")
	}
	if len(in.Value) == 0 {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "value is required")
	}

	s.mu.Lock()
	s.data[in.Key] = in.Value
	snap := s.snapshot()
	s.mu.Unlock()

	return nil, s.persistSnapshot(snap)
}

func (s *Store) handleHas(ctx context.Context, inv plugin.Invocation) (any, error) {
	key, err := parseKey(inv.Args)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok, nil
}

func (s *Store) handleDelete(ctx context.Context, inv plugin.Invocation) (any, error) {
	key, err := parseKey(inv.Args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, existed := s.data[key]
	delete(s.data, key)
	snap := s.snapshot()
	s.mu.Unlock()

	if !existed {
		return false, nil
	}
	return true, s.persistSnapshot(snap)
}

func (s *Store) handleKeys(ctx context.Context, inv plugin.Invocation) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) handleClear(ctx context.Context, inv plugin.Invocation) (any, error) {
	s.mu.Lock()
	s.data = make(map[string]json.RawMessage)
	snap := s.snapshot()
	s.mu.Unlock()

	return nil, s.persistSnapshot(snap)
}

// --- persistence ---

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("store: read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var loaded map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &loaded); err != nil {
		return fmt.Errorf("store: parse file: %w", err)
	}
	s.data = loaded
	if s.data == nil {
		s.data = make(map[string]json.RawMessage)
	}

	return nil
}

// snapshot copies the current data. Must be called while s.mu is held.
func (s *Store) snapshot() map[string]json.RawMessage {
	snap := make(map[string]json.RawMessage, len(s.data))
	for k, v := range s.data {
		snap[k] = v
	}
	return snap
}

// persistSnapshot writes the snapshot to disk. Called outside the lock so
// blocking I/O does not hold the mutex.
func (s *Store) persistSnapshot(snap map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o750); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: rename temp file: %w", err)
	}

	return nil
}
