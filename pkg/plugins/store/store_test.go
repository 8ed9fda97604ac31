package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriel-shell/oriel/pkg/bundle"
	"github.com/oriel-shell/oriel/pkg/plugin"
)

type fakeHost struct {
	dir string
}

func (h fakeHost) Emit(event string, payload any) error { return nil }
func (h fakeHost) DataDir() string                      { return h.dir }
func (h fakeHost) Logger() zerolog.Logger               { return zerolog.Nop() }
func (h fakeHost) Manifest() bundle.Manifest            { return bundle.Manifest{} }

func setupStore(t *testing.T, dir string) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Setup(context.Background(), fakeHost{dir: dir}))
	return s
}

func call(t *testing.T, s *Store, command, args string) (any, error) {
	t.Helper()
	for _, c := range s.Commands() {
		if c.Name == command {
			return c.Handler(context.Background(), plugin.Invocation{Args: json.RawMessage(args)})
		}
	}
	t.Fatalf("no such command %s", command)
	return nil, nil
}

func TestStoreSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := setupStore(t, dir)

	_, err := call(t, s, "set", `{"key":"theme","value":{"name":"dark","scale":2}}`)
	require.NoError(t, err)

	got, err := call(t, s, "get", `{"key":"theme"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"dark","scale":2}`, string(got.(json.RawMessage)))

	// A fresh instance reads the persisted file.
	reopened := setupStore(t, dir)
	got, err = call(t, reopened, "get", `{"key":"theme"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"dark","scale":2}`, string(got.(json.RawMessage)))
}

func TestStoreGetMissing(t *testing.T) {
	s := setupStore(t, t.TempDir())

	got, err := call(t, s, "get", `{"key":"ghost"}`)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreHas(t *testing.T) {
	s := setupStore(t, t.TempDir())

	got, err := call(t, s, "has", `{"key":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = call(t, s, "set", `{"key":"x","value":1}`)
	require.NoError(t, err)

	got, err = call(t, s, "has", `{"key":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestStoreDelete(t *testing.T) {
	s := setupStore(t, t.TempDir())

	_, err := call(t, s, "set", `{"key":"x","value":"v"}`)
	require.NoError(t, err)

	got, err := call(t, s, "delete", `{"key":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = call(t, s, "delete", `{"key":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, false, got)
}

func TestStoreKeysSorted(t *testing.T) {
	s := setupStore(t, t.TempDir())

	for _, k := range []string{"zeta", "alpha", "mid"} {
		_, err := call(t, s, "set", `{"key":"`+k+`","value":true}`)
		require.NoError(t, err)
	}

	got, err := call(t, s, "keys", `{}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, got)
}

func TestStoreClear(t *testing.T) {
	dir := t.TempDir()
	s := setupStore(t, dir)

	_, err := call(t, s, "set", `{"key":"x","value":1}`)
	require.NoError(t, err)
	_, err = call(t, s, "clear", `{}`)
	require.NoError(t, err)

	got, err := call(t, s, "keys", `{}`)
	require.NoError(t, err)
	assert.Empty(t, got)

	reopened := setupStore(t, dir)
	got, err = call(t, reopened, "keys", `{}`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreBadArguments(t *testing.T) {
	s := setupStore(t, t.TempDir())

	tests := []struct {
		command string
		args    string
	}{
		{"get", `{`},
		{"get", `{"key":""}`},
		{"set", `{"key":"","value":1}`},
		{"set", `{"key":"x"}`},
		{"delete", `{"key":""}`},
	}
	for _, tt := range tests {
		_, err := call(t, s, tt.command, tt.args)
		require.Error(t, err, "%s %s", tt.command, tt.args)
		var perr *plugin.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, plugin.CodeBadRequest, perr.Code)
	}
}

func TestStoreSetupCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{broken"), 0o600))

	s := New()
	assert.Error(t, s.Setup(context.Background(), fakeHost{dir: dir}))
}

func TestStoreSetupEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(""), 0o600))

	s := New()
	assert.NoError(t, s.Setup(context.Background(), fakeHost{dir: dir}))
}
