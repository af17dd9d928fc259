package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketchain", "session.json")
	store := NewFileSessionStore(path)

	key, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", key)

	require.NoError(t, store.Save("GABC"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"public_key":"GABC"}`, string(raw))

	key, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "GABC", key)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	key, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", key)
}

func TestFileSessionStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := NewFileSessionStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing session file")
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()

	require.NoError(t, store.Save("GABC"))
	key, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "GABC", key)

	require.NoError(t, store.Clear())
	key, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", key)
}
