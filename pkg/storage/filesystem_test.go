package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadReplace(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("store.json", []byte(`{"v":1}`))
	require.NoError(t, err)
	_, err = s.Save("store.json", []byte(`{"v":2}`))
	require.NoError(t, err)

	data, err := s.Load("store.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, filepath.Join(dir, "store.json"), s.Path("store.json"))
}

func TestLoadMissingFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load("absent.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("a.json", []byte("{}"))
	require.NoError(t, err)
	require.NoError(t, s.Delete("a.json"))
	require.NoError(t, s.Delete("a.json"))
}
