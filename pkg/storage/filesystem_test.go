package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("exams/result.csv", []byte("a,b\n"))
	require.NoError(t, err)

	file, info, err := store.Open("exams/result.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	file.Close()
	assert.Equal(t, "a,b\n", string(body))
	assert.Equal(t, int64(4), info.Size())

	require.NoError(t, store.Delete("exams/result.csv"))
	require.NoError(t, store.Delete("exams/result.csv"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.csv", []byte("x"))
	assert.ErrorIs(t, err, ErrOutsideBase)
	_, _, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideBase)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("new"))
	require.NoError(t, err)

	now := time.Now()
	old := now.Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), old, old))

	deleted, err := store.CleanupOlderThan(now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	_, _, err = store.Open("new.csv")
	assert.NoError(t, err)
}
