package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	state := NewState("helsinki", "24.7,60.1,25.3,60.4", 4, 2010, 2020)
	state.MarkCell(0, 612)
	state.MarkCell(5, 88)
	require.NoError(t, store.Save(state))

	loaded, err := store.Load("helsinki")
	require.NoError(t, err)

	assert.Equal(t, "helsinki", loaded.RunName)
	assert.Equal(t, "24.7,60.1,25.3,60.4", loaded.BBox)
	assert.Equal(t, 4, loaded.NumSeg)
	assert.True(t, loaded.IsCellDone(0))
	assert.True(t, loaded.IsCellDone(5))
	assert.False(t, loaded.IsCellDone(1))
	assert.Equal(t, 612, loaded.CompletedCells[0].Records)
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nonexistent")
	assert.True(t, os.IsNotExist(err))
}

func TestExistsAndDelete(t *testing.T) {
	store := newTestStore(t)

	state := NewState("helsinki", "24.7,60.1,25.3,60.4", 2, 2010, 2020)
	require.NoError(t, store.Save(state))
	assert.True(t, store.Exists("helsinki"))

	require.NoError(t, store.Delete("helsinki"))
	assert.False(t, store.Exists("helsinki"))

	// Deleting a missing checkpoint is not an error
	assert.NoError(t, store.Delete("helsinki"))
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	state := NewState("helsinki", "24.7,60.1,25.3,60.4", 2, 2010, 2020)
	require.NoError(t, store.Save(state))

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMatches(t *testing.T) {
	state := NewState("helsinki", "24.7,60.1,25.3,60.4", 4, 2010, 2020)

	assert.True(t, state.Matches("24.7,60.1,25.3,60.4", 4, 2010, 2020))
	assert.False(t, state.Matches("24.7,60.1,25.3,60.4", 8, 2010, 2020))
	assert.False(t, state.Matches("0,0,1,1", 4, 2010, 2020))
	assert.False(t, state.Matches("24.7,60.1,25.3,60.4", 4, 2011, 2020))
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "old.checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "run_name": "old"}`), 0644))

	_, err = store.Load("old")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}
