package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save("run-1", "manager", []byte("persistent")))
	require.NoError(t, store1.Close())

	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	data, err := store2.Load("run-1", "manager")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)

	// Sequences continue after reopening.
	require.NoError(t, store2.Save("run-1", "security", []byte("next")))
	infos, err := store2.List("run-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 2, infos[1].Sequence)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("run-1", "manager", []byte("x")))
	data, err := store.Load("run-1", "manager")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
