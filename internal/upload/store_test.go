package upload

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadEmptyWhenFileMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, store.Load())
}

func TestStore_AddIsIdempotentAndSorted(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Add("zeta.pdf"))
	require.NoError(t, store.Add("alpha.pdf"))
	require.NoError(t, store.Add("zeta.pdf"))

	set := store.Load()
	assert.Len(t, set, 2)
	assert.True(t, set["alpha.pdf"])
	assert.True(t, set["zeta.pdf"])

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var rec record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, []string{"alpha.pdf", "zeta.pdf"}, rec.UploadedFiles)
}

func TestStore_LoadTolerantOfCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	assert.Empty(t, store.Load())

	// writes still work after a corrupt read
	require.NoError(t, store.Add("fresh.pdf"))
	assert.True(t, store.Load()["fresh.pdf"])
}

func TestStore_Reset(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Add("one.pdf"))

	require.NoError(t, store.Reset())
	assert.Empty(t, store.Load())
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))

	// resetting an already-empty store is fine
	require.NoError(t, store.Reset())
}

func TestStore_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Add("a.pdf"))

	assert.True(t, store.Load()["a.pdf"])
}
