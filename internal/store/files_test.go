package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePathEscapesName(t *testing.T) {
	p := StorePath("/data", "My Money/2024")
	assert.Equal(t, filepath.Join("/data", "My%20Money%2F2024.moneta"), p)
}

func TestListStoresDecodesNames(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"household", "My Money/2024", "b"} {
		require.NoError(t, os.WriteFile(StorePath(dir, name), nil, 0o660))
	}
	// ignored: wrong extension, subdirectory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o660))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.moneta"), 0o770))

	names, err := ListStores(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"My Money/2024", "b", "household"}, names)
}

func TestListStoresMissingDir(t *testing.T) {
	names, err := ListStores(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDataDir(dir))
	require.NoError(t, EnsureDataDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
