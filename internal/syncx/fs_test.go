package syncx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSProviderPutGetDel(t *testing.T) {
	p := NewFSProvider(t.TempDir())
	ctx := context.Background()
	require.NoError(t, p.CreateConfig(ctx))

	info, err := p.Put(ctx, FileInfo{Name: "export.json"}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "export.json", info.ID)
	assert.Equal(t, int64(8), info.Size)

	data, err := p.Get(ctx, "export.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)

	require.NoError(t, p.Del(ctx, "export.json"))
	_, err = p.Get(ctx, "export.json")
	assert.Error(t, err)

	// deleting an absent file is fine
	require.NoError(t, p.Del(ctx, "export.json"))
}

func TestFSProviderFolders(t *testing.T) {
	p := NewFSProvider(t.TempDir())
	ctx := context.Background()
	require.NoError(t, p.CreateConfig(ctx))

	folder, err := p.Mkdir(ctx, "", "stores")
	require.NoError(t, err)
	assert.Equal(t, "stores", folder.ID)

	_, err = p.Put(ctx, FileInfo{Name: "a.json", FolderID: "stores"}, []byte("x"))
	require.NoError(t, err)

	infos, err := p.List(ctx, "stores")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "stores/a.json", infos[0].ID)
	assert.Equal(t, "a.json", infos[0].Name)

	_, err = p.Mkdir(ctx, "", "bad/name")
	assert.Error(t, err)
}

func TestFSProviderListMissingFolder(t *testing.T) {
	p := NewFSProvider(t.TempDir())
	infos, err := p.List(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestFSProviderNeverNeedsCredentialUpdate(t *testing.T) {
	p := NewFSProvider(t.TempDir())
	assert.False(t, p.ConfigNeedsUpdate())
	assert.NoError(t, p.UpdateConfig(context.Background(), nil))
}
