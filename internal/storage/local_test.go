package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path, size, err := store.Upload(ctx, []byte("image bytes"), "uploads/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, "uploads/cat.jpg", path)
	assert.Equal(t, int64(11), size)

	exists, err := store.Exists(ctx, "uploads/cat.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Download(ctx, "uploads/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), data)

	existed, err := store.Delete(ctx, "uploads/cat.jpg")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "uploads/cat.jpg")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestLocalStoreDownloadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "nope.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreGetURLNotSupported(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetURL(context.Background(), "a.png")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestLocalStoreList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Upload(ctx, []byte("a"), "folder/a.jpg")
	require.NoError(t, err)
	_, _, err = store.Upload(ctx, []byte("b"), "folder/b.png")
	require.NoError(t, err)
	_, _, err = store.Upload(ctx, []byte("c"), "folder/nested/c.png")
	require.NoError(t, err)

	infos, err := store.List(ctx, "folder")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	byName := make(map[string]FileInfo)
	for _, fi := range infos {
		byName[fi.Name] = fi
	}
	assert.False(t, byName["a.jpg"].IsDir)
	assert.Equal(t, "folder/a.jpg", byName["a.jpg"].Path)
	assert.True(t, byName["nested"].IsDir)
}

func TestLocalStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "../outside.txt")
	assert.Error(t, err)
}

func TestLocalStoreListMissingPrefix(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	infos, err := store.List(context.Background(), "does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, infos)
}
