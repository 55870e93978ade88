package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/image-labeler/internal/storage"
)

func TestScanCursorBuffer(t *testing.T) {
	ctx := context.Background()
	cursor := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	store := storage.NewMemStore()
	store.Put("inbox/old.jpg", []byte("x"), cursor.Add(-90*time.Second))
	store.Put("inbox/recent.jpg", []byte("x"), cursor.Add(-30*time.Second))
	store.Put("inbox/new.jpg", []byte("x"), cursor.Add(5*time.Minute))

	files, err := Scan(ctx, store, "inbox", &cursor, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// A file created 90s before the cursor is outside the 60s buffer and
	// excluded; one created 30s before is inside it and re-discovered.
	assert.Equal(t, "recent.jpg", files[0].Name)
	assert.Equal(t, "new.jpg", files[1].Name)
}

func TestScanNilCursorReturnsAll(t *testing.T) {
	store := storage.NewMemStore()
	store.Put("inbox/a.jpg", []byte("x"), time.Unix(100, 0))
	store.Put("inbox/b.jpg", []byte("x"), time.Unix(50, 0))

	files, err := Scan(context.Background(), store, "inbox", nil, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.jpg", files[0].Name, "ascending by creation time")
	assert.Equal(t, "a.jpg", files[1].Name)
}

func TestScanFiltersExtensionsAndFolders(t *testing.T) {
	now := time.Now()
	store := storage.NewMemStore()
	store.Put("inbox/photo.JPG", []byte("x"), now)
	store.Put("inbox/notes.txt", []byte("x"), now)
	store.Put("inbox/archive/", nil, now)
	store.Put("inbox/clip.webp", []byte("x"), now)

	files, err := Scan(context.Background(), store, "inbox", nil, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.ElementsMatch(t, []string{"photo.JPG", "clip.webp"}, names)
}

func TestScanCustomExtensions(t *testing.T) {
	now := time.Now()
	store := storage.NewMemStore()
	store.Put("inbox/scan.tiff", []byte("x"), now)
	store.Put("inbox/photo.jpg", []byte("x"), now)

	files, err := Scan(context.Background(), store, "inbox", nil, []string{".tiff"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "scan.tiff", files[0].Name)
}

func TestMaxCreatedAt(t *testing.T) {
	assert.True(t, MaxCreatedAt(nil).IsZero())

	files := []storage.FileInfo{
		{CreatedAt: time.Unix(10, 0)},
		{CreatedAt: time.Unix(30, 0)},
		{CreatedAt: time.Unix(20, 0)},
	}
	assert.Equal(t, time.Unix(30, 0), MaxCreatedAt(files))
}
