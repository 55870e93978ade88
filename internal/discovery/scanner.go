// Package discovery lists new source files for recurring jobs. A cursor
// (the last-processed creation timestamp) gates incremental scans, with a
// fixed buffer to absorb listing eventual consistency and clock skew.
package discovery

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/image-labeler/internal/storage"
)

// CursorBuffer is subtracted from the cursor when filtering: a file created
// within this window before the cursor is still returned, so briefly-late
// listings are not lost. Ingestion skips source paths it has already
// recorded, so the re-reads never become duplicate items.
const CursorBuffer = 60 * time.Second

// DefaultExtensions is the extension filter used when a job specifies none.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Scan lists files under folder that are new relative to the cursor,
// ascending by creation time. Folder markers, disallowed extensions, and
// entries at or before cursor-60s are filtered out. A nil cursor scans
// everything. The scan is a pure read; no store mutation occurs.
func Scan(ctx context.Context, store storage.Store, folder string, cursor *time.Time, allowedExtensions []string) ([]storage.FileInfo, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	entries, err := store.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	var threshold time.Time
	if cursor != nil {
		threshold = cursor.Add(-CursorBuffer)
	}

	files := make([]storage.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if !allowed[strings.ToLower(path.Ext(entry.Name))] {
			continue
		}
		if cursor != nil && !entry.CreatedAt.After(threshold) {
			continue
		}
		files = append(files, entry)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// MaxCreatedAt returns the latest creation time among files, for advancing a
// job's cursor after ingestion. The zero time is returned for an empty slice.
func MaxCreatedAt(files []storage.FileInfo) time.Time {
	var max time.Time
	for _, f := range files {
		if f.CreatedAt.After(max) {
			max = f.CreatedAt
		}
	}
	return max
}
