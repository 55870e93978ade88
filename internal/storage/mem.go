package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and ephemeral runs.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data      []byte
	createdAt time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]memObject), now: time.Now}
}

// Put inserts an object with an explicit creation time, for tests that need
// control over listing timestamps.
func (s *MemStore) Put(path string, data []byte, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = memObject{data: data, createdAt: createdAt}
}

// Download retrieves an object's bytes.
func (s *MemStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Upload writes bytes to a path.
func (s *MemStore) Upload(_ context.Context, data []byte, path string) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[path] = memObject{data: stored, createdAt: s.now()}
	return path, int64(len(data)), nil
}

// Delete removes an object, reporting whether it existed.
func (s *MemStore) Delete(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	delete(s.objects, path)
	return ok, nil
}

// Exists reports whether an object exists.
func (s *MemStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok, nil
}

// GetURL is not available for the in-memory backend.
func (s *MemStore) GetURL(_ context.Context, _ string) (string, error) {
	return "", ErrNotSupported
}

// List enumerates objects directly under a prefix. Keys ending in "/" are
// reported as folder markers.
func (s *MemStore) List(_ context.Context, prefix string) ([]FileInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []FileInfo
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 && idx < len(rest)-1 {
			// Nested object; folder markers themselves are listed below.
			continue
		}
		infos = append(infos, FileInfo{
			Path:      key,
			Name:      path.Base(strings.TrimSuffix(key, "/")),
			Size:      int64(len(obj.data)),
			CreatedAt: obj.createdAt,
			IsDir:     strings.HasSuffix(key, "/"),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}
