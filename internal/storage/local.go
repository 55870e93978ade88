package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore stores blobs under a root directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem-backed store rooted at dir, creating it
// if necessary.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", dir, err)
	}
	return &LocalStore{root: dir}, nil
}

// resolve joins a store path onto the root, rejecting escapes.
func (s *LocalStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) && full != filepath.Clean(s.root) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

// Download retrieves an object's bytes.
func (s *LocalStore) Download(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Upload writes bytes to a path, creating parent directories as needed.
func (s *LocalStore) Upload(_ context.Context, data []byte, path string) (string, int64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, int64(len(data)), nil
}

// Delete removes an object, reporting whether it existed.
func (s *LocalStore) Delete(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return true, nil
}

// Exists reports whether an object exists.
func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return true, nil
}

// GetURL is not available for the local backend.
func (s *LocalStore) GetURL(_ context.Context, _ string) (string, error) {
	return "", ErrNotSupported
}

// List enumerates the direct children of a prefix directory. Subdirectories
// are reported with IsDir set so callers can filter folder markers.
func (s *LocalStore) List(_ context.Context, prefix string) ([]FileInfo, error) {
	full, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{
			Path:      strings.TrimPrefix(filepath.ToSlash(filepath.Join(prefix, entry.Name())), "/"),
			Name:      entry.Name(),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
			IsDir:     entry.IsDir(),
		})
	}
	return infos, nil
}
