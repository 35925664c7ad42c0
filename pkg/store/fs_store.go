package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSStore implements KV on the local file system, one JSON document per
// key under rootDir. Writes are individually atomic (temp file + rename);
// there is no cross-key transaction support.
type FSStore struct {
	rootDir string
	mu      sync.RWMutex // Global lock for simplified thread-safety
}

func NewFSStore(rootDir string) *FSStore {
	return &FSStore{rootDir: rootDir}
}

func (s *FSStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.rootDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.rootDir, err)
	}
	return nil
}

func (s *FSStore) Close() error {
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atomicWrite(s.pathFor(key), value)
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// pathFor maps a key to a file path, flattening separators so keys cannot
// escape the root directory.
func (s *FSStore) pathFor(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.rootDir, safe+".json")
}

func (s *FSStore) atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"

	// 1. Write to temp
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	// 2. Sync to disk requires opening the file and calling Sync
	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	f.Close()

	// 3. Rename
	return os.Rename(tmpPath, path)
}
