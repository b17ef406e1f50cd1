package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

// FileStore keeps one file per key under a base directory. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partially written value. Mutations hold an advisory lock on the directory
// so a CLI invocation and a running server can share it.
type FileStore struct {
	basePath string
	mu       sync.Mutex
	fileLock *flock.Flock
}

// NewFileStore creates a file-backed store rooted at basePath
func NewFileStore(basePath string) *FileStore {
	return &FileStore{
		basePath: basePath,
		fileLock: flock.New(filepath.Join(basePath, lockFileName)),
	}
}

// lock serializes mutations within the process and across processes
func (f *FileStore) lock() (func(), error) {
	f.mu.Lock()
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := f.fileLock.Lock(); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("failed to lock store directory: %w", err)
	}
	return func() {
		_ = f.fileLock.Unlock()
		f.mu.Unlock()
	}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.basePath, url.PathEscape(key)+".json")
}

// Get implements Store
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(key)
}

func (f *FileStore) read(key string) ([]byte, error) {
	// #nosec G304 -- the file name is an escaped key under the configured base path
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read value of %q: %w", key, err)
	}
	return data, nil
}

// Set implements Store
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	unlock, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return f.write(key, value)
}

func (f *FileStore) write(key string, value []byte) error {
	filePath := f.path(key)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, value, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for %q: %w", key, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file for %q: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (f *FileStore) Delete(_ context.Context, key string) error {
	unlock, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Incr implements Store
func (f *FileStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	unlock, err := f.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	data, err := f.read(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	n, err := parseCounter(key, data)
	if err != nil {
		return 0, err
	}
	n += delta
	if err := f.write(key, []byte(strconv.FormatInt(n, 10))); err != nil {
		return 0, err
	}
	return n, nil
}

func parseCounter(key string, data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value of %q is not a counter: %w", key, err)
	}
	return n, nil
}
