package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSStore stores objects as files under {basePath}/{bucket}/{key}.
// Thread-safe for concurrent operations.
type FSStore struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

var _ ObjectStore = (*FSStore)(nil)

// NewFSStore creates the base directory if needed.
func NewFSStore(basePath string) (*FSStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Put writes data to bucket/key. Without upsert an existing file yields ErrObjectExists.
func (s *FSStore) Put(ctx context.Context, bucket, key string, data []byte, _ string, upsert bool) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.Path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	if !upsert {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			return ErrObjectExists
		}
		if err != nil {
			return fmt.Errorf("failed to create object file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(p)
			return fmt.Errorf("failed to write object file: %w", err)
		}
		return f.Close()
	}

	// Write to a temp file and rename so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close object file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move object file: %w", err)
	}
	return nil
}

// Get reads the object at bucket/key.
func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(bucket, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object file: %w", err)
	}
	return data, nil
}

// Exists checks if an object exists.
func (s *FSStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := validateKey(bucket, key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(bucket, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the object and any directories it leaves empty.
func (s *FSStore) Delete(ctx context.Context, bucket, key string) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.Path(bucket, key)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object file: %w", err)
	}

	bucketDir := filepath.Join(s.basePath, bucket)
	for dir := filepath.Dir(p); dir != bucketDir && len(dir) > len(bucketDir); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Path returns the full filesystem path for an object.
func (s *FSStore) Path(bucket, key string) string {
	return filepath.Join(s.basePath, bucket, filepath.FromSlash(key))
}
