package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultFileName is used when FileStore is given a directory-less name
	DefaultFileName = "credentials.json"

	lockRetryDelay = 10 * time.Millisecond
	lockTimeout    = 2 * time.Second
)

// FileStore keeps tokens in a 0600 JSON file. A sibling .lock file guarded by
// flock serializes access across processes, so two CLI invocations refreshing
// at once cannot interleave their writes.
type FileStore struct {
	path string
	// flock treats a held lock as reentrant within one handle, so goroutines
	// of this process also serialize on mu.
	mu   sync.Mutex
	lock *flock.Flock
}

var _ Store = (*FileStore)(nil)

// NewFileStore stores tokens at path. An empty path selects
// <user config dir>/finbricks/credentials.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "finbricks", DefaultFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the credentials file location
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.withLock(ctx, func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		v, ok := all[key]
		if !ok {
			return ErrNotFound
		}
		value = v
		return nil
	})
	return value, err
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.withLock(ctx, func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		all[key] = value
		return s.writeAll(all)
	})
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	return s.withLock(ctx, func() error {
		all, err := s.readAll()
		if err != nil {
			return err
		}
		if _, ok := all[key]; !ok {
			return nil
		}
		delete(all, key)
		return s.writeAll(all)
	})
}

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s: timed out", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *FileStore) readAll() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	all := make(map[string]string)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("corrupt credentials file %s: %w", s.path, err)
	}
	return all, nil
}

// writeAll replaces the file atomically via rename.
func (s *FileStore) writeAll(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
