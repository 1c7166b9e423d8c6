// Package store provides the artifact store implementations backing the
// cache: a local filesystem store and a NATS JetStream object store.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrKeyNotFound indicates that no artifact exists under the requested key.
var ErrKeyNotFound = errors.New("artifact not found")

// FSStore keeps artifacts as files inside a single directory. Entries are
// immutable once written; Save is atomic via write-to-temp-then-rename so a
// reader can never observe a partially written artifact.
type FSStore struct {
	dir string
}

// NewFSStore creates the artifact directory if needed and returns the store.
func NewFSStore(dir string) (*FSStore, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact directory '%s': %w", dir, err)
	}

	return &FSStore{dir: dir}, nil
}

// Dir returns the directory holding the artifacts.
func (s *FSStore) Dir() string {
	return s.dir
}

// Exists reports whether an artifact is present under the given key.
func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, key))
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to stat artifact '%s': %w", key, err)
}

// Save writes the artifact atomically. The temp file lives in the target
// directory so the final rename never crosses filesystems.
func (s *FSStore) Save(_ context.Context, key string, data []byte) error {
	tempFile, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for artifact '%s': %w", key, err)
	}

	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()

	if writeErr != nil {
		removeTemp(tempPath)

		return fmt.Errorf("failed to write artifact '%s': %w", key, writeErr)
	}

	if closeErr != nil {
		removeTemp(tempPath)

		return fmt.Errorf("failed to close temp file for artifact '%s': %w", key, closeErr)
	}

	chmodErr := os.Chmod(tempPath, filePermissions)
	if chmodErr != nil {
		removeTemp(tempPath)

		return fmt.Errorf("failed to set permissions for artifact '%s': %w", key, chmodErr)
	}

	renameErr := os.Rename(tempPath, filepath.Join(s.dir, key))
	if renameErr != nil {
		removeTemp(tempPath)

		return fmt.Errorf("failed to publish artifact '%s': %w", key, renameErr)
	}

	return nil
}

// Get reads a stored artifact.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s'", ErrKeyNotFound, key)
		}

		return nil, fmt.Errorf("failed to read artifact '%s': %w", key, err)
	}

	return data, nil
}

func removeTemp(path string) {
	// Best effort: a stray temp file is harmless, the final key stays clean.
	_ = os.Remove(path)
}
