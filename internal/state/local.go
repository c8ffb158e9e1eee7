// Package state provides durable key-value storage for conduit following
// the XDG Base Directory Specification.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

const (
	// DefaultAppName is the default application name used for XDG paths.
	DefaultAppName = "conduit"

	// FileExtension is the file extension for stored entries.
	FileExtension = ".json"
)

// Store is the interface for durable key-value storage.
type Store interface {
	// Save stores data under the given name.
	Save(name string, data []byte) error

	// Load retrieves the data stored under the given name.
	Load(name string) ([]byte, error)

	// Delete removes the entry for the given name.
	Delete(name string) error

	// Exists checks whether an entry exists for the given name.
	Exists(name string) (bool, error)
}

// LocalStore implements Store on the local filesystem under the XDG state
// directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a LocalStore for the given application and store
// name. An empty appName uses DefaultAppName.
func NewLocalStore(appName, storeName string) (*LocalStore, error) {
	if appName == "" {
		appName = DefaultAppName
	}

	basePath := filepath.Join(xdg.StateHome, appName, storeName)
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &LocalStore{basePath: basePath}, nil
}

// NewLocalStoreAt creates a LocalStore rooted at an explicit directory.
// Used by tests to avoid touching the real XDG paths.
func NewLocalStoreAt(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &LocalStore{basePath: dir}, nil
}

func (s *LocalStore) getFilePath(name string) string {
	if !strings.HasSuffix(name, FileExtension) {
		name = name + FileExtension
	}
	return filepath.Join(s.basePath, name)
}

// Save stores data under the given name. State entries never hold secrets,
// but they are still written 0600 like the rest of the app's files.
func (s *LocalStore) Save(name string, data []byte) error {
	filePath := s.getFilePath(name)

	// temp file + rename so readers never observe a partial write
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Load retrieves the data stored under the given name.
func (s *LocalStore) Load(name string) ([]byte, error) {
	filePath := s.getFilePath(name)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("state %q not found at %s", name, filePath), err)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return data, nil
}

// Delete removes the entry for the given name. Deleting a missing entry is
// not an error.
func (s *LocalStore) Delete(name string) error {
	filePath := s.getFilePath(name)
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// Exists checks whether an entry exists for the given name.
func (s *LocalStore) Exists(name string) (bool, error) {
	_, err := os.Stat(s.getFilePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check state file: %w", err)
	}
	return true, nil
}
