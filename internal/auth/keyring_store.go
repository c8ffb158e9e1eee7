package auth

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the system keychain.
	keyringService = "conduit"

	// keyringAuthKey is the key holding the single auth record.
	keyringAuthKey = "auth"
)

// KeyringStore stores the auth record in the system keychain.
type KeyringStore struct {
	mu sync.RWMutex
}

// NewKeyringStore creates a keyring-backed credential store.
// Returns an error if the keyring is not available.
func NewKeyringStore() (*KeyringStore, error) {
	// Probe availability by reading a key that will never exist.
	_, err := keyring.Get(keyringService, "_test_availability")
	if err != nil && err != keyring.ErrNotFound {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}

	return &KeyringStore{}, nil
}

// Get retrieves the stored auth record, or nil if none is stored.
func (s *KeyringStore) Get() (*StoredAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := keyring.Get(keyringService, keyringAuthKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keyring get: %w", err)
	}

	var rec StoredAuth
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("parse auth record: %w", err)
	}

	return &rec, nil
}

// Put stores the auth record, replacing any previous one.
func (s *KeyringStore) Put(rec *StoredAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}

	if err := keyring.Set(keyringService, keyringAuthKey, string(data)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Clear removes the stored record.
func (s *KeyringStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(keyringService, keyringAuthKey); err != nil {
		if err != keyring.ErrNotFound {
			return fmt.Errorf("keyring delete: %w", err)
		}
	}
	return nil
}
