// Package auth implements the Conduit Cloud login: the OAuth 2.1
// authorization-code+PKCE flow, token storage and refresh, and the
// authenticated HTTP client the API layer builds on.
package auth

import (
	"time"
)

// RefreshMargin is how long before expiry a token is treated as unusable.
// Refreshing ahead of the wire expiry avoids races where a request leaves
// with a token that dies in flight.
const RefreshMargin = 30 * time.Second

// DefaultTokenTTL is assumed when the token response omits expires_in.
// A token with no expiry would never refresh, so one hour is taken as
// the provider's intent.
const DefaultTokenTTL = time.Hour

// expiryFrom converts a wire expires_in seconds value into an absolute
// Unix-milliseconds timestamp, applying DefaultTokenTTL when absent.
func expiryFrom(expiresIn int) int64 {
	ttl := time.Duration(expiresIn) * time.Second
	if expiresIn <= 0 {
		ttl = DefaultTokenTTL
	}
	return time.Now().Add(ttl).UnixMilli()
}

// TokenSet holds the tokens from a successful exchange or refresh.
// Owned by the credential store; mutated only by the flow (exchange) and
// the manager (refresh); cleared on logout or irrecoverable 401.
type TokenSet struct {
	// AccessToken is the current bearer token. Never logged in plaintext.
	AccessToken string `json:"access_token"`

	// RefreshToken is used to obtain new access tokens (may be empty).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is when the access token expires (Unix milliseconds).
	// Always set for tokens minted by this process; zero only occurs in
	// records written by older builds and reads as "never expires".
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// IsExpired returns true if the access token has expired.
func (t TokenSet) IsExpired() bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return time.Now().UnixMilli() >= t.ExpiresAt
}

// NeedsRefresh returns true if the token is within RefreshMargin of
// expiry and should be refreshed before use.
func (t TokenSet) NeedsRefresh() bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return time.Now().UnixMilli() >= t.ExpiresAt-RefreshMargin.Milliseconds()
}

// UserData is the profile of the logged-in developer.
type UserData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// StoredAuth is the single durable record the credential store holds:
// the token set plus the profile fetched at login.
type StoredAuth struct {
	Tokens TokenSet  `json:"tokens"`
	User   *UserData `json:"user,omitempty"`
}

// CredentialStore is the interface for secret-grade auth storage.
// Implementations must treat the record as a secret: keyring first, 0600
// file fallback.
type CredentialStore interface {
	// Get retrieves the stored auth record, or nil if none is stored.
	Get() (*StoredAuth, error)

	// Put stores the auth record, replacing any previous one.
	Put(*StoredAuth) error

	// Clear removes the stored record. Clearing an empty store is not an
	// error.
	Clear() error
}

// StoreMode selects the credential storage backend.
type StoreMode string

const (
	// StoreModeAuto uses the keyring if available, falls back to file.
	StoreModeAuto StoreMode = "auto"

	// StoreModeKeyring uses the system keychain.
	StoreModeKeyring StoreMode = "keyring"

	// StoreModeFile uses a JSON file.
	StoreModeFile StoreMode = "file"
)

// NewCredentialStore creates a credential store based on the mode.
func NewCredentialStore(mode StoreMode) (CredentialStore, error) {
	switch mode {
	case StoreModeKeyring:
		return NewKeyringStore()

	case StoreModeFile:
		return NewFileStore()

	case StoreModeAuto, "":
		store, err := NewKeyringStore()
		if err == nil {
			return store, nil
		}
		return NewFileStore()

	default:
		return NewFileStore()
	}
}
