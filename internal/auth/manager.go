package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/logger"
)

// Manager hands out valid access tokens, refreshing behind a mutex so
// concurrent callers trigger at most one refresh network call.
type Manager struct {
	store       CredentialStore
	authBaseURL string
	clientID    string
	bus         *events.Bus
	httpClient  *http.Client

	mu sync.Mutex
	// cached is the last record read from the store, kept so a refresh
	// that lands between two AccessToken calls is visible to the second
	// without a store round-trip.
	cached *StoredAuth
}

// NewManager creates a token manager over the given store.
func NewManager(store CredentialStore, authBaseURL, clientID string, bus *events.Bus) *Manager {
	return &Manager{
		store:       store,
		authBaseURL: authBaseURL,
		clientID:    clientID,
		bus:         bus,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the refresh transport (used in tests).
func (m *Manager) SetHTTPClient(c *http.Client) {
	m.httpClient = c
}

// Current returns the stored auth record without refreshing, or nil if
// not logged in.
func (m *Manager) Current() (*StoredAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Get implements CredentialStore by reading through the cache.
func (m *Manager) Get() (*StoredAuth, error) {
	return m.Current()
}

// Put persists a fresh auth record and updates the cache in the same
// critical section. The login flow is handed the manager as its store
// so new tokens are visible to AccessToken immediately; writing to the
// underlying store directly would leave a stale cached record here.
func (m *Manager) Put(rec *StoredAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Put(rec); err != nil {
		return err
	}
	m.cached = rec
	return nil
}

// Clear implements CredentialStore.
func (m *Manager) Clear() error {
	return m.Logout()
}

// load reads through the cache. Caller holds m.mu.
func (m *Manager) load() (*StoredAuth, error) {
	if m.cached != nil {
		return m.cached, nil
	}
	rec, err := m.store.Get()
	if err != nil {
		return nil, err
	}
	m.cached = rec
	return rec, nil
}

// IsAuthenticated reports whether a usable credential exists. A stored
// token inside the refresh margin is only usable if a refresh succeeds,
// so one is attempted; a refused refresh clears stored state and reports
// false, which sends the caller back to the browser flow.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load()
	if err != nil || rec == nil || rec.Tokens.AccessToken == "" {
		return false
	}
	if !rec.Tokens.NeedsRefresh() {
		return true
	}
	_, err = m.refreshLocked(ctx, rec)
	return err == nil
}

// AccessToken returns a valid access token, refreshing first when the
// stored one is inside the refresh margin. Concurrent calls serialize:
// the first performs the refresh, the rest see the refreshed record.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load()
	if err != nil {
		return "", err
	}
	if rec == nil || rec.Tokens.AccessToken == "" {
		return "", apperrors.NewUnauthorizedError("not logged in; run `conduit login`", nil)
	}

	// Recheck under the lock: a caller that queued behind a refresh
	// sees the new expiry and skips its own.
	if !rec.Tokens.NeedsRefresh() {
		return rec.Tokens.AccessToken, nil
	}

	return m.refreshLocked(ctx, rec)
}

// ForceRefresh discards the current access token and refreshes
// unconditionally. Used by the HTTP client after a 401.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load()
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", apperrors.NewUnauthorizedError("not logged in; run `conduit login`", nil)
	}

	return m.refreshLocked(ctx, rec)
}

// refreshLocked performs the refresh network call. Caller holds m.mu.
// An irrecoverable failure clears the stored credential so the next
// command prompts re-login instead of looping on a dead refresh token.
func (m *Manager) refreshLocked(ctx context.Context, rec *StoredAuth) (string, error) {
	if rec.Tokens.RefreshToken == "" {
		m.clearLocked()
		return "", apperrors.NewUnauthorizedError("session expired and no refresh token; run `conduit login`", nil)
	}

	tokens, err := refreshTokens(ctx, m.httpClient, m.authBaseURL, m.clientID, rec.Tokens.RefreshToken)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			// Refresh token rejected. The session is dead.
			m.clearLocked()
			return "", apperrors.NewUnauthorizedError("session expired; run `conduit login`", err)
		}
		return "", err
	}

	rec.Tokens.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		rec.Tokens.RefreshToken = tokens.RefreshToken
	}
	rec.Tokens.ExpiresAt = expiryFrom(tokens.ExpiresIn)
	m.cached = rec

	if err := m.store.Put(rec); err != nil {
		// The refreshed token is good in memory; losing the write only
		// costs a re-login after restart.
		logger.Warnf("could not persist refreshed token: %v", err)
	}

	logger.Debugf("token refreshed, new access token %s", logger.Redact(tokens.AccessToken))

	return rec.Tokens.AccessToken, nil
}

// clearLocked wipes stored credentials and announces the logout.
// Caller holds m.mu.
func (m *Manager) clearLocked() {
	m.cached = nil
	if err := m.store.Clear(); err != nil {
		logger.Warnf("could not clear credentials: %v", err)
	}
	if m.bus != nil {
		m.bus.Publish(events.NewAuthChangedEvent(false, ""))
	}
}

// Logout clears stored credentials.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = nil
	if err := m.store.Clear(); err != nil {
		return err
	}
	if m.bus != nil {
		m.bus.Publish(events.NewAuthChangedEvent(false, ""))
	}
	return nil
}
