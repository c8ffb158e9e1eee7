package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

func newRefreshServer(t *testing.T, refreshes *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		if status != http.StatusOK {
			http.Error(w, "no", status)
			return
		}
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at-refreshed",
			ExpiresIn:    3600,
			RefreshToken: "rt-rotated",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAccessToken_FreshTokenNoRefresh(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusOK)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken: "at-fresh",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "at-fresh" {
		t.Errorf("token = %q, want at-fresh", token)
	}
	if refreshes.Load() != 0 {
		t.Errorf("refresh calls = %d, want 0", refreshes.Load())
	}
}

func TestAccessToken_RefreshesInsideMargin(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusOK)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-old",
		// Inside the 30s margin but not yet expired.
		ExpiresAt: time.Now().Add(10 * time.Second).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "at-refreshed" {
		t.Errorf("token = %q, want at-refreshed", token)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes.Load())
	}

	stored, _ := store.Get()
	if stored.Tokens.RefreshToken != "rt-rotated" {
		t.Errorf("rotated refresh token not persisted, got %q", stored.Tokens.RefreshToken)
	}
}

func TestAccessToken_ConcurrentCallersSingleRefresh(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusOK)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(5 * time.Second).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.AccessToken(context.Background())
			if err != nil {
				t.Errorf("AccessToken failed: %v", err)
				return
			}
			if token != "at-refreshed" {
				t.Errorf("token = %q, want at-refreshed", token)
			}
		}()
	}
	wg.Wait()

	if got := refreshes.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1 for concurrent callers", got)
	}
}

func TestAccessToken_RejectedRefreshClearsCredentials(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusUnauthorized)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-dead",
		RefreshToken: "rt-dead",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	_, err := m.AccessToken(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected refresh")
	}
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}

	if stored, _ := store.Get(); stored != nil {
		t.Error("credentials should be cleared after rejected refresh")
	}
	if m.IsAuthenticated(context.Background()) {
		t.Error("manager should report not authenticated after clear")
	}
}

func TestAccessToken_ExpiredNoRefreshToken(t *testing.T) {
	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken: "at-dead",
		ExpiresAt:   time.Now().Add(-time.Minute).UnixMilli(),
	}}}

	m := NewManager(store, "http://127.0.0.1:1", "cli-test", nil)

	_, err := m.AccessToken(context.Background())
	if err == nil {
		t.Fatal("expected error when expired with no refresh token")
	}
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	if stored, _ := store.Get(); stored != nil {
		t.Error("credentials should be cleared")
	}
}

func TestAccessToken_NotLoggedIn(t *testing.T) {
	m := NewManager(&memStore{}, "http://127.0.0.1:1", "cli-test", nil)

	_, err := m.AccessToken(context.Background())
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
}

func TestIsAuthenticated_DeadRefreshTokenTriggersRelogin(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusUnauthorized)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-dead",
		// Inside the 30s margin, so a refresh must be attempted.
		ExpiresAt: time.Now().Add(10 * time.Second).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	if m.IsAuthenticated(context.Background()) {
		t.Error("a dead refresh token must not report authenticated")
	}
	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes.Load())
	}
	if stored, _ := store.Get(); stored != nil {
		t.Error("credentials should be cleared after the failed refresh")
	}
}

func TestIsAuthenticated_RefreshesInsideMargin(t *testing.T) {
	var refreshes atomic.Int32
	server := newRefreshServer(t, &refreshes, http.StatusOK)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(10 * time.Second).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	if !m.IsAuthenticated(context.Background()) {
		t.Fatal("expected authenticated after a successful refresh")
	}
	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes.Load())
	}

	// The refreshed token is already good; AccessToken must not refresh
	// again.
	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "at-refreshed" {
		t.Errorf("token = %q, want at-refreshed", token)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want still 1", refreshes.Load())
	}
}

func TestPut_FreshLoginVisibleAfterDeadCache(t *testing.T) {
	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken: "at-dead",
		ExpiresAt:   time.Now().Add(-time.Minute).UnixMilli(),
	}}}

	m := NewManager(store, "http://127.0.0.1:1", "cli-test", nil)

	// Caches the dead record and clears the store, which is exactly the
	// state right before a re-login.
	if m.IsAuthenticated(context.Background()) {
		t.Fatal("expired record with no refresh token should not authenticate")
	}

	fresh := &StoredAuth{Tokens: TokenSet{
		AccessToken: "at-new",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}}
	if err := m.Put(fresh); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken after re-login: %v", err)
	}
	if token != "at-new" {
		t.Errorf("token = %q, want at-new", token)
	}
	if stored, _ := store.Get(); stored == nil || stored.Tokens.AccessToken != "at-new" {
		t.Error("fresh credentials must survive in the store")
	}
}

func TestRefresh_DefaultsExpiryWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No expires_in in the response.
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at-refreshed",
			RefreshToken: "rt-rotated",
		})
	}))
	t.Cleanup(server.Close)

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(5 * time.Second).UnixMilli(),
	}}}

	m := NewManager(store, server.URL, "cli-test", nil)

	before := time.Now()
	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "at-refreshed" {
		t.Errorf("token = %q, want at-refreshed", token)
	}

	stored, _ := store.Get()
	if stored.Tokens.ExpiresAt == 0 {
		t.Fatal("expiry must be set even when the response omits expires_in")
	}
	want := before.Add(DefaultTokenTTL).UnixMilli()
	if stored.Tokens.ExpiresAt < want || stored.Tokens.ExpiresAt > want+(10*time.Second).Milliseconds() {
		t.Errorf("ExpiresAt = %d, want about %d (default TTL)", stored.Tokens.ExpiresAt, want)
	}
	if stored.Tokens.NeedsRefresh() {
		t.Error("freshly refreshed token must be outside the refresh margin")
	}
}

func TestTokenSet_NeedsRefreshMargin(t *testing.T) {
	cases := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"no expiry", 0, false},
		{"far future", time.Now().Add(time.Hour).UnixMilli(), false},
		{"inside margin", time.Now().Add(10 * time.Second).UnixMilli(), true},
		{"already expired", time.Now().Add(-time.Minute).UnixMilli(), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := TokenSet{AccessToken: "at", ExpiresAt: tc.expiresAt}
			if got := ts.NeedsRefresh(); got != tc.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{AccessToken: "at"}}}
	m := NewManager(store, "http://127.0.0.1:1", "cli-test", nil)

	if !m.IsAuthenticated(context.Background()) {
		t.Fatal("expected authenticated before logout")
	}
	if err := m.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if m.IsAuthenticated(context.Background()) {
		t.Error("expected not authenticated after logout")
	}
	if stored, _ := store.Get(); stored != nil {
		t.Error("store should be empty after logout")
	}
}
