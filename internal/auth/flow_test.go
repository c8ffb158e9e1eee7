package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// memStore is an in-memory CredentialStore for tests.
type memStore struct {
	mu  sync.Mutex
	rec *StoredAuth
}

func (s *memStore) Get() (*StoredAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

func (s *memStore) Put(rec *StoredAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

// fakeProvider runs an httptest server that plays both the auth server
// and the API, counting token exchanges.
type fakeProvider struct {
	server    *httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			http.Error(w, "expected JSON body", http.StatusBadRequest)
			return
		}
		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		switch params["grant_type"] {
		case "authorization_code":
			p.exchanges.Add(1)
			if params["code_verifier"] == "" {
				http.Error(w, "missing code_verifier", http.StatusBadRequest)
				return
			}
		case "refresh_token":
			p.refreshes.Add(1)
		default:
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "at-new",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
			RefreshToken: "rt-new",
		})
	})
	mux.HandleFunc("/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-new" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(UserData{ID: "u1", Email: "dev@example.com", Name: "Dev"})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

// driveBrowser simulates the user completing authorization: it parses
// the authorization URL and hits the redirect URI with the given state.
func driveBrowser(t *testing.T, stateOverride string) func(string) error {
	t.Helper()
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		state := q.Get("state")
		if stateOverride != "" {
			state = stateOverride
		}
		redirect := q.Get("redirect_uri")
		go func() {
			// Small delay so Login reaches Wait first.
			time.Sleep(20 * time.Millisecond)
			resp, err := http.Get(redirect + "?code=code123&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestLogin_Success(t *testing.T) {
	provider := newFakeProvider(t)
	store := &memStore{}

	flow := NewFlow(FlowConfig{
		ClientID:     "cli-test",
		AuthBaseURL:  provider.server.URL,
		APIBaseURL:   provider.server.URL,
		CallbackPort: 0,
		Scope:        "openid profile",
		Store:        store,
		OpenBrowser:  driveBrowser(t, ""),
	})

	auth, err := flow.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if auth.Tokens.AccessToken != "at-new" {
		t.Errorf("access token = %q, want at-new", auth.Tokens.AccessToken)
	}
	if auth.Tokens.RefreshToken != "rt-new" {
		t.Errorf("refresh token = %q, want rt-new", auth.Tokens.RefreshToken)
	}
	if auth.Tokens.ExpiresAt == 0 {
		t.Error("expected nonzero expiry")
	}
	if auth.User == nil || auth.User.Email != "dev@example.com" {
		t.Errorf("user = %+v, want profile with dev@example.com", auth.User)
	}

	if got := provider.exchanges.Load(); got != 1 {
		t.Errorf("token exchanges = %d, want exactly 1", got)
	}

	stored, _ := store.Get()
	if stored == nil || stored.Tokens.AccessToken != "at-new" {
		t.Error("tokens were not persisted")
	}
}

func TestLogin_StateMismatchNeverExchanges(t *testing.T) {
	provider := newFakeProvider(t)
	store := &memStore{}

	flow := NewFlow(FlowConfig{
		ClientID:     "cli-test",
		AuthBaseURL:  provider.server.URL,
		APIBaseURL:   provider.server.URL,
		CallbackPort: 0,
		Store:        store,
		OpenBrowser:  driveBrowser(t, "forged-state"),
	})

	_, err := flow.Login(context.Background())
	if err == nil {
		t.Fatal("expected error on state mismatch")
	}
	if !apperrors.IsSecurity(err) {
		t.Errorf("expected security error, got %v", err)
	}

	if got := provider.exchanges.Load(); got != 0 {
		t.Errorf("token exchanges = %d, want 0 after state mismatch", got)
	}
	if stored, _ := store.Get(); stored != nil {
		t.Error("no credentials should be stored after a failed login")
	}
}

func TestLogin_MissingClientID(t *testing.T) {
	flow := NewFlow(FlowConfig{
		AuthBaseURL: "http://127.0.0.1:1",
		Store:       &memStore{},
	})

	_, err := flow.Login(context.Background())
	if err == nil {
		t.Fatal("expected error for missing client ID")
	}
	if !apperrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLogin_ProviderError(t *testing.T) {
	provider := newFakeProvider(t)
	store := &memStore{}

	// Simulate the provider redirecting back with an error instead of a code.
	openBrowser := func(authURL string) error {
		u, _ := url.Parse(authURL)
		redirect := u.Query().Get("redirect_uri")
		go func() {
			time.Sleep(20 * time.Millisecond)
			resp, err := http.Get(redirect + "?error=access_denied&error_description=user+cancelled")
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	flow := NewFlow(FlowConfig{
		ClientID:     "cli-test",
		AuthBaseURL:  provider.server.URL,
		APIBaseURL:   provider.server.URL,
		CallbackPort: 0,
		Store:        store,
		OpenBrowser:  openBrowser,
	})

	_, err := flow.Login(context.Background())
	if err == nil {
		t.Fatal("expected error when provider denies")
	}
	if !apperrors.IsProvider(err) {
		t.Errorf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "access_denied") {
		t.Errorf("error should name the provider error code, got %v", err)
	}
}

func TestLogin_SurvivesProfileFailure(t *testing.T) {
	// Token endpoint works but profile endpoint 500s: login must still
	// succeed with tokens and no user.
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at-new", ExpiresIn: 3600})
	})
	mux.HandleFunc("/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := &memStore{}
	flow := NewFlow(FlowConfig{
		ClientID:     "cli-test",
		AuthBaseURL:  server.URL,
		APIBaseURL:   server.URL,
		CallbackPort: 0,
		Store:        store,
		OpenBrowser:  driveBrowser(t, ""),
	})

	auth, err := flow.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if auth.Tokens.AccessToken != "at-new" {
		t.Errorf("access token = %q, want at-new", auth.Tokens.AccessToken)
	}
	if auth.User != nil {
		t.Errorf("user = %+v, want nil after profile failure", auth.User)
	}
}

func TestTokenSetFromResponse_DefaultsExpiry(t *testing.T) {
	before := time.Now()
	ts := tokenSetFromResponse(&TokenResponse{AccessToken: "at"})

	if ts.ExpiresAt == 0 {
		t.Fatal("expiry must be set when the response omits expires_in")
	}
	want := before.Add(DefaultTokenTTL).UnixMilli()
	if ts.ExpiresAt < want || ts.ExpiresAt > want+(10*time.Second).Milliseconds() {
		t.Errorf("ExpiresAt = %d, want about %d (default TTL)", ts.ExpiresAt, want)
	}
	if ts.NeedsRefresh() {
		t.Error("a just-minted token must not need refresh")
	}
}
