package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

func TestClientDo_AttachesBearer(t *testing.T) {
	var gotAuth atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken: "at-live",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}}}
	client := NewClient(NewManager(store, "http://127.0.0.1:1", "cli-test", nil))

	req, _ := http.NewRequest("GET", api.URL+"/v1/profile", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if got := gotAuth.Load(); got != "Bearer at-live" {
		t.Errorf("Authorization = %q, want Bearer at-live", got)
	}
}

func TestClientDo_RefreshRetryOnceOn401(t *testing.T) {
	var refreshes atomic.Int32
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at-refreshed", ExpiresIn: 3600})
	}))
	defer authServer.Close()

	var apiCalls atomic.Int32
	var retryBody atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer at-refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		retryBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-revoked",
		RefreshToken: "rt-live",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}}}
	client := NewClient(NewManager(store, authServer.URL, "cli-test", nil))

	req, _ := http.NewRequest("POST", api.URL+"/v1/things", strings.NewReader(`{"name":"x"}`))
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after refresh-retry", resp.StatusCode)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshes.Load())
	}
	if apiCalls.Load() != 2 {
		t.Errorf("api calls = %d, want 2 (original + retry)", apiCalls.Load())
	}
	if got := retryBody.Load(); got != `{"name":"x"}` {
		t.Errorf("retry body = %q, want the original body replayed", got)
	}
}

func TestClientDo_SecondUnauthorizedFails(t *testing.T) {
	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at-still-bad", ExpiresIn: 3600})
	}))
	defer authServer.Close()

	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	store := &memStore{rec: &StoredAuth{Tokens: TokenSet{
		AccessToken:  "at-revoked",
		RefreshToken: "rt-live",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}}}
	client := NewClient(NewManager(store, authServer.URL, "cli-test", nil))

	req, _ := http.NewRequest("GET", api.URL+"/v1/profile", nil)
	_, err := client.Do(context.Background(), req)
	if err == nil {
		t.Fatal("expected error after second 401")
	}
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	if apiCalls.Load() != 2 {
		t.Errorf("api calls = %d, want exactly 2 (no retry loop)", apiCalls.Load())
	}
}
