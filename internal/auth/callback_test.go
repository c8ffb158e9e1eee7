package auth

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

func TestCallbackServer_DeliversResult(t *testing.T) {
	server, err := NewCallbackServer(0)
	if err != nil {
		t.Fatalf("NewCallbackServer failed: %v", err)
	}
	defer server.Stop()

	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		resp, err := http.Get(server.RedirectURI() + "?code=abc&state=xyz")
		if err == nil {
			resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := server.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if result.Code != "abc" || result.State != "xyz" {
		t.Errorf("result = %+v, want code=abc state=xyz", result)
	}
}

func TestCallbackServer_PortInUse(t *testing.T) {
	first, err := NewCallbackServer(0)
	if err != nil {
		t.Fatalf("NewCallbackServer failed: %v", err)
	}
	defer first.Stop()

	_, err = NewCallbackServer(first.Port())
	if err == nil {
		t.Fatal("expected error binding an occupied port")
	}
	if !apperrors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCallbackServer_WaitCancelled(t *testing.T) {
	server, err := NewCallbackServer(0)
	if err != nil {
		t.Fatalf("NewCallbackServer failed: %v", err)
	}
	defer server.Stop()

	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := server.Wait(ctx); err == nil {
		t.Error("expected context error from cancelled Wait")
	}
}

func TestCallbackServer_ErrorPage(t *testing.T) {
	server, err := NewCallbackServer(0)
	if err != nil {
		t.Fatalf("NewCallbackServer failed: %v", err)
	}
	defer server.Stop()

	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("%s?error=access_denied", server.RedirectURI()))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for error callback", resp.StatusCode)
	}
}
