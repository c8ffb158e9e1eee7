package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if s.AuthBaseURL != DefaultAuthBaseURL {
		t.Errorf("AuthBaseURL = %q", s.AuthBaseURL)
	}
	if s.CallbackPort != DefaultCallbackPort {
		t.Errorf("CallbackPort = %d", s.CallbackPort)
	}
	if s.OAuthClientID != "" {
		t.Errorf("OAuthClientID should default empty, got %q", s.OAuthClientID)
	}
	if len(s.InstallerCommand) == 0 {
		t.Error("InstallerCommand should have a default")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	s := NewSettings()
	s.OAuthClientID = "conduit-cli"
	s.DefaultClient = "cursor"
	if err := SaveTo(s, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.OAuthClientID != "conduit-cli" {
		t.Errorf("OAuthClientID = %q", loaded.OAuthClientID)
	}
	if loaded.DefaultClient != "cursor" {
		t.Errorf("DefaultClient = %q", loaded.DefaultClient)
	}
	if loaded.LastModified.IsZero() {
		t.Error("LastModified should be set on save")
	}
}

func TestLoadBackfillsDefaultsOnPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"oauthClientId":"abc"}`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if s.OAuthClientID != "abc" {
		t.Errorf("OAuthClientID = %q", s.OAuthClientID)
	}
	if s.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL should be backfilled, got %q", s.APIBaseURL)
	}
	if s.Scope != DefaultScope {
		t.Errorf("Scope should be backfilled, got %q", s.Scope)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for malformed settings file")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if err := SaveTo(NewSettings(), path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}
