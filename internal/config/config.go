// Package config provides the conduit settings file.
//
// Settings hold everything needed before login: the OAuth client ID, the
// service endpoints, and the installer/server commands. Tokens never live
// here; they belong to the token store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	configDir  = ".config/conduit"
	configFile = "config.json"

	// DefaultAuthBaseURL is the Conduit Cloud auth service.
	DefaultAuthBaseURL = "https://auth.conduit.dev"

	// DefaultAPIBaseURL is the Conduit Cloud REST API.
	DefaultAPIBaseURL = "https://api.conduit.dev"

	// DefaultCallbackPort is the fixed loopback port registered as the
	// OAuth redirect URI. A deterministic port keeps the registered
	// redirect URI stable; a port-in-use failure is surfaced to the user
	// instead of silently picking another port.
	DefaultCallbackPort = 54321

	// DefaultScope is the OAuth scope requested at login.
	DefaultScope = "openid profile email projects"
)

// Settings is the root settings structure.
type Settings struct {
	// OAuthClientID is the registered OAuth client identifier. Login
	// refuses to start without it.
	OAuthClientID string `json:"oauthClientId"`

	// AuthBaseURL is the base URL of the OAuth service.
	AuthBaseURL string `json:"authBaseUrl,omitempty"`

	// APIBaseURL is the base URL of the REST API.
	APIBaseURL string `json:"apiBaseUrl,omitempty"`

	// CallbackPort overrides the fixed loopback callback port.
	CallbackPort int `json:"callbackPort,omitempty"`

	// Scope overrides the OAuth scope requested at login.
	Scope string `json:"scope,omitempty"`

	// InstallerCommand is the argv of the external MCP installer. The IDE
	// client tag is appended as the final argument.
	InstallerCommand []string `json:"installerCommand,omitempty"`

	// ServerCommand is the argv used to spawn the MCP server for
	// connection probing.
	ServerCommand []string `json:"serverCommand,omitempty"`

	// DefaultClient is the IDE client tag used when --client is omitted.
	DefaultClient string `json:"defaultClient,omitempty"`

	LastModified time.Time `json:"lastModified,omitempty"`
}

// NewSettings returns settings with defaults applied.
func NewSettings() *Settings {
	return &Settings{
		AuthBaseURL:      DefaultAuthBaseURL,
		APIBaseURL:       DefaultAPIBaseURL,
		CallbackPort:     DefaultCallbackPort,
		Scope:            DefaultScope,
		InstallerCommand: []string{"npx", "-y", "@conduit/mcp-install"},
		ServerCommand:    []string{"npx", "-y", "@conduit/mcp-server"},
	}
}

// applyDefaults backfills zero-valued fields on settings loaded from disk.
func (s *Settings) applyDefaults() {
	if s.AuthBaseURL == "" {
		s.AuthBaseURL = DefaultAuthBaseURL
	}
	if s.APIBaseURL == "" {
		s.APIBaseURL = DefaultAPIBaseURL
	}
	if s.CallbackPort == 0 {
		s.CallbackPort = DefaultCallbackPort
	}
	if s.Scope == "" {
		s.Scope = DefaultScope
	}
	if len(s.InstallerCommand) == 0 {
		s.InstallerCommand = []string{"npx", "-y", "@conduit/mcp-install"}
	}
	if len(s.ServerCommand) == 0 {
		s.ServerCommand = []string{"npx", "-y", "@conduit/mcp-server"}
	}
}

// Path returns the full path to the settings file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDir, configFile), nil
}

// Load reads the settings from the default path.
// Returns defaults if the file doesn't exist.
func Load() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the settings from a specific path.
// Returns defaults if the file doesn't exist.
func LoadFrom(path string) (*Settings, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSettings(), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()

	return &s, nil
}

// Save writes the settings to the default path atomically.
func Save(s *Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(s, path)
}

// SaveTo writes the settings to a specific path atomically.
// Uses a temp file + rename pattern for atomic writes.
func SaveTo(s *Settings, path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	s.LastModified = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("write temp settings: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("rename settings: %w", err)
	}

	return nil
}

// expandHome expands a leading ~/ in path.
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
