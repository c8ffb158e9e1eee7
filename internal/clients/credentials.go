package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// ServerEntryName is the key the installer writes the conduit server
// under in each client's MCP servers object.
const ServerEntryName = "conduit"

// Env var names the installer embeds in the server entry.
const (
	envAPIKey = "CONDUIT_API_KEY"
	envAPIURL = "CONDUIT_API_URL"
)

// placeholderTools is reported for external clients whose config this
// package cannot parse.
var placeholderTools = []string{"fetch-docs", "create-table"}

// Credentials is what the installer left behind in the client config.
type Credentials struct {
	APIKey  string
	BaseURL string

	// Tools is only populated for external clients, as a placeholder.
	Tools []string
}

// ErrEntryMissing distinguishes "file exists but has no conduit entry"
// from the file-missing case, which is an errors.ErrNotFound naming the
// exact path.
var ErrEntryMissing = fmt.Errorf("no %s entry in client config", ServerEntryName)

// errMalformed marks a settings file that exists but cannot be parsed,
// so the diagnostic says "corrupt" rather than "incomplete".
var errMalformed = errors.New("not valid JSON")

// ReadCredentials extracts the conduit entry's API key and base URL from
// a client's settings file. The installer may still be writing the file,
// so the not-found cases are expected during the verify retry loop.
func ReadCredentials(client ClientType, workDir string) (*Credentials, error) {
	cfg, err := lookup(client)
	if err != nil {
		return nil, apperrors.NewConfigurationError(err.Error(), nil)
	}

	// External clients manage their own format. Their installer talking
	// to its own CLI is the install proof; report placeholder tools.
	if cfg.External {
		return &Credentials{Tools: placeholderTools}, nil
	}

	path, err := SettingsPath(client, workDir)
	if err != nil {
		return nil, apperrors.NewConfigurationError(err.Error(), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("config file not found at %s", path), err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	entry, err := findServerEntry(data, cfg.ServersPath)
	if err != nil {
		// The file exists either way, so the verify loop still treats
		// this as entry-level, but a corrupt file says so.
		if errors.Is(err, errMalformed) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("config file at %s is %s", path, err), ErrEntryMissing)
		}
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("%s in %s", err, path), ErrEntryMissing)
	}

	creds := credentialsFromEntry(entry)
	if creds.APIKey == "" {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("%s entry in %s has no API key yet", ServerEntryName, path), ErrEntryMissing)
	}

	return creds, nil
}

// findServerEntry parses the settings file (JSONC tolerated) and walks
// the client-specific key path down to the conduit server entry.
func findServerEntry(data []byte, serversPath []string) (map[string]any, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	var root map[string]any
	if err := json.Unmarshal(standard, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	node := root
	for _, key := range serversPath {
		child, ok := node[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("no %s entry", ServerEntryName)
		}
		node = child
	}

	entry, ok := node[ServerEntryName].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("no %s entry", ServerEntryName)
	}
	return entry, nil
}

// credentialsFromEntry pulls the API key and URL out of the entry's env
// block. Other tools' entries in the same file are never touched.
func credentialsFromEntry(entry map[string]any) *Credentials {
	creds := &Credentials{}
	env, ok := entry["env"].(map[string]any)
	if !ok {
		return creds
	}
	if v, ok := env[envAPIKey].(string); ok {
		creds.APIKey = v
	}
	if v, ok := env[envAPIURL].(string); ok {
		creds.BaseURL = v
	}
	return creds
}
