// Package clients knows the supported IDE clients: where each one keeps its
// MCP settings file and how to pull the conduit entry's credentials back
// out after the installer has written them.
package clients

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// ClientType identifies a supported IDE client.
type ClientType string

const (
	// Cursor represents the Cursor editor.
	Cursor ClientType = "cursor"
	// VSCode represents the standard VS Code editor.
	VSCode ClientType = "vscode"
	// VSCodeInsiders represents the VS Code Insiders editor.
	VSCodeInsiders ClientType = "vscode-insiders"
	// Cline represents the Cline extension for VS Code.
	Cline ClientType = "cline"
	// RooCode represents the Roo Code extension for VS Code.
	RooCode ClientType = "roo-code"
	// Windsurf represents the Windsurf editor.
	Windsurf ClientType = "windsurf"
	// ClaudeCode represents the Claude Code CLI, which manages its own
	// config format.
	ClaudeCode ClientType = "claude-code"
)

// Scope says whether a client's settings file is user-global or lives in
// the project working directory.
type Scope string

const (
	// ScopeGlobal means the settings file is user-scoped.
	ScopeGlobal Scope = "global"
	// ScopeProject means the settings file lives under the working dir.
	ScopeProject Scope = "project"
)

// clientConfig describes one supported client's settings location.
type clientConfig struct {
	ClientType   ClientType
	Description  string
	SettingsFile string
	// RelPath is the path under the platform prefix (global scope) or
	// under the working directory (project scope).
	RelPath []string
	// PlatformPrefix is the per-OS path from the home dir to the
	// client's config root. Empty for project-scoped clients.
	PlatformPrefix map[string][]string
	Scope          Scope
	// ServersPath is the key path from the file root to the MCP servers
	// object that holds the conduit entry.
	ServersPath []string
	// External marks clients whose installer manages its own config
	// format; their settings file is never parsed here.
	External bool
}

var supportedClients = []clientConfig{
	{
		ClientType:   Cursor,
		Description:  "Cursor editor",
		SettingsFile: "mcp.json",
		RelPath:      []string{".cursor"},
		Scope:        ScopeProject,
		ServersPath:  []string{"mcpServers"},
	},
	{
		ClientType:   VSCode,
		Description:  "Visual Studio Code",
		SettingsFile: "settings.json",
		RelPath:      []string{"Code", "User"},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		Scope:       ScopeGlobal,
		ServersPath: []string{"mcp", "servers"},
	},
	{
		ClientType:   VSCodeInsiders,
		Description:  "Visual Studio Code Insiders",
		SettingsFile: "settings.json",
		RelPath:      []string{"Code - Insiders", "User"},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		Scope:       ScopeGlobal,
		ServersPath: []string{"mcp", "servers"},
	},
	{
		ClientType:   Cline,
		Description:  "VS Code Cline extension",
		SettingsFile: "cline_mcp_settings.json",
		RelPath: []string{
			"Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings",
		},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		Scope:       ScopeGlobal,
		ServersPath: []string{"mcpServers"},
	},
	{
		ClientType:   RooCode,
		Description:  "VS Code Roo Code extension",
		SettingsFile: "mcp_settings.json",
		RelPath: []string{
			"Code", "User", "globalStorage", "rooveterinaryinc.roo-cline", "settings",
		},
		PlatformPrefix: map[string][]string{
			"linux":   {".config"},
			"darwin":  {"Library", "Application Support"},
			"windows": {"AppData", "Roaming"},
		},
		Scope:       ScopeGlobal,
		ServersPath: []string{"mcpServers"},
	},
	{
		ClientType:   Windsurf,
		Description:  "Windsurf editor",
		SettingsFile: "mcp_config.json",
		RelPath:      []string{".codeium", "windsurf"},
		PlatformPrefix: map[string][]string{
			"linux":   {},
			"darwin":  {},
			"windows": {},
		},
		Scope:       ScopeGlobal,
		ServersPath: []string{"mcpServers"},
	},
	{
		ClientType:   ClaudeCode,
		Description:  "Claude Code CLI",
		SettingsFile: ".claude.json",
		RelPath:      []string{},
		PlatformPrefix: map[string][]string{
			"linux":   {},
			"darwin":  {},
			"windows": {},
		},
		Scope:    ScopeGlobal,
		External: true,
	},
}

// Supported returns the identifiers of all supported clients, sorted.
func Supported() []ClientType {
	out := make([]ClientType, 0, len(supportedClients))
	for _, c := range supportedClients {
		out = append(out, c.ClientType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe returns the human-readable name for a client.
func Describe(client ClientType) string {
	cfg, err := lookup(client)
	if err != nil {
		return string(client)
	}
	return cfg.Description
}

// IsExternal reports whether the client manages its own config format.
func IsExternal(client ClientType) bool {
	cfg, err := lookup(client)
	return err == nil && cfg.External
}

func lookup(client ClientType) (*clientConfig, error) {
	for i := range supportedClients {
		if supportedClients[i].ClientType == client {
			return &supportedClients[i], nil
		}
	}
	return nil, fmt.Errorf("unsupported client %q", client)
}

// SettingsPath computes the settings file path for a client. workDir is
// only used for project-scoped clients; global clients resolve against
// the home directory and the per-OS prefix.
func SettingsPath(client ClientType, workDir string) (string, error) {
	cfg, err := lookup(client)
	if err != nil {
		return "", err
	}

	if cfg.Scope == ScopeProject {
		if workDir == "" {
			var err error
			workDir, err = os.Getwd()
			if err != nil {
				return "", fmt.Errorf("get working dir: %w", err)
			}
		}
		parts := append([]string{workDir}, cfg.RelPath...)
		parts = append(parts, cfg.SettingsFile)
		return filepath.Join(parts...), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}

	prefix, ok := cfg.PlatformPrefix[runtime.GOOS]
	if !ok {
		return "", fmt.Errorf("client %q is not supported on %s", client, runtime.GOOS)
	}

	parts := append([]string{home}, prefix...)
	parts = append(parts, cfg.RelPath...)
	parts = append(parts, cfg.SettingsFile)
	return filepath.Join(parts...), nil
}
