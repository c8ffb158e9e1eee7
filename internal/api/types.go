// Package api is the Conduit Cloud REST client: read-only projections of
// organizations and projects, API key minting, and the latest-connection
// poll the verify flow uses for realtime confirmation.
package api

import "time"

// Organization is a read-only projection from the API.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Project is a read-only projection from the API. Never mutated locally.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Region     string `json:"region,omitempty"`
	AppSlug    string `json:"app_slug,omitempty"`
	Status     string `json:"status,omitempty"`
	DiskSizeGB int    `json:"disk_size_gb,omitempty"`
}

// APIKey is a freshly minted project API key. The Key value is
// secret-grade: passed to subprocesses via environment only, never logged
// in plaintext.
type APIKey struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// MCPConnection is the latest recorded MCP connection for a project.
type MCPConnection struct {
	ToolName  string    `json:"tool_name"`
	CreatedAt time.Time `json:"created_at"`
}

type organizationsResponse struct {
	Organizations []Organization `json:"organizations"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
}
