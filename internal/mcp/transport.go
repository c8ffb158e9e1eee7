// Package mcp probes a freshly installed MCP server: it spawns the server
// process, runs the initialize + tools/list handshake over NDJSON stdio,
// and reports whether the install actually works.
package mcp

import (
	"context"
)

// Transport carries JSON-RPC messages to and from the server process.
type Transport interface {
	// Send sends a JSON-RPC message.
	Send(ctx context.Context, msg []byte) error
	// Receive reads the next JSON-RPC message.
	Receive(ctx context.Context) ([]byte, error)
	// Close closes the transport.
	Close() error
}

// Tool is an MCP tool definition as reported by tools/list.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}
