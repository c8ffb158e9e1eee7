package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol version the probe speaks.
const ProtocolVersion = "2024-11-05"

// Request IDs are fixed: the probe sends exactly two requests.
const (
	initializeID = 1
	toolsListID  = 2
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

func newInitializeRequest() ([]byte, error) {
	return json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      initializeID,
		Method:  "initialize",
		Params: initializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{},
			ClientInfo:      clientInfo{Name: "conduit", Version: "0.1.0"},
		},
	})
}

func newInitializedNotification() ([]byte, error) {
	return json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
}

func newToolsListRequest() ([]byte, error) {
	return json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      toolsListID,
		Method:  "tools/list",
	})
}

// lineOutcome classifies one incoming NDJSON line.
type lineOutcome int

const (
	// lineIrrelevant is a notification, a non-final response, or noise.
	lineIrrelevant lineOutcome = iota
	// lineTools carries a tools array: the probe succeeded.
	lineTools
	// lineError carries a JSON-RPC error envelope: the probe failed.
	lineError
)

// classifyLine inspects one incoming line. A tools array anywhere in a
// result resolves success; an error envelope resolves failure; anything
// else (the initialize response included) is ignored.
func classifyLine(line []byte) (lineOutcome, []string, error) {
	if len(line) == 0 {
		return lineIrrelevant, nil, nil
	}

	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		// Not JSON-RPC; servers sometimes print banners to stdout.
		return lineIrrelevant, nil, nil
	}

	if resp.Error != nil {
		return lineError, nil, resp.Error
	}

	if len(resp.Result) == 0 {
		return lineIrrelevant, nil, nil
	}

	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.Tools == nil {
		return lineIrrelevant, nil, nil
	}

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	return lineTools, names, nil
}
