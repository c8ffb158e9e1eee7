// Package events provides the event system for conduit.
//
// The core components publish events here; the presentation layer (CLI
// output, the connect TUI) subscribes. Core code never depends on how the
// events are rendered.
package events

import (
	"time"
)

// EventType identifies the kind of event.
type EventType int

const (
	EventAuthChanged EventType = iota
	EventProjectStatusChanged
	EventInstallerLog
	EventMCPConnected
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventAuthChanged:
		return "auth_changed"
	case EventProjectStatusChanged:
		return "project_status_changed"
	case EventInstallerLog:
		return "installer_log"
	case EventMCPConnected:
		return "mcp_connected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	ProjectID() string
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	projectID string
	timestamp time.Time
}

func (e baseEvent) ProjectID() string    { return e.projectID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// AuthChangedEvent is emitted when the login state flips.
type AuthChangedEvent struct {
	baseEvent
	LoggedIn bool
	Email    string
}

func (AuthChangedEvent) Type() EventType { return EventAuthChanged }

// NewAuthChangedEvent creates an auth-changed event.
func NewAuthChangedEvent(loggedIn bool, email string) AuthChangedEvent {
	return AuthChangedEvent{
		baseEvent: baseEvent{timestamp: time.Now()},
		LoggedIn:  loggedIn,
		Email:     email,
	}
}

// ProjectStatusChangedEvent is emitted on every status map transition.
type ProjectStatusChangedEvent struct {
	baseEvent
	OldStatus string
	NewStatus string
	Tools     []string
	Error     string
}

func (ProjectStatusChangedEvent) Type() EventType { return EventProjectStatusChanged }

// NewProjectStatusChangedEvent creates a project-status-changed event.
func NewProjectStatusChangedEvent(projectID, oldStatus, newStatus string, tools []string, errMsg string) ProjectStatusChangedEvent {
	return ProjectStatusChangedEvent{
		baseEvent: baseEvent{projectID: projectID, timestamp: time.Now()},
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Tools:     tools,
		Error:     errMsg,
	}
}

// InstallerLogEvent carries one line of installer output.
type InstallerLogEvent struct {
	baseEvent
	Line   string
	Stderr bool
}

func (InstallerLogEvent) Type() EventType { return EventInstallerLog }

// NewInstallerLogEvent creates an installer-log event.
func NewInstallerLogEvent(projectID, line string, stderr bool) InstallerLogEvent {
	return InstallerLogEvent{
		baseEvent: baseEvent{projectID: projectID, timestamp: time.Now()},
		Line:      line,
		Stderr:    stderr,
	}
}

// MCPConnectedEvent is the realtime confirmation that an agent actually
// reached the installed server. It only flips the real-connected flag used
// for UI sequencing; it is never persisted beyond that.
type MCPConnectedEvent struct {
	baseEvent
	ToolName  string
	CreatedAt time.Time
}

func (MCPConnectedEvent) Type() EventType { return EventMCPConnected }

// NewMCPConnectedEvent creates an MCP-connected event.
func NewMCPConnectedEvent(projectID, toolName string, createdAt time.Time) MCPConnectedEvent {
	return MCPConnectedEvent{
		baseEvent: baseEvent{projectID: projectID, timestamp: time.Now()},
		ToolName:  toolName,
		CreatedAt: createdAt,
	}
}

// ErrorEvent reports a non-fatal error tied to a project.
type ErrorEvent struct {
	baseEvent
	Err     error
	Context string
}

func (ErrorEvent) Type() EventType { return EventError }

// NewErrorEvent creates an error event.
func NewErrorEvent(projectID string, err error, context string) ErrorEvent {
	return ErrorEvent{
		baseEvent: baseEvent{projectID: projectID, timestamp: time.Now()},
		Err:       err,
		Context:   context,
	}
}
