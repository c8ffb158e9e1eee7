// Package tui renders the connect flow's progress and the interactive
// org/project/client pickers.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/tui/theme"
)

// maxLogLines is how many recent installer lines stay on screen.
const maxLogLines = 8

// PhaseMsg announces the next step of the connect flow.
type PhaseMsg string

// DoneMsg ends the program. Err nil means the project verified.
type DoneMsg struct {
	Err   error
	Tools []string
}

// eventMsg wraps a bus event for the update loop.
type eventMsg struct {
	event events.Event
}

// ConnectModel is the progress view for `conduit connect`.
type ConnectModel struct {
	theme theme.Theme
	spin  spinner.Model

	phase    string
	logLines []string
	tools    []string

	done bool
	err  error

	eventCh     chan events.Event
	unsubscribe func()
}

// NewConnect creates the connect progress model subscribed to the bus.
func NewConnect(bus *events.Bus) *ConnectModel {
	th := theme.New()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.Primary

	m := &ConnectModel{
		theme:   th,
		spin:    sp,
		phase:   "starting",
		eventCh: make(chan events.Event, 64),
	}

	if bus != nil {
		m.unsubscribe = bus.Subscribe(func(e events.Event) {
			select {
			case m.eventCh <- e:
			default:
			}
		})
	}

	return m
}

func (m *ConnectModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return eventMsg{event: e}
	}
}

// Init starts the spinner and the event pump.
func (m *ConnectModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// Update handles progress messages, bus events, and keys.
func (m *ConnectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit
		}
		return m, nil

	case PhaseMsg:
		m.phase = string(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.tools = msg.Tools
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case eventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ConnectModel) applyEvent(e events.Event) {
	switch evt := e.(type) {
	case events.InstallerLogEvent:
		m.logLines = append(m.logLines, evt.Line)
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
	case events.ProjectStatusChangedEvent:
		switch evt.NewStatus {
		case "verifying":
			m.phase = "verifying MCP connection"
		case "verified":
			m.phase = "verified"
		case "failed":
			m.phase = "verification failed"
		}
	case events.MCPConnectedEvent:
		m.phase = fmt.Sprintf("agent connected via %s", evt.ToolName)
	}
}

// View renders the progress panel.
func (m *ConnectModel) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Title.Render("Connecting project"))
	b.WriteString("\n\n")

	if m.done {
		if m.err != nil {
			b.WriteString(m.theme.Danger.Render("✖ " + m.err.Error()))
		} else {
			b.WriteString(m.theme.Success.Render("● connected"))
			if len(m.tools) > 0 {
				b.WriteString(m.theme.Muted.Render("  tools: " + strings.Join(m.tools, ", ")))
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString(m.spin.View())
		b.WriteString(" ")
		b.WriteString(m.theme.Base.Render(m.phase))
		b.WriteString("\n")
	}

	for _, line := range m.logLines {
		b.WriteString(m.theme.Faint.Render("  " + line))
		b.WriteString("\n")
	}

	return m.theme.App.Render(b.String())
}

// Err returns the final error after the program has quit.
func (m *ConnectModel) Err() error {
	return m.err
}
