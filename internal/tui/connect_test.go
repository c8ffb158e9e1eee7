package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/testutil"
)

func TestConnectModel_PhaseAndDone(t *testing.T) {
	m := NewConnect(nil)

	model, _ := m.Update(PhaseMsg("running installer"))
	m = model.(*ConnectModel)

	view := testutil.StripANSI(m.View())
	if !strings.Contains(view, "running installer") {
		t.Errorf("view should show the phase, got %q", view)
	}

	model, _ = m.Update(DoneMsg{Tools: []string{"fetch-docs"}})
	m = model.(*ConnectModel)

	view = testutil.StripANSI(m.View())
	if !strings.Contains(view, "connected") {
		t.Errorf("view should show success, got %q", view)
	}
	if !strings.Contains(view, "fetch-docs") {
		t.Errorf("view should list tools, got %q", view)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
}

func TestConnectModel_FailureShown(t *testing.T) {
	m := NewConnect(nil)

	model, _ := m.Update(DoneMsg{Err: fmt.Errorf("config file not found at /x")})
	m = model.(*ConnectModel)

	view := testutil.StripANSI(m.View())
	if !strings.Contains(view, "config file not found at /x") {
		t.Errorf("view should show the diagnostic, got %q", view)
	}
	if m.Err() == nil {
		t.Error("Err() should be set")
	}
}

func TestConnectModel_InstallerLogRing(t *testing.T) {
	m := NewConnect(nil)

	for i := 0; i < maxLogLines+4; i++ {
		m.applyEvent(events.NewInstallerLogEvent("p1", fmt.Sprintf("line %d", i), false))
	}

	if len(m.logLines) != maxLogLines {
		t.Errorf("log lines = %d, want capped at %d", len(m.logLines), maxLogLines)
	}
	view := testutil.StripANSI(m.View())
	if strings.Contains(view, "line 0") {
		t.Error("oldest lines should have rolled off")
	}
	if !strings.Contains(view, fmt.Sprintf("line %d", maxLogLines+3)) {
		t.Error("newest line should be visible")
	}
}

func TestConnectModel_StatusEventsUpdatePhase(t *testing.T) {
	m := NewConnect(nil)

	m.applyEvent(events.NewProjectStatusChangedEvent("p1", "none", "verifying", nil, ""))
	if !strings.Contains(m.phase, "verifying") {
		t.Errorf("phase = %q, want verifying", m.phase)
	}

	m.applyEvent(events.NewProjectStatusChangedEvent("p1", "verifying", "verified", []string{"fetch-docs"}, ""))
	if m.phase != "verified" {
		t.Errorf("phase = %q, want verified", m.phase)
	}
}
