package auth

import "sync"

// Selection is the active org/project choice for this run. IDs are what
// the API layer needs; names are kept for display.
type Selection struct {
	OrgID       string
	OrgName     string
	ProjectID   string
	ProjectName string
}

// Session holds the mutable per-run selection state. It is passed by
// reference into operations that need the active selection instead of
// living in a package-level variable, and is reset on logout.
type Session struct {
	mu  sync.RWMutex
	sel Selection
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// SetOrg records the active organization and clears any project chosen
// under a previous org.
func (s *Session) SetOrg(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.OrgID != id {
		s.sel.ProjectID = ""
		s.sel.ProjectName = ""
	}
	s.sel.OrgID = id
	s.sel.OrgName = name
}

// SetProject records the active project.
func (s *Session) SetProject(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.ProjectID = id
	s.sel.ProjectName = name
}

// Current returns a copy of the active selection.
func (s *Session) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Reset clears the selection. Called on logout.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selection{}
}
