// Package status is the reconciler for per-project MCP install status.
// It owns the persisted status map, enforces the single-verified
// invariant, and fans out change notifications over the event bus.
package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/state"
)

// Status values for a project's MCP install.
const (
	StatusNone      = "none"
	StatusVerifying = "verifying"
	StatusVerified  = "verified"
	StatusFailed    = "failed"
)

// statusDoc is the persisted document name in the state store.
const statusDoc = "mcp-status"

// ProjectStatus is one project's entry in the persisted map.
type ProjectStatus struct {
	ProjectID   string    `json:"project_id"`
	Status      string    `json:"status"`
	Client      string    `json:"client,omitempty"`
	Tools       []string  `json:"tools,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// document is the full persisted state.
type document struct {
	Projects map[string]ProjectStatus `json:"projects"`

	// RealConnected is flipped by the first realtime MCP-connected
	// event after a verify; UI sequencing only.
	RealConnected bool `json:"real_connected"`
}

// Reconciler serializes status mutations and persists them.
type Reconciler struct {
	store state.Store
	bus   *events.Bus

	// mu guards the document read-modify-write.
	mu sync.Mutex

	// projectMu serializes verify attempts per project so two concurrent
	// retries for the same project cannot interleave their mark calls.
	projectMuMu sync.Mutex
	projectMu   map[string]*sync.Mutex
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store state.Store, bus *events.Bus) *Reconciler {
	return &Reconciler{
		store:     store,
		bus:       bus,
		projectMu: make(map[string]*sync.Mutex),
	}
}

// LockProject returns an unlock func after acquiring the per-project
// verify lock. Callers hold it across an entire install+verify attempt.
func (r *Reconciler) LockProject(projectID string) func() {
	r.projectMuMu.Lock()
	mu, ok := r.projectMu[projectID]
	if !ok {
		mu = &sync.Mutex{}
		r.projectMu[projectID] = mu
	}
	r.projectMuMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (r *Reconciler) load() (*document, error) {
	data, err := r.store.Load(statusDoc)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &document{Projects: make(map[string]ProjectStatus)}, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse status state: %w", err)
	}
	if doc.Projects == nil {
		doc.Projects = make(map[string]ProjectStatus)
	}
	return &doc, nil
}

func (r *Reconciler) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status state: %w", err)
	}
	return r.store.Save(statusDoc, data)
}

// mutate runs one atomic read-modify-write and publishes the change.
func (r *Reconciler) mutate(projectID string, fn func(doc *document) ProjectStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	old := doc.Projects[projectID]
	entry := fn(doc)
	entry.ProjectID = projectID
	entry.LastUpdated = time.Now()
	doc.Projects[projectID] = entry

	if err := r.save(doc); err != nil {
		return err
	}

	if r.bus != nil {
		oldStatus := old.Status
		if oldStatus == "" {
			oldStatus = StatusNone
		}
		r.bus.Publish(events.NewProjectStatusChangedEvent(
			projectID, oldStatus, entry.Status, entry.Tools, entry.Error))
	}
	return nil
}

// MarkVerifying records that a verify run has started.
func (r *Reconciler) MarkVerifying(projectID, client string) error {
	return r.mutate(projectID, func(doc *document) ProjectStatus {
		return ProjectStatus{Status: StatusVerifying, Client: client}
	})
}

// MarkVerified records a successful verify. Any other project currently
// verified is demoted to none first: at most one project is verified.
func (r *Reconciler) MarkVerified(projectID, client string, tools []string) error {
	return r.mutate(projectID, func(doc *document) ProjectStatus {
		for id, entry := range doc.Projects {
			if id != projectID && entry.Status == StatusVerified {
				entry.Status = StatusNone
				entry.Tools = nil
				entry.LastUpdated = time.Now()
				doc.Projects[id] = entry
			}
		}
		// A fresh verify invalidates any previous realtime confirmation.
		doc.RealConnected = false
		return ProjectStatus{Status: StatusVerified, Client: client, Tools: tools}
	})
}

// MarkFailed records a failed verify with its diagnostic.
func (r *Reconciler) MarkFailed(projectID, client string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.mutate(projectID, func(doc *document) ProjectStatus {
		return ProjectStatus{Status: StatusFailed, Client: client, Error: msg}
	})
}

// Reset sets a project back to none, keeping the entry.
func (r *Reconciler) Reset(projectID string) error {
	return r.mutate(projectID, func(doc *document) ProjectStatus {
		return ProjectStatus{Status: StatusNone}
	})
}

// ClearAll wipes the whole map and the real-connected flag.
func (r *Reconciler) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(&document{Projects: make(map[string]ProjectStatus)})
}

// SetRealConnected flips the realtime-confirmation flag from an
// MCP-connected event.
func (r *Reconciler) SetRealConnected(event events.MCPConnectedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.RealConnected = true
	return r.save(doc)
}

// RealConnected reports the realtime-confirmation flag.
func (r *Reconciler) RealConnected() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return false, err
	}
	return doc.RealConnected, nil
}

// GetStatus returns a project's status, StatusNone for unknown projects.
func (r *Reconciler) GetStatus(projectID string) (ProjectStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return ProjectStatus{}, err
	}
	entry, ok := doc.Projects[projectID]
	if !ok {
		return ProjectStatus{ProjectID: projectID, Status: StatusNone}, nil
	}
	return entry, nil
}

// GetTools returns the tool list recorded for a project.
func (r *Reconciler) GetTools(projectID string) ([]string, error) {
	entry, err := r.GetStatus(projectID)
	if err != nil {
		return nil, err
	}
	return entry.Tools, nil
}

// GetInstalledProject returns the verified project entry, or nil when no
// project is verified.
func (r *Reconciler) GetInstalledProject() (*ProjectStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, entry := range doc.Projects {
		if entry.Status == StatusVerified {
			e := entry
			return &e, nil
		}
	}
	return nil, nil
}

// All returns every entry sorted by project ID, for status listings.
func (r *Reconciler) All() ([]ProjectStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]ProjectStatus, 0, len(doc.Projects))
	for _, entry := range doc.Projects {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}
