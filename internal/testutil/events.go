package testutil

import (
	"sync"
	"time"

	"github.com/conduit-dev/conduit/internal/events"
)

// EventCollector is a thread-safe event collector for test assertions.
// Subscribe its Handler to an event bus and then query collected events.
type EventCollector struct {
	mu       sync.Mutex
	events   []events.Event
	statuses map[string][]string
	cond     *sync.Cond
}

// NewEventCollector creates a new EventCollector.
func NewEventCollector() *EventCollector {
	ec := &EventCollector{
		events:   make([]events.Event, 0),
		statuses: make(map[string][]string),
	}
	ec.cond = sync.NewCond(&ec.mu)
	return ec
}

// Handler returns a function suitable for bus.Subscribe().
func (c *EventCollector) Handler(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, e)

	if evt, ok := e.(events.ProjectStatusChangedEvent); ok {
		c.statuses[evt.ProjectID()] = append(c.statuses[evt.ProjectID()], evt.NewStatus)
	}

	c.cond.Broadcast()
}

// Events returns all collected events.
func (c *EventCollector) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]events.Event, len(c.events))
	copy(result, c.events)
	return result
}

// StatusesFor returns the status transitions observed for a project.
func (c *EventCollector) StatusesFor(projectID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.statuses[projectID]))
	copy(result, c.statuses[projectID])
	return result
}

// WaitForStatus blocks until the project reaches the given status or the
// timeout elapses. Returns true if the status was observed.
func (c *EventCollector) WaitForStatus(projectID, status string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for _, s := range c.statuses[projectID] {
			if s == status {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		// Wake periodically so a missed broadcast cannot hang the test.
		waker := time.AfterFunc(50*time.Millisecond, c.cond.Broadcast)
		c.cond.Wait()
		waker.Stop()
	}
}
