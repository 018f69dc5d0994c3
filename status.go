package orchestrator

import (
	"slices"
	"sync"
)

// StatusChangeFunc observes component status transitions. Callbacks run
// synchronously on the goroutine performing the transition, outside the
// tracker's lock, and must return quickly.
type StatusChangeFunc func(componentID string, previous, current ComponentStatus)

// StatusTracker is the coarse-locked owner of every component's
// lifecycle status. Only orchestrator subsystems write it — the plan
// executor, the recovery controller, and the maintenance scheduler;
// components themselves only ever report health.
type StatusTracker struct {
	mu        sync.RWMutex
	statuses  map[string]ComponentStatus
	callbacks []StatusChangeFunc
}

// NewStatusTracker creates an empty tracker. Unknown components report
// StatusUninitialized.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]ComponentStatus)}
}

// OnChange registers a transition callback.
func (t *StatusTracker) OnChange(fn StatusChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, fn)
}

// Get returns the current status of a component.
func (t *StatusTracker) Get(id string) ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, ok := t.statuses[id]
	if !ok {
		return StatusUninitialized
	}
	return status
}

// Set records a status transition and notifies callbacks. Setting the
// current status again is a no-op.
func (t *StatusTracker) Set(id string, status ComponentStatus) {
	t.mu.Lock()
	previous, ok := t.statuses[id]
	if !ok {
		previous = StatusUninitialized
	}
	if previous == status {
		t.mu.Unlock()
		return
	}
	t.statuses[id] = status
	callbacks := slices.Clone(t.callbacks)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(id, previous, status)
	}
}

// Snapshot returns a copy of all known statuses.
func (t *StatusTracker) Snapshot() map[string]ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]ComponentStatus, len(t.statuses))
	for id, status := range t.statuses {
		snapshot[id] = status
	}
	return snapshot
}
