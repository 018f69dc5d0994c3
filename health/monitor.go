package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Static errors for the health monitor.
var (
	ErrMonitorRunning   = errors.New("health monitor is already running")
	ErrTargetIDEmpty    = errors.New("target id cannot be empty")
	ErrTargetNotTracked = errors.New("target is not tracked")
)

// StatusChangeCallback is invoked when a component's aggregated health
// status transitions. Callbacks run on the monitor goroutine and must
// return quickly.
type StatusChangeCallback func(componentID string, previous, current Result)

// MonitorConfig configures the polling loop.
type MonitorConfig struct {
	// Interval between poll passes. Default 30s.
	Interval time.Duration

	// CheckTimeout bounds each individual target probe. Default 10s.
	CheckTimeout time.Duration

	// HistorySize caps the rolling observation history; the oldest
	// entries are dropped beyond it. Default 1000.
	HistorySize int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 10 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
	return c
}

// HistoryEntry is one recorded health observation.
type HistoryEntry struct {
	ComponentID string
	Result      Result
}

type targetState struct {
	target   Target
	interval time.Duration // per-target override, 0 means monitor default
	lastRun  time.Time
	paused   bool
}

// Monitor polls registered targets on a fixed interval, dispatches each
// to its type's check strategy, aggregates multi-result checks by
// worst-status-wins, retains a bounded rolling history, and notifies
// callbacks on per-component status transitions.
type Monitor struct {
	mu        sync.RWMutex
	config    MonitorConfig
	registry  *CheckerRegistry
	targets   map[string]*targetState
	current   map[string]Result
	history   []HistoryEntry
	callbacks []StatusChangeCallback
	checks    atomic.Uint64
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
}

// NewMonitor creates a stopped monitor. A nil registry uses
// DefaultRegistry().
func NewMonitor(registry *CheckerRegistry, config MonitorConfig) *Monitor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Monitor{
		config:   config.withDefaults(),
		registry: registry,
		targets:  make(map[string]*targetState),
		current:  make(map[string]Result),
	}
}

// AddTarget starts tracking a component. interval overrides the monitor
// default for this target when positive.
func (m *Monitor) AddTarget(target Target, interval time.Duration) error {
	if target.ID == "" {
		return ErrTargetIDEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[target.ID] = &targetState{target: target, interval: interval}
	return nil
}

// RemoveTarget stops tracking a component. Its last result and history
// entries are kept.
func (m *Monitor) RemoveTarget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
}

// Pause suspends probing for a target; while paused it reports the
// maintenance status. Used for maintenance windows.
func (m *Monitor) Pause(id string) error {
	return m.setPaused(id, true)
}

// Resume re-enables probing for a paused target.
func (m *Monitor) Resume(id string) error {
	return m.setPaused(id, false)
}

func (m *Monitor) setPaused(id string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.targets[id]
	if !ok {
		return ErrTargetNotTracked
	}
	state.paused = paused
	return nil
}

// OnStatusChange registers a transition callback.
func (m *Monitor) OnStatusChange(cb StatusChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start launches the polling loop. It returns ErrMonitorRunning when
// already started.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	go m.loop(ctx, stopCh, done)
	return nil
}

// Stop cancels the polling loop and waits for it to exit. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	<-done
}

// IsRunning reports whether the polling loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunPass(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunPass performs one full poll pass over all tracked targets. It is
// called by the polling loop and may also be invoked directly to force
// an immediate pass.
func (m *Monitor) RunPass(ctx context.Context) {
	m.mu.RLock()
	pending := make([]*targetState, 0, len(m.targets))
	now := time.Now()
	for _, state := range m.targets {
		interval := state.interval
		if interval <= 0 {
			interval = m.config.Interval
		}
		// Honor per-target intervals longer than the pass cadence.
		if !state.lastRun.IsZero() && now.Sub(state.lastRun) < interval && interval > m.config.Interval {
			continue
		}
		pending = append(pending, state)
	}
	checkTimeout := m.config.CheckTimeout
	m.mu.RUnlock()

	for _, state := range pending {
		m.checkTarget(ctx, state, checkTimeout)
	}
}

func (m *Monitor) checkTarget(ctx context.Context, state *targetState, timeout time.Duration) {
	m.mu.RLock()
	target, paused := state.target, state.paused
	m.mu.RUnlock()

	var aggregated Result
	if paused {
		aggregated = Result{
			Status:    StatusMaintenance,
			Message:   "component is in a maintenance window",
			LastCheck: time.Now(),
		}
	} else {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		results := m.registry.For(target.Type).Check(checkCtx, target)
		cancel()
		aggregated = AggregateResults(results)
		m.checks.Add(1)
	}

	m.mu.Lock()
	state.lastRun = time.Now()
	previous, had := m.current[target.ID]
	if !had {
		previous = Result{Status: StatusUnknown}
	}
	m.current[target.ID] = aggregated
	m.history = append(m.history, HistoryEntry{ComponentID: target.ID, Result: aggregated})
	if over := len(m.history) - m.config.HistorySize; over > 0 {
		m.history = m.history[over:]
	}
	callbacks := append([]StatusChangeCallback(nil), m.callbacks...)
	m.mu.Unlock()

	if previous.Status != aggregated.Status {
		for _, cb := range callbacks {
			cb(target.ID, previous, aggregated)
		}
	}
}

// Current returns the latest aggregated result for a component.
func (m *Monitor) Current(id string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.current[id]
	return result, ok
}

// Report recomputes the system-wide snapshot from the latest results.
func (m *Monitor) Report() SystemReport {
	m.mu.RLock()
	current := make(map[string]Result, len(m.current))
	for id, result := range m.current {
		current[id] = result
	}
	m.mu.RUnlock()

	return buildReport(current)
}

// History returns a copy of the rolling observation history, oldest
// first.
func (m *Monitor) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HistoryEntry(nil), m.history...)
}

// ChecksPerformed returns the number of completed target probes.
func (m *Monitor) ChecksPerformed() uint64 {
	return m.checks.Load()
}
