package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tradeforge/orchestrator/health"
)

// MaintenanceScheduler drives planned maintenance windows. At each cron
// trigger the component flips to the maintenance status and its health
// probing pauses; after the window's duration the previous status is
// restored. Components in maintenance are never auto-restarted.
type MaintenanceScheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	statuses *StatusTracker
	monitor  *health.Monitor
	subject  Subject
	logger   Logger
	windows  map[string]cron.EntryID
	restore  map[string]ComponentStatus
	timers   map[string]*time.Timer
	started  bool
}

// NewMaintenanceScheduler creates a stopped scheduler. subject may be
// nil.
func NewMaintenanceScheduler(statuses *StatusTracker, monitor *health.Monitor, subject Subject, logger Logger) *MaintenanceScheduler {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &MaintenanceScheduler{
		cron:     cron.New(),
		statuses: statuses,
		monitor:  monitor,
		subject:  subject,
		logger:   logger,
		windows:  make(map[string]cron.EntryID),
		restore:  make(map[string]ComponentStatus),
		timers:   make(map[string]*time.Timer),
	}
}

// ScheduleWindow registers a recurring maintenance window for a
// component. Scheduling again replaces the previous window.
func (m *MaintenanceScheduler) ScheduleWindow(componentID, cronExpr string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.windows[componentID]; ok {
		m.cron.Remove(prev)
	}
	id, err := m.cron.AddFunc(cronExpr, func() {
		m.enter(componentID, duration)
	})
	if err != nil {
		return fmt.Errorf("schedule maintenance for '%s': %w", componentID, err)
	}
	m.windows[componentID] = id
	m.logger.Info("Scheduled maintenance window",
		"component", componentID, "schedule", cronExpr, "duration", duration)
	return nil
}

// CancelWindow removes a component's recurring window. An in-progress
// window still runs to completion.
func (m *MaintenanceScheduler) CancelWindow(componentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.windows[componentID]; ok {
		m.cron.Remove(id)
		delete(m.windows, componentID)
	}
}

// enter puts a component into maintenance for the given duration.
func (m *MaintenanceScheduler) enter(componentID string, duration time.Duration) {
	m.mu.Lock()
	current := m.statuses.Get(componentID)
	if current == StatusMaintenance {
		m.mu.Unlock()
		return
	}
	m.restore[componentID] = current
	m.timers[componentID] = time.AfterFunc(duration, func() {
		m.exit(componentID)
	})
	m.mu.Unlock()

	m.logger.Info("Component entering maintenance window",
		"component", componentID, "duration", duration, "previous_status", current)
	if err := m.monitor.Pause(componentID); err != nil {
		m.logger.Debug("Could not pause health probing",
			"component", componentID, "error", err)
	}
	m.statuses.Set(componentID, StatusMaintenance)
	m.emit(EventTypeMaintenanceEntered, map[string]any{
		"component": componentID,
		"duration":  duration.String(),
	})
}

// exit restores a component's pre-maintenance status.
func (m *MaintenanceScheduler) exit(componentID string) {
	m.mu.Lock()
	previous, ok := m.restore[componentID]
	delete(m.restore, componentID)
	delete(m.timers, componentID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.monitor.Resume(componentID); err != nil {
		m.logger.Debug("Could not resume health probing",
			"component", componentID, "error", err)
	}
	m.statuses.Set(componentID, previous)
	m.logger.Info("Component exited maintenance window",
		"component", componentID, "restored_status", previous)
	m.emit(EventTypeMaintenanceExited, map[string]any{
		"component": componentID,
	})
}

// Start launches the cron runner.
func (m *MaintenanceScheduler) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.cron.Start()
}

// Stop halts the cron runner, waits for in-flight trigger functions,
// and cancels pending window-exit timers. Components left in
// maintenance are restored.
func (m *MaintenanceScheduler) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	stopped := m.cron.Stop()
	var pending []string
	for id, timer := range m.timers {
		timer.Stop()
		pending = append(pending, id)
	}
	m.mu.Unlock()

	<-stopped.Done()
	for _, id := range pending {
		m.exit(id)
	}
}

func (m *MaintenanceScheduler) emit(eventType string, data map[string]any) {
	if m.subject == nil {
		return
	}
	event := NewOrchestrationEvent(eventType, "orchestrator/maintenance", data)
	if err := m.subject.NotifyObservers(context.Background(), event); err != nil {
		m.logger.Debug("Failed to notify observers", "eventType", eventType, "error", err)
	}
}
