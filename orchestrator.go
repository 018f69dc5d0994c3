// Package orchestrator sequences the startup, shutdown, health
// monitoring, and recovery of interdependent platform components. The
// dependency graph is leveled into execution plans; health transitions
// feed a bounded auto-restart loop.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/orchestrator/health"
)

// SystemStatus is the external snapshot of the whole system.
type SystemStatus struct {
	Status     string             `json:"status"`
	Uptime     time.Duration      `json:"uptime"`
	Components []ComponentInfo    `json:"components"`
	Statistics StatisticsSnapshot `json:"statistics"`
}

// ComponentInfo is one component's entry in the system snapshot.
type ComponentInfo struct {
	ID     string          `json:"id"`
	Type   ComponentType   `json:"type"`
	Status ComponentStatus `json:"status"`
}

// Orchestrator is the single context object owning every subsystem:
// registry, status tracker, plan builder and executor, health monitor,
// recovery controller, maintenance scheduler, statistics, and the
// observer subject. There is no package-level state; each subsystem
// receives only the collaborators it needs.
type Orchestrator struct {
	mu          sync.Mutex
	config      *Config
	logger      Logger
	registry    *ComponentRegistry
	statuses    *StatusTracker
	builder     *PlanBuilder
	executor    *PlanExecutor
	monitor     *health.Monitor
	recovery    *RecoveryController
	maintenance *MaintenanceScheduler
	stats       *Statistics
	subject     *ObserverSubject

	started      bool
	startedAt    time.Time
	monitorStop  context.CancelFunc
	syncedChecks uint64
}

// New wires an orchestrator from config. A nil config uses defaults; a
// nil logger uses slog's default.
func New(config *Config, logger Logger) *Orchestrator {
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = NewSlogLogger(nil)
	}

	stats := NewStatistics()
	subject := NewObserverSubject(logger)
	statuses := NewStatusTracker()
	registry := NewComponentRegistry(logger)
	executor := NewPlanExecutor(registry, statuses, stats, subject, logger)
	monitor := health.NewMonitor(nil, config.monitorConfig())
	recovery := NewRecoveryController(config.recoveryConfig(), executor, statuses, config.stepDefaults(), stats, subject, logger)
	maintenance := NewMaintenanceScheduler(statuses, monitor, subject, logger)

	o := &Orchestrator{
		config:      config,
		logger:      logger,
		registry:    registry,
		statuses:    statuses,
		builder:     NewPlanBuilder(config.stepDefaults(), stats, logger),
		executor:    executor,
		monitor:     monitor,
		recovery:    recovery,
		maintenance: maintenance,
		stats:       stats,
		subject:     subject,
	}

	statuses.OnChange(recovery.ObserveStatus)
	monitor.OnStatusChange(o.onHealthChange)
	return o
}

// Subject exposes the observer subject for external event consumers.
func (o *Orchestrator) Subject() Subject {
	return o.subject
}

// RegisterComponent validates the spec, stores the component, and
// starts tracking its health. Registration is rejected after the system
// has started.
func (o *Orchestrator) RegisterComponent(spec ComponentSpec, component Component) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("register '%s': %w", spec.ID, ErrSystemAlreadyStarted)
	}
	o.mu.Unlock()

	if err := o.registry.Register(spec, component); err != nil {
		return err
	}

	target := health.Target{ID: spec.ID, Type: string(spec.Type)}
	if reporter, ok := component.(health.Reporter); ok {
		target.Reporter = reporter
	}
	if err := o.monitor.AddTarget(target, spec.HealthCheckInterval); err != nil {
		return fmt.Errorf("track health for '%s': %w", spec.ID, err)
	}

	o.stats.ComponentRegistered()
	o.emit(EventTypeComponentRegistered, map[string]any{
		"component": spec.ID,
		"type":      string(spec.Type),
	})
	return nil
}

// StartSystem builds and executes the startup plan, then arms the
// health monitor, recovery controller, and maintenance scheduler. On a
// startup failure nothing stays armed and the error names the failing
// step.
func (o *Orchestrator) StartSystem(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrSystemAlreadyStarted
	}
	o.mu.Unlock()

	specs := o.registry.Specs()
	o.logger.Info("Starting system", "components", len(specs))

	plan, err := o.builder.BuildStartupPlan(specs)
	if err != nil {
		return fmt.Errorf("build startup plan: %w", err)
	}
	o.emit(EventTypePlanCreated, map[string]any{
		"plan":  plan.ID,
		"type":  string(plan.Type),
		"steps": plan.StepCount(),
	})

	if err := o.executor.Execute(ctx, plan); err != nil {
		return err
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	if err := o.monitor.Start(monitorCtx); err != nil {
		cancel()
		return fmt.Errorf("start health monitor: %w", err)
	}
	o.recovery.Start()
	o.maintenance.Start()

	o.mu.Lock()
	o.started = true
	o.startedAt = time.Now()
	o.monitorStop = cancel
	o.mu.Unlock()

	o.logger.Info("System started", "components", len(specs))
	o.emit(EventTypeSystemStarted, map[string]any{
		"components": len(specs),
	})
	return nil
}

// StopSystem disarms the background loops and executes the shutdown
// plan best-effort under the configured stop timeout. Per-component
// failures are reported in the returned error but never abort the
// pass.
func (o *Orchestrator) StopSystem(ctx context.Context) error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrSystemNotStarted
	}
	o.started = false
	cancel := o.monitorStop
	o.monitorStop = nil
	uptime := time.Since(o.startedAt)
	o.mu.Unlock()

	o.logger.Info("Stopping system", "uptime", uptime)

	// Disarm recovery first so planned stops are not mistaken for
	// failures.
	o.maintenance.Stop()
	o.recovery.Stop()
	o.monitor.Stop()
	if cancel != nil {
		cancel()
	}
	o.syncHealthChecks()

	specs := o.registry.Specs()
	plan, err := o.builder.BuildShutdownPlan(specs)
	if err != nil {
		return fmt.Errorf("build shutdown plan: %w", err)
	}
	o.emit(EventTypePlanCreated, map[string]any{
		"plan":  plan.ID,
		"type":  string(plan.Type),
		"steps": plan.StepCount(),
	})

	stopCtx, stopCancel := context.WithTimeout(ctx, o.config.StopTimeout)
	defer stopCancel()
	execErr := o.executor.Execute(stopCtx, plan)

	o.logger.Info("System stopped", "uptime", uptime)
	o.emit(EventTypeSystemStopped, map[string]any{
		"uptime": uptime.String(),
	})
	return execErr
}

// RestartComponent manually drives one stop -> start sequence for a
// component, outside the automatic recovery budget.
func (o *Orchestrator) RestartComponent(ctx context.Context, componentID string) error {
	if _, _, ok := o.registry.Get(componentID); !ok {
		return fmt.Errorf("restart '%s': %w", componentID, ErrComponentNotFound)
	}

	o.logger.Info("Manual component restart", "component", componentID)
	defaults := o.config.stepDefaults()
	stop := Step{
		ID:            fmt.Sprintf("manual-stop-%s", componentID),
		ComponentID:   componentID,
		Action:        ActionStop,
		Timeout:       defaults.Timeout,
		RetryAttempts: 1,
	}
	if err := o.executor.runStep(ctx, stop); err != nil {
		o.logger.Warn("Manual restart stop phase failed, continuing",
			"component", componentID, "error", err)
	}
	start := Step{
		ID:            fmt.Sprintf("manual-start-%s", componentID),
		ComponentID:   componentID,
		Action:        ActionStart,
		Timeout:       defaults.Timeout,
		RetryAttempts: defaults.RetryAttempts,
		RetryDelay:    defaults.RetryDelay,
	}
	if err := o.executor.runStep(ctx, start); err != nil {
		return err
	}
	o.recovery.ResetComponent(componentID)
	return nil
}

// ResetComponent clears a component's exhausted restart budget after
// operator intervention.
func (o *Orchestrator) ResetComponent(componentID string) {
	o.recovery.ResetComponent(componentID)
}

// ScheduleMaintenance registers a recurring maintenance window for a
// component using a cron expression.
func (o *Orchestrator) ScheduleMaintenance(componentID, cronExpr string, duration time.Duration) error {
	if _, _, ok := o.registry.Get(componentID); !ok {
		return fmt.Errorf("schedule maintenance for '%s': %w", componentID, ErrComponentNotFound)
	}
	return o.maintenance.ScheduleWindow(componentID, cronExpr, duration)
}

// CancelMaintenance removes a component's recurring maintenance window.
func (o *Orchestrator) CancelMaintenance(componentID string) {
	o.maintenance.CancelWindow(componentID)
}

// GetSystemStatus returns the external snapshot: overall state, uptime,
// per-component lifecycle status, and the statistics counters.
func (o *Orchestrator) GetSystemStatus() SystemStatus {
	o.mu.Lock()
	started := o.started
	startedAt := o.startedAt
	o.mu.Unlock()

	status := SystemStatus{Status: "stopped"}
	if started {
		status.Status = "running"
		status.Uptime = time.Since(startedAt)
	}

	snapshot := o.statuses.Snapshot()
	for _, spec := range o.registry.Specs() {
		componentStatus, ok := snapshot[spec.ID]
		if !ok {
			componentStatus = StatusUninitialized
		}
		status.Components = append(status.Components, ComponentInfo{
			ID:     spec.ID,
			Type:   spec.Type,
			Status: componentStatus,
		})
	}
	status.Statistics = o.GetStatistics()
	return status
}

// GetComponentStatus returns a component's lifecycle status.
func (o *Orchestrator) GetComponentStatus(componentID string) ComponentStatus {
	return o.statuses.Get(componentID)
}

// GetComponentHealth returns the latest aggregated health result for a
// component. ok is false before the first completed check.
func (o *Orchestrator) GetComponentHealth(componentID string) (health.Result, bool) {
	return o.monitor.Current(componentID)
}

// GetSystemHealth recomputes the system-wide health report from the
// latest per-component results.
func (o *Orchestrator) GetSystemHealth() health.SystemReport {
	return o.monitor.Report()
}

// GetStatistics returns the current counter values.
func (o *Orchestrator) GetStatistics() StatisticsSnapshot {
	o.syncHealthChecks()
	return o.stats.Snapshot()
}

// RunHealthPass forces one immediate poll pass over all tracked
// targets.
func (o *Orchestrator) RunHealthPass(ctx context.Context) {
	o.monitor.RunPass(ctx)
	o.syncHealthChecks()
}

// HealthHistory returns the rolling health observation history, oldest
// first.
func (o *Orchestrator) HealthHistory() []health.HistoryEntry {
	return o.monitor.History()
}

// onHealthChange fans a health transition out to the event stream and
// the recovery controller.
func (o *Orchestrator) onHealthChange(componentID string, previous, current health.Result) {
	o.logger.Info("Component health changed",
		"component", componentID,
		"previous", string(previous.Status),
		"current", string(current.Status),
		"message", current.Message)
	o.emit(EventTypeHealthChanged, map[string]any{
		"component": componentID,
		"previous":  string(previous.Status),
		"current":   string(current.Status),
		"message":   current.Message,
	})
	o.recovery.ObserveHealth(componentID, previous, current)
}

// syncHealthChecks folds the monitor's probe counter into the shared
// statistics incrementally.
func (o *Orchestrator) syncHealthChecks() {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := o.monitor.ChecksPerformed()
	if total > o.syncedChecks {
		o.stats.AddHealthChecks(total - o.syncedChecks)
		o.syncedChecks = total
	}
}

func (o *Orchestrator) emit(eventType string, data map[string]any) {
	event := NewOrchestrationEvent(eventType, "orchestrator/system", data)
	if err := o.subject.NotifyObservers(context.Background(), event); err != nil {
		o.logger.Debug("Failed to notify observers", "eventType", eventType, "error", err)
	}
}
