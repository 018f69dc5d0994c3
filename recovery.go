package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/orchestrator/health"
)

// recoveryPhase tracks where a component sits in the bounded
// stop -> delay -> start restart sequence.
type recoveryPhase string

const (
	phaseIdle           recoveryPhase = "idle"
	phaseRestartPending recoveryPhase = "restart_pending"
	phaseStopping       recoveryPhase = "stopping"
	phaseStarting       recoveryPhase = "starting"
	phaseExhausted      recoveryPhase = "exhausted"
)

type recoveryState struct {
	phase    recoveryPhase
	attempts int
	inFlight bool
}

// RecoveryConfig bounds auto-restart behavior.
type RecoveryConfig struct {
	// AutoRestart gates the controller entirely. When false, failures
	// are recorded but never acted on.
	AutoRestart bool

	// MaxRestartAttempts caps consecutive restart attempts before the
	// component is parked in the terminal error status. Default 3.
	MaxRestartAttempts int

	// RestartDelay is the fixed pause between stopping a component and
	// starting it again, and between consecutive attempts. Default 30s.
	RestartDelay time.Duration
}

func (c RecoveryConfig) withDefaults() RecoveryConfig {
	if c.MaxRestartAttempts <= 0 {
		c.MaxRestartAttempts = 3
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = 30 * time.Second
	}
	return c
}

// RecoveryController observes status and health transitions and drives
// bounded stop -> delay -> start sequences for failed components. At
// most one restart sequence runs per component at a time; exhausting
// the attempt budget parks the component in the terminal error status
// until an operator resets it.
type RecoveryController struct {
	mu       sync.Mutex
	config   RecoveryConfig
	executor *PlanExecutor
	statuses *StatusTracker
	defaults StepDefaults
	stats    *Statistics
	subject  Subject
	logger   Logger
	states   map[string]*recoveryState
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRecoveryController wires a controller to the executor it restarts
// components through. stats and subject may be nil.
func NewRecoveryController(config RecoveryConfig, executor *PlanExecutor, statuses *StatusTracker, defaults StepDefaults, stats *Statistics, subject Subject, logger Logger) *RecoveryController {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &RecoveryController{
		config:   config.withDefaults(),
		executor: executor,
		statuses: statuses,
		defaults: defaults,
		stats:    stats,
		subject:  subject,
		logger:   logger,
		states:   make(map[string]*recoveryState),
	}
}

// Start arms the controller. Observations before Start are ignored.
func (c *RecoveryController) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
}

// Stop disarms the controller, cancels in-flight restart delays, and
// waits for restart goroutines to finish.
func (c *RecoveryController) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

// ObserveHealth is wired to the health monitor's status-change
// callback. A transition into critical health triggers recovery.
func (c *RecoveryController) ObserveHealth(componentID string, previous, current health.Result) {
	if current.Status != health.StatusCritical {
		return
	}
	reason := "health critical"
	if current.Message != "" {
		reason = fmt.Sprintf("health critical: %s", current.Message)
	}
	c.consider(componentID, reason)
}

// ObserveStatus is wired to the status tracker. A component that was
// running and unexpectedly lands in error or stopped triggers recovery;
// planned transitions pass through stopping first and are ignored.
func (c *RecoveryController) ObserveStatus(componentID string, previous, current ComponentStatus) {
	if current != StatusError && current != StatusStopped {
		return
	}
	if previous != StatusRunning {
		return
	}
	c.consider(componentID, fmt.Sprintf("status changed %s -> %s", previous, current))
}

// consider decides whether to launch a restart sequence for the
// component. Sequences are serialized per component and skipped for
// exhausted or maintenance components.
func (c *RecoveryController) consider(componentID, reason string) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if !c.config.AutoRestart {
		c.mu.Unlock()
		c.logger.Info("Auto restart disabled, recording failure only",
			"component", componentID, "reason", reason)
		return
	}
	if c.statuses.Get(componentID) == StatusMaintenance {
		c.mu.Unlock()
		c.logger.Debug("Component in maintenance, skipping recovery",
			"component", componentID)
		return
	}

	state, ok := c.states[componentID]
	if !ok {
		state = &recoveryState{phase: phaseIdle}
		c.states[componentID] = state
	}
	if state.inFlight || state.phase == phaseExhausted {
		c.mu.Unlock()
		return
	}
	state.inFlight = true
	state.phase = phaseRestartPending
	stopCh := c.stopCh
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Warn("Scheduling component restart", "component", componentID, "reason", reason)
	c.emit(EventTypeRestartInitiated, map[string]any{
		"component": componentID,
		"reason":    reason,
	})

	go func() {
		defer c.wg.Done()
		c.restart(componentID, state, stopCh)
	}()
}

// restart drives the stop -> delay -> start sequence, looping until the
// component starts, the attempt budget is exhausted, or the controller
// shuts down.
func (c *RecoveryController) restart(componentID string, state *recoveryState, stopCh <-chan struct{}) {
	defer func() {
		c.mu.Lock()
		state.inFlight = false
		c.mu.Unlock()
	}()

	ctx := context.Background()
	for {
		c.mu.Lock()
		state.attempts++
		attempt := state.attempts
		state.phase = phaseStopping
		c.mu.Unlock()

		if c.stats != nil {
			c.stats.RestartAttempted()
		}
		c.logger.Info("Restart attempt",
			"component", componentID, "attempt", attempt, "max", c.config.MaxRestartAttempts)

		if err := c.executor.runStep(ctx, c.step(componentID, ActionStop)); err != nil {
			c.logger.Warn("Restart stop phase failed, continuing",
				"component", componentID, "error", err)
		}

		c.setPhase(state, phaseRestartPending)
		select {
		case <-time.After(c.config.RestartDelay):
		case <-stopCh:
			c.setPhase(state, phaseIdle)
			return
		}

		c.setPhase(state, phaseStarting)
		if err := c.executor.runStep(ctx, c.step(componentID, ActionStart)); err == nil {
			c.mu.Lock()
			state.phase = phaseIdle
			state.attempts = 0
			c.mu.Unlock()
			c.logger.Info("Component restarted", "component", componentID, "attempts", attempt)
			c.emit(EventTypeRestartSucceeded, map[string]any{
				"component": componentID,
				"attempts":  attempt,
			})
			return
		} else {
			c.logger.Error("Restart attempt failed",
				"component", componentID, "attempt", attempt, "error", err)
		}

		c.mu.Lock()
		exhausted := state.attempts >= c.config.MaxRestartAttempts
		if exhausted {
			state.phase = phaseExhausted
		}
		c.mu.Unlock()

		if exhausted {
			c.statuses.Set(componentID, StatusError)
			restartErr := &RestartExhaustedError{
				ComponentID: componentID,
				Attempts:    c.config.MaxRestartAttempts,
			}
			c.logger.Error("Restart budget exhausted, manual intervention required",
				"component", componentID, "error", restartErr)
			c.emit(EventTypeRestartExhausted, map[string]any{
				"component": componentID,
				"attempts":  c.config.MaxRestartAttempts,
			})
			return
		}

		select {
		case <-stopCh:
			c.setPhase(state, phaseIdle)
			return
		default:
		}
	}
}

// ResetComponent clears a component's exhausted restart budget after
// operator intervention so future failures become recoverable again.
func (c *RecoveryController) ResetComponent(componentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[componentID]
	if !ok {
		return
	}
	if !state.inFlight {
		state.phase = phaseIdle
	}
	state.attempts = 0
}

func (c *RecoveryController) step(componentID string, action StepAction) Step {
	return Step{
		ID:            fmt.Sprintf("recovery-%s-%s", action, componentID),
		ComponentID:   componentID,
		Action:        action,
		Timeout:       c.defaults.Timeout,
		RetryAttempts: 1,
		RetryDelay:    0,
	}
}

func (c *RecoveryController) setPhase(state *recoveryState, phase recoveryPhase) {
	c.mu.Lock()
	state.phase = phase
	c.mu.Unlock()
}

func (c *RecoveryController) emit(eventType string, data map[string]any) {
	if c.subject == nil {
		return
	}
	event := NewOrchestrationEvent(eventType, "orchestrator/recovery", data)
	if err := c.subject.NotifyObservers(context.Background(), event); err != nil {
		c.logger.Debug("Failed to notify observers", "eventType", eventType, "error", err)
	}
}

// phaseOf returns the current recovery phase for a component, for
// status reporting and tests.
func (c *RecoveryController) phaseOf(componentID string) recoveryPhase {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[componentID]
	if !ok {
		return phaseIdle
	}
	return state.phase
}
