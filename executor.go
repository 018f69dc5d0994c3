package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PlanExecutor runs plans level by level. Levels execute sequentially;
// steps within a level fan out concurrently and are joined before the
// next level starts. Startup plans fail fast on the first exhausted
// step; shutdown plans drain every remaining step best-effort so
// teardown never gets stuck on one bad component.
type PlanExecutor struct {
	registry *ComponentRegistry
	statuses *StatusTracker
	stats    *Statistics
	subject  Subject
	logger   Logger
}

// NewPlanExecutor wires an executor to the registry and status tracker
// it mutates. stats and subject may be nil.
func NewPlanExecutor(registry *ComponentRegistry, statuses *StatusTracker, stats *Statistics, subject Subject, logger Logger) *PlanExecutor {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &PlanExecutor{
		registry: registry,
		statuses: statuses,
		stats:    stats,
		subject:  subject,
		logger:   logger,
	}
}

// Execute runs the plan. For startup plans the returned error is a
// *PlanAbortedError naming the failed step; for shutdown plans it is a
// joined summary of per-component failures, reported but never fatal to
// the pass itself.
func (e *PlanExecutor) Execute(ctx context.Context, plan *Plan) error {
	e.logger.Info("Executing plan",
		"plan", plan.ID,
		"type", plan.Type,
		"levels", len(plan.Levels),
		"steps", plan.StepCount(),
		"estimated_duration", plan.EstimatedDuration())

	var failures []error
	for i, level := range plan.Levels {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("plan %s interrupted before level %d: %w", plan.ID, i, err)
		}
		e.logger.Debug("Executing level", "plan", plan.ID, "level", i, "steps", len(level))

		if plan.Type == PlanStartup {
			if err := e.runStartupLevel(ctx, level); err != nil {
				if e.stats != nil {
					e.stats.PlanFailed()
				}
				var stepErr *StepError
				errors.As(err, &stepErr)
				aborted := &PlanAbortedError{PlanID: plan.ID, Level: i, Step: stepErr}
				e.logger.Error("Startup plan aborted", "plan", plan.ID, "level", i, "error", err)
				e.emit(ctx, EventTypePlanFailed, map[string]any{
					"plan":  plan.ID,
					"level": i,
					"error": aborted.Error(),
				})
				return aborted
			}
			continue
		}

		failures = append(failures, e.runShutdownLevel(ctx, level)...)
	}

	if e.stats != nil {
		e.stats.PlanExecuted()
	}
	e.emit(ctx, EventTypePlanExecuted, map[string]any{
		"plan":     plan.ID,
		"type":     string(plan.Type),
		"failures": len(failures),
	})

	if len(failures) > 0 {
		e.logger.Warn("Shutdown plan completed with failures",
			"plan", plan.ID, "failed_steps", len(failures))
		return errors.Join(failures...)
	}
	return nil
}

// runStartupLevel runs all steps concurrently and returns the first
// step failure once every step has reached a terminal state.
func (e *PlanExecutor) runStartupLevel(ctx context.Context, level Level) error {
	if len(level) == 1 {
		return e.runStep(ctx, level[0])
	}

	var g errgroup.Group
	for _, step := range level {
		step := step
		g.Go(func() error {
			return e.runStep(ctx, step)
		})
	}
	return g.Wait()
}

// runShutdownLevel runs all steps concurrently and collects failures
// instead of propagating them.
func (e *PlanExecutor) runShutdownLevel(ctx context.Context, level Level) []error {
	if len(level) == 1 {
		if err := e.runStep(ctx, level[0]); err != nil {
			e.logger.Error("Shutdown step failed, continuing",
				"component", level[0].ComponentID, "error", err)
			return []error{err}
		}
		return nil
	}

	var (
		mu       sync.Mutex
		failures []error
		wg       sync.WaitGroup
	)
	for _, step := range level {
		step := step
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.runStep(ctx, step); err != nil {
				e.logger.Error("Shutdown step failed, continuing",
					"component", step.ComponentID, "error", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failures
}

// runStep drives one step to a terminal state: bounded retries with a
// fixed delay, each attempt under the step timeout. Per-attempt errors
// stay local; only the final outcome surfaces.
func (e *PlanExecutor) runStep(ctx context.Context, step Step) error {
	_, component, ok := e.registry.Get(step.ComponentID)
	if !ok {
		if e.stats != nil {
			e.stats.StepExecuted()
			e.stats.StepFailed()
		}
		return &StepError{ComponentID: step.ComponentID, Action: step.Action, Attempts: 0, Err: ErrComponentNotFound}
	}

	// Stop steps are idempotent: components that never ran have nothing
	// to stop.
	if step.Action == ActionStop {
		switch e.statuses.Get(step.ComponentID) {
		case StatusStopped, StatusUninitialized:
			e.logger.Debug("Component already stopped, skipping",
				"component", step.ComponentID)
			return nil
		}
	}

	e.markPending(step)
	if e.stats != nil {
		e.stats.StepExecuted()
	}

	attempts := step.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = e.attempt(ctx, step, component)
		if lastErr == nil {
			e.markSucceeded(step)
			e.logger.Info("Step completed",
				"component", step.ComponentID, "action", step.Action, "attempt", attempt)
			return nil
		}

		e.logger.Warn("Step attempt failed",
			"component", step.ComponentID,
			"action", step.Action,
			"attempt", attempt,
			"of", attempts,
			"error", lastErr)

		if attempt < attempts && step.RetryDelay > 0 {
			select {
			case <-time.After(step.RetryDelay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts
			}
		}
	}

	e.statuses.Set(step.ComponentID, StatusError)
	if e.stats != nil {
		e.stats.StepFailed()
	}
	stepErr := &StepError{
		ComponentID: step.ComponentID,
		Action:      step.Action,
		Attempts:    attempts,
		Err:         lastErr,
	}
	e.emit(context.WithoutCancel(ctx), EventTypeStepFailed, map[string]any{
		"component": step.ComponentID,
		"action":    string(step.Action),
		"attempts":  attempts,
		"error":     stepErr.Error(),
	})
	return stepErr
}

// attempt runs the step's lifecycle calls once under the step timeout.
// The call is raced against the deadline so a component that ignores
// cancellation cannot wedge its level; the context it received is
// cancelled either way and the attempt counts as failed.
func (e *PlanExecutor) attempt(parent context.Context, step Step, component Component) error {
	ctx, cancel := context.WithTimeout(parent, step.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.invoke(ctx, step.Action, component)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s '%s': %w", step.Action, step.ComponentID, err)
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			return fmt.Errorf("%s '%s' after %s: %w", step.Action, step.ComponentID, step.Timeout, ErrStepTimeout)
		}
		return ctx.Err()
	}
}

// invoke dispatches one lifecycle action. Start steps initialize first
// and stop steps clean up afterwards, keeping one plan step per
// component per pass.
func (e *PlanExecutor) invoke(ctx context.Context, action StepAction, component Component) error {
	switch action {
	case ActionInitialize:
		return component.Initialize(ctx)
	case ActionStart:
		if err := component.Initialize(ctx); err != nil {
			return err
		}
		return component.Start(ctx)
	case ActionStop:
		if err := component.Stop(ctx); err != nil {
			return err
		}
		return component.Cleanup(ctx)
	case ActionCleanup:
		return component.Cleanup(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

func (e *PlanExecutor) markPending(step Step) {
	switch step.Action {
	case ActionInitialize, ActionStart:
		e.statuses.Set(step.ComponentID, StatusInitializing)
	case ActionStop, ActionCleanup:
		e.statuses.Set(step.ComponentID, StatusStopping)
	}
}

func (e *PlanExecutor) markSucceeded(step Step) {
	switch step.Action {
	case ActionStart:
		e.statuses.Set(step.ComponentID, StatusRunning)
	case ActionStop, ActionCleanup:
		e.statuses.Set(step.ComponentID, StatusStopped)
	}
}

func (e *PlanExecutor) emit(ctx context.Context, eventType string, data map[string]any) {
	if e.subject == nil {
		return
	}
	event := NewOrchestrationEvent(eventType, "orchestrator/executor", data)
	if err := e.subject.NotifyObservers(ctx, event); err != nil {
		e.logger.Debug("Failed to notify observers", "eventType", eventType, "error", err)
	}
}
