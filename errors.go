package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Registration and validation errors
var (
	ErrComponentAlreadyRegistered = errors.New("component already registered")
	ErrComponentNotFound          = errors.New("component not found")
	ErrComponentNil               = errors.New("component cannot be nil")
	ErrComponentIDEmpty           = errors.New("component id cannot be empty")
	ErrUnknownComponentType       = errors.New("unknown component type")
	ErrSelfDependency             = errors.New("component cannot depend on itself")
)

// Orchestrator state errors
var (
	ErrSystemAlreadyStarted = errors.New("system already started")
	ErrSystemNotStarted     = errors.New("system not started")
)

// Plan and execution errors
var (
	ErrResidualCycle = errors.New("dependency graph contains a residual cycle")
	ErrStepTimeout   = errors.New("step attempt exceeded its timeout")
	ErrUnknownAction = errors.New("unknown step action")
)

// Observer errors
var (
	ErrObserverNil = errors.New("observer cannot be nil")
)

// CycleError reports a dependency cycle found during graph validation.
// No plan may be built from a cyclic graph.
type CycleError struct {
	// Components are the ids participating in the cycle, in edge order;
	// the first id is repeated at the end to close the loop.
	Components []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Components, " -> "))
}

// StepError reports a step whose retry budget was exhausted. Individual
// attempt failures are retried locally and never surfaced; only this
// final outcome is.
type StepError struct {
	ComponentID string
	Action      StepAction
	Attempts    int
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s '%s' failed after %d attempt(s): %v",
		e.Action, e.ComponentID, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PlanAbortedError reports a startup plan stopped at its first
// unrecoverable step. Remaining levels were not executed. Shutdown
// plans never abort; they drain best-effort instead.
type PlanAbortedError struct {
	PlanID string
	Level  int
	Step   *StepError
}

func (e *PlanAbortedError) Error() string {
	return fmt.Sprintf("startup plan %s aborted at level %d: %v", e.PlanID, e.Level, e.Step)
}

func (e *PlanAbortedError) Unwrap() error { return e.Step }

// RestartExhaustedError reports a component that exceeded its restart
// budget. The component sits in the terminal error status until an
// operator resets it.
type RestartExhaustedError struct {
	ComponentID string
	Attempts    int
}

func (e *RestartExhaustedError) Error() string {
	return fmt.Sprintf("component '%s' exhausted %d restart attempt(s); manual intervention required",
		e.ComponentID, e.Attempts)
}
