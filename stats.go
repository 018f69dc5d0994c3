package orchestrator

import "sync/atomic"

// Statistics counts orchestration activity. All methods are safe for
// concurrent use; counters only ever increase for the lifetime of the
// orchestrator process.
type Statistics struct {
	plansCreated           atomic.Uint64
	plansExecuted          atomic.Uint64
	plansFailed            atomic.Uint64
	stepsExecuted          atomic.Uint64
	stepsFailed            atomic.Uint64
	componentsOrchestrated atomic.Uint64
	restartAttempts        atomic.Uint64
	healthChecks           atomic.Uint64
}

// NewStatistics creates a zeroed collector.
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) PlanCreated()         { s.plansCreated.Add(1) }
func (s *Statistics) PlanExecuted()        { s.plansExecuted.Add(1) }
func (s *Statistics) PlanFailed()          { s.plansFailed.Add(1) }
func (s *Statistics) StepExecuted()        { s.stepsExecuted.Add(1) }
func (s *Statistics) StepFailed()          { s.stepsFailed.Add(1) }
func (s *Statistics) ComponentRegistered() { s.componentsOrchestrated.Add(1) }
func (s *Statistics) RestartAttempted()    { s.restartAttempts.Add(1) }

// AddHealthChecks records n completed health check passes.
func (s *Statistics) AddHealthChecks(n uint64) { s.healthChecks.Add(n) }

// StatisticsSnapshot is an immutable copy of the counters, shaped for
// the external status API.
type StatisticsSnapshot struct {
	PlansCreated           uint64 `json:"plans_created"`
	PlansExecuted          uint64 `json:"plans_executed"`
	PlansFailed            uint64 `json:"plans_failed"`
	StepsExecuted          uint64 `json:"steps_executed"`
	StepsFailed            uint64 `json:"steps_failed"`
	ComponentsOrchestrated uint64 `json:"components_orchestrated"`
	RestartAttempts        uint64 `json:"restart_attempts"`
	HealthChecks           uint64 `json:"health_checks"`
}

// Snapshot returns the current counter values.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		PlansCreated:           s.plansCreated.Load(),
		PlansExecuted:          s.plansExecuted.Load(),
		PlansFailed:            s.plansFailed.Load(),
		StepsExecuted:          s.stepsExecuted.Load(),
		StepsFailed:            s.stepsFailed.Load(),
		ComponentsOrchestrated: s.componentsOrchestrated.Load(),
		RestartAttempts:        s.restartAttempts.Load(),
		HealthChecks:           s.healthChecks.Load(),
	}
}
