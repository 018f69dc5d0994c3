package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*PlanExecutor, *ComponentRegistry, *StatusTracker, *Statistics) {
	t.Helper()
	registry := NewComponentRegistry(nil)
	statuses := NewStatusTracker()
	stats := NewStatistics()
	return NewPlanExecutor(registry, statuses, stats, nil, nil), registry, statuses, stats
}

func testStep(componentID string, action StepAction) Step {
	return Step{
		ID:            "test-" + string(action) + "-" + componentID,
		ComponentID:   componentID,
		Action:        action,
		Timeout:       time.Second,
		RetryAttempts: 1,
	}
}

func TestRunStepStartSucceeds(t *testing.T) {
	e, registry, statuses, stats := newTestExecutor(t)
	component := &fakeComponent{}
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, component))

	err := e.runStep(context.Background(), testStep("db", ActionStart))
	require.NoError(t, err)

	inits, starts, _, _ := component.counts()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, starts)
	assert.Equal(t, StatusRunning, statuses.Get("db"))
	assert.Equal(t, uint64(1), stats.Snapshot().StepsExecuted)
	assert.Equal(t, uint64(0), stats.Snapshot().StepsFailed)
}

func TestRunStepRetriesThenSucceeds(t *testing.T) {
	e, registry, statuses, _ := newTestExecutor(t)
	component := &fakeComponent{startFailures: 1}
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, component))

	step := testStep("db", ActionStart)
	step.RetryAttempts = 3
	step.RetryDelay = time.Millisecond

	err := e.runStep(context.Background(), step)
	require.NoError(t, err)

	_, starts, _, _ := component.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, StatusRunning, statuses.Get("db"))
}

func TestRunStepTimeoutExhaustsRetries(t *testing.T) {
	e, registry, statuses, stats := newTestExecutor(t)
	component := &fakeComponent{startDelay: 100 * time.Millisecond}
	require.NoError(t, registry.Register(ComponentSpec{ID: "feed", Type: TypeDataAdapter}, component))

	step := testStep("feed", ActionStart)
	step.Timeout = 10 * time.Millisecond
	step.RetryAttempts = 2
	step.RetryDelay = time.Millisecond

	err := e.runStep(context.Background(), step)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "feed", stepErr.ComponentID)
	assert.Equal(t, 2, stepErr.Attempts)
	assert.ErrorIs(t, err, ErrStepTimeout)
	assert.Equal(t, StatusError, statuses.Get("feed"))
	assert.Equal(t, uint64(1), stats.Snapshot().StepsFailed)
}

func TestRunStepMissingComponent(t *testing.T) {
	e, _, _, stats := newTestExecutor(t)

	err := e.runStep(context.Background(), testStep("ghost", ActionStart))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComponentNotFound)
	assert.Equal(t, uint64(1), stats.Snapshot().StepsFailed)
}

func TestStartupPlanAbortsOnFailedLevel(t *testing.T) {
	e, registry, statuses, stats := newTestExecutor(t)
	failing := &fakeComponent{startFailures: 10}
	downstream := &fakeComponent{}
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, failing))
	require.NoError(t, registry.Register(ComponentSpec{ID: "api", Type: TypeAPIServer}, downstream))

	plan := &Plan{
		ID:   "startup-test",
		Type: PlanStartup,
		Levels: []Level{
			{testStep("db", ActionStart)},
			{testStep("api", ActionStart)},
		},
	}

	err := e.Execute(context.Background(), plan)
	require.Error(t, err)

	var aborted *PlanAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, 0, aborted.Level)
	require.NotNil(t, aborted.Step)
	assert.Equal(t, "db", aborted.Step.ComponentID)

	_, starts, _, _ := downstream.counts()
	assert.Zero(t, starts, "downstream level must not run after an abort")
	assert.Equal(t, StatusError, statuses.Get("db"))
	assert.Equal(t, uint64(1), stats.Snapshot().PlansFailed)
}

func TestShutdownPlanDrainsPastFailures(t *testing.T) {
	e, registry, statuses, _ := newTestExecutor(t)
	failing := &fakeComponent{stopErr: errors.New("flush failed")}
	healthy := &fakeComponent{}
	last := &fakeComponent{}
	require.NoError(t, registry.Register(ComponentSpec{ID: "feed", Type: TypeDataAdapter}, failing))
	require.NoError(t, registry.Register(ComponentSpec{ID: "agent", Type: TypeAIAgent}, healthy))
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, last))

	for _, id := range []string{"feed", "agent", "db"} {
		statuses.Set(id, StatusRunning)
	}

	plan := &Plan{
		ID:   "shutdown-test",
		Type: PlanShutdown,
		Levels: []Level{
			{testStep("feed", ActionStop), testStep("agent", ActionStop)},
			{testStep("db", ActionStop)},
		},
	}

	err := e.Execute(context.Background(), plan)
	require.Error(t, err)

	_, _, failingStops, _ := failing.counts()
	_, _, healthyStops, healthyCleanups := healthy.counts()
	_, _, lastStops, _ := last.counts()
	assert.Equal(t, 1, failingStops)
	assert.Equal(t, 1, healthyStops)
	assert.Equal(t, 1, healthyCleanups)
	assert.Equal(t, 1, lastStops, "later levels still run after a shutdown failure")

	assert.Equal(t, StatusError, statuses.Get("feed"))
	assert.Equal(t, StatusStopped, statuses.Get("agent"))
	assert.Equal(t, StatusStopped, statuses.Get("db"))
}

func TestStopStepIdempotent(t *testing.T) {
	e, registry, statuses, _ := newTestExecutor(t)
	component := &fakeComponent{}
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, component))

	statuses.Set("db", StatusRunning)
	require.NoError(t, e.runStep(context.Background(), testStep("db", ActionStop)))
	require.NoError(t, e.runStep(context.Background(), testStep("db", ActionStop)))

	_, _, stops, cleanups := component.counts()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, StatusStopped, statuses.Get("db"))
}

func TestStopStepSkipsNeverStarted(t *testing.T) {
	e, registry, _, _ := newTestExecutor(t)
	component := &fakeComponent{}
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, component))

	require.NoError(t, e.runStep(context.Background(), testStep("db", ActionStop)))

	_, _, stops, _ := component.counts()
	assert.Zero(t, stops)
}

func TestExecuteRespectsCancelledContext(t *testing.T) {
	e, registry, _, _ := newTestExecutor(t)
	require.NoError(t, registry.Register(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &Plan{
		ID:     "cancelled",
		Type:   PlanStartup,
		Levels: []Level{{testStep("db", ActionStart)}},
	}
	err := e.Execute(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
}
