package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/orchestrator/health"
)

func newTestConfig() *Config {
	cfg := NewConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	cfg.HealthCheckTimeout = time.Second
	cfg.HealthHistorySize = 100
	cfg.MaxRestartAttempts = 3
	cfg.RestartDelay = 5 * time.Millisecond
	cfg.StepTimeout = time.Second
	cfg.StepRetryAttempts = 1
	cfg.StepRetryDelay = time.Millisecond
	cfg.StopTimeout = 2 * time.Second
	return cfg
}

func TestSystemLifecycle(t *testing.T) {
	o := New(newTestConfig(), nil)
	db := &reportingComponent{}
	db.setHealth(health.Result{Status: health.StatusHealthy})
	cache := &fakeComponent{}
	api := &fakeComponent{}

	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, db))
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "cache", Type: TypeCache}, cache))
	require.NoError(t, o.RegisterComponent(ComponentSpec{
		ID:           "api",
		Type:         TypeAPIServer,
		Dependencies: []string{"db", "cache"},
	}, api))

	ctx := context.Background()
	require.NoError(t, o.StartSystem(ctx))
	defer func() { _ = o.StopSystem(ctx) }()

	for _, id := range []string{"db", "cache", "api"} {
		assert.Equal(t, StatusRunning, o.GetComponentStatus(id))
	}

	status := o.GetSystemStatus()
	assert.Equal(t, "running", status.Status)
	assert.Len(t, status.Components, 3)
	assert.Equal(t, uint64(3), status.Statistics.ComponentsOrchestrated)
	assert.GreaterOrEqual(t, status.Statistics.PlansCreated, uint64(1))
	assert.GreaterOrEqual(t, status.Statistics.StepsExecuted, uint64(3))

	assert.ErrorIs(t, o.StartSystem(ctx), ErrSystemAlreadyStarted)
	err := o.RegisterComponent(ComponentSpec{ID: "late", Type: TypeCache}, &fakeComponent{})
	assert.ErrorIs(t, err, ErrSystemAlreadyStarted)

	o.RunHealthPass(ctx)
	result, ok := o.GetComponentHealth("db")
	require.True(t, ok)
	assert.Equal(t, health.StatusHealthy, result.Status)

	report := o.GetSystemHealth()
	assert.Equal(t, health.StatusHealthy, report.OverallStatus)
	assert.NotEmpty(t, o.HealthHistory())
	assert.GreaterOrEqual(t, o.GetStatistics().HealthChecks, uint64(1))

	require.NoError(t, o.StopSystem(ctx))
	for _, id := range []string{"db", "cache", "api"} {
		assert.Equal(t, StatusStopped, o.GetComponentStatus(id))
	}
	assert.Equal(t, "stopped", o.GetSystemStatus().Status)
	assert.ErrorIs(t, o.StopSystem(ctx), ErrSystemNotStarted)
}

func TestStartSystemFailsFastOnBrokenComponent(t *testing.T) {
	o := New(newTestConfig(), nil)
	broken := &fakeComponent{startFailures: 10}
	api := &fakeComponent{}
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, broken))
	require.NoError(t, o.RegisterComponent(ComponentSpec{
		ID:           "api",
		Type:         TypeAPIServer,
		Dependencies: []string{"db"},
	}, api))

	err := o.StartSystem(context.Background())
	require.Error(t, err)

	var aborted *PlanAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, "db", aborted.Step.ComponentID)

	_, starts, _, _ := api.counts()
	assert.Zero(t, starts)
	assert.Equal(t, "stopped", o.GetSystemStatus().Status)
	assert.ErrorIs(t, o.StopSystem(context.Background()), ErrSystemNotStarted)
}

func TestStartSystemRejectsCyclicGraph(t *testing.T) {
	o := New(newTestConfig(), nil)
	require.NoError(t, o.RegisterComponent(ComponentSpec{
		ID: "a", Type: TypeCache, Dependencies: []string{"b"},
	}, &fakeComponent{}))
	require.NoError(t, o.RegisterComponent(ComponentSpec{
		ID: "b", Type: TypeDatabase, Dependencies: []string{"a"},
	}, &fakeComponent{}))

	err := o.StartSystem(context.Background())
	require.Error(t, err)

	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestAutoRecoveryFromCriticalHealth(t *testing.T) {
	o := New(newTestConfig(), nil)
	feed := &reportingComponent{}
	feed.setHealth(health.Result{Status: health.StatusHealthy})
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "feed", Type: TypeDataAdapter}, feed))

	ctx := context.Background()
	require.NoError(t, o.StartSystem(ctx))
	defer func() { _ = o.StopSystem(ctx) }()

	// Let the monitor observe the healthy baseline first.
	require.Eventually(t, func() bool {
		result, ok := o.GetComponentHealth("feed")
		return ok && result.Status == health.StatusHealthy
	}, 2*time.Second, 5*time.Millisecond)

	feed.setHealth(health.Result{Status: health.StatusCritical, Message: "no ticks"})

	require.Eventually(t, func() bool {
		_, starts, stops, _ := feed.counts()
		return starts >= 2 && stops >= 1
	}, 5*time.Second, 5*time.Millisecond)

	feed.setHealth(health.Result{Status: health.StatusHealthy})
	require.Eventually(t, func() bool {
		return o.GetComponentStatus("feed") == StatusRunning
	}, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, o.GetStatistics().RestartAttempts, uint64(1))
}

func TestManualRestartComponent(t *testing.T) {
	o := New(newTestConfig(), nil)
	db := &fakeComponent{}
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, db))

	ctx := context.Background()
	require.NoError(t, o.StartSystem(ctx))
	defer func() { _ = o.StopSystem(ctx) }()

	require.NoError(t, o.RestartComponent(ctx, "db"))

	_, starts, stops, _ := db.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StatusRunning, o.GetComponentStatus("db"))

	assert.ErrorIs(t, o.RestartComponent(ctx, "ghost"), ErrComponentNotFound)
}

func TestScheduleMaintenanceRequiresComponent(t *testing.T) {
	o := New(newTestConfig(), nil)
	assert.ErrorIs(t, o.ScheduleMaintenance("ghost", "0 3 * * *", time.Hour), ErrComponentNotFound)

	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{}))
	require.NoError(t, o.ScheduleMaintenance("db", "0 3 * * *", time.Hour))
	o.CancelMaintenance("db")
}

func TestSystemEventsReachObservers(t *testing.T) {
	o := New(newTestConfig(), nil)
	observer := &recordingObserver{id: "audit"}
	require.NoError(t, o.Subject().RegisterObserver(observer,
		EventTypeComponentRegistered, EventTypeSystemStarted, EventTypeSystemStopped))

	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{}))

	ctx := context.Background()
	require.NoError(t, o.StartSystem(ctx))
	require.NoError(t, o.StopSystem(ctx))

	types := observer.seenTypes()
	assert.Contains(t, types, EventTypeComponentRegistered)
	assert.Contains(t, types, EventTypeSystemStarted)
	assert.Contains(t, types, EventTypeSystemStopped)
}

func TestRegisterComponentRejectsDuplicate(t *testing.T) {
	o := New(newTestConfig(), nil)
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{}))
	err := o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{})
	assert.ErrorIs(t, err, ErrComponentAlreadyRegistered)
}

func TestGetComponentHealthBeforeFirstCheck(t *testing.T) {
	o := New(newTestConfig(), nil)
	require.NoError(t, o.RegisterComponent(ComponentSpec{ID: "db", Type: TypeDatabase}, &fakeComponent{}))

	_, ok := o.GetComponentHealth("db")
	assert.False(t, ok)
}
