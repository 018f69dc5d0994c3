package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/orchestrator/feeders"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, 10*time.Second, cfg.HealthCheckTimeout)
	assert.Equal(t, 1000, cfg.HealthHistorySize)
	assert.True(t, cfg.AutoRestart)
	assert.Equal(t, 3, cfg.MaxRestartAttempts)
	assert.Equal(t, 30*time.Second, cfg.RestartDelay)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
	assert.Equal(t, 3, cfg.StepRetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.StepRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.StopTimeout)
}

func TestConfigFeedFromYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
health_check_interval: 5s
auto_restart: false
max_restart_attempts: 7
step_timeout: 90s
`), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.Feed(feeders.NewYamlFeeder(path)))

	assert.Equal(t, 5*time.Second, cfg.HealthCheckInterval)
	assert.False(t, cfg.AutoRestart)
	assert.Equal(t, 7, cfg.MaxRestartAttempts)
	assert.Equal(t, 90*time.Second, cfg.StepTimeout)
	// Unlisted keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.StepRetryDelay)
}

func TestConfigFeedLaterFeederWins(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "base.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("restart_delay: 10s\nstep_retry_attempts: 5\n"), 0o644))
	tomlPath := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("restart_delay = \"2s\"\n"), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.Feed(feeders.NewYamlFeeder(yamlPath), feeders.NewTomlFeeder(tomlPath)))

	assert.Equal(t, 2*time.Second, cfg.RestartDelay)
	assert.Equal(t, 5, cfg.StepRetryAttempts)
}

func TestConfigFeedFromEnv(t *testing.T) {
	t.Setenv("ORCHESTRATOR_STOP_TIMEOUT", "45s")
	t.Setenv("ORCHESTRATOR_HEALTH_HISTORY_SIZE", "50")

	cfg := NewConfig()
	require.NoError(t, cfg.Feed(feeders.NewEnvFeeder("ORCHESTRATOR")))

	assert.Equal(t, 45*time.Second, cfg.StopTimeout)
	assert.Equal(t, 50, cfg.HealthHistorySize)
}

func TestConfigFeedPropagatesErrors(t *testing.T) {
	cfg := NewConfig()
	err := cfg.Feed(feeders.NewYamlFeeder(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func TestConfigSubsystemViews(t *testing.T) {
	cfg := NewConfig()
	cfg.StepTimeout = 15 * time.Second
	cfg.MaxRestartAttempts = 5
	cfg.HealthCheckInterval = time.Minute

	defaults := cfg.stepDefaults()
	assert.Equal(t, 15*time.Second, defaults.Timeout)
	assert.Equal(t, 3, defaults.RetryAttempts)

	recovery := cfg.recoveryConfig()
	assert.True(t, recovery.AutoRestart)
	assert.Equal(t, 5, recovery.MaxRestartAttempts)

	monitor := cfg.monitorConfig()
	assert.Equal(t, time.Minute, monitor.Interval)
	assert.Equal(t, 1000, monitor.HistorySize)
}
