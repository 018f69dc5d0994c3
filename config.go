package orchestrator

import (
	"fmt"
	"time"

	"github.com/tradeforge/orchestrator/feeders"
	"github.com/tradeforge/orchestrator/health"
)

// Config carries the orchestration engine settings. The component
// registry itself stays a static programmatic input; Config only tunes
// how the engine schedules, monitors, and recovers.
//
// Duration fields accept Go duration strings ("30s", "1m30s") from
// feeders; bare integers are interpreted as seconds.
type Config struct {
	// HealthCheckInterval is the health monitor poll cadence.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" toml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`

	// HealthCheckTimeout bounds each individual component probe.
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" toml:"health_check_timeout" env:"HEALTH_CHECK_TIMEOUT"`

	// HealthHistorySize caps the rolling health observation history.
	HealthHistorySize int `yaml:"health_history_size" toml:"health_history_size" env:"HEALTH_HISTORY_SIZE"`

	// AutoRestart enables the recovery controller. When false, failures
	// are recorded but never acted on.
	AutoRestart bool `yaml:"auto_restart" toml:"auto_restart" env:"AUTO_RESTART"`

	// MaxRestartAttempts caps consecutive restart attempts per component.
	MaxRestartAttempts int `yaml:"max_restart_attempts" toml:"max_restart_attempts" env:"MAX_RESTART_ATTEMPTS"`

	// RestartDelay is the pause between stop and start during recovery.
	RestartDelay time.Duration `yaml:"restart_delay" toml:"restart_delay" env:"RESTART_DELAY"`

	// StepTimeout bounds each lifecycle step attempt.
	StepTimeout time.Duration `yaml:"step_timeout" toml:"step_timeout" env:"STEP_TIMEOUT"`

	// StepRetryAttempts is the per-step attempt budget.
	StepRetryAttempts int `yaml:"step_retry_attempts" toml:"step_retry_attempts" env:"STEP_RETRY_ATTEMPTS"`

	// StepRetryDelay is the fixed backoff between step attempts.
	StepRetryDelay time.Duration `yaml:"step_retry_delay" toml:"step_retry_delay" env:"STEP_RETRY_DELAY"`

	// StopTimeout bounds the whole shutdown pass.
	StopTimeout time.Duration `yaml:"stop_timeout" toml:"stop_timeout" env:"STOP_TIMEOUT"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  10 * time.Second,
		HealthHistorySize:   1000,
		AutoRestart:         true,
		MaxRestartAttempts:  3,
		RestartDelay:        30 * time.Second,
		StepTimeout:         30 * time.Second,
		StepRetryAttempts:   3,
		StepRetryDelay:      5 * time.Second,
		StopTimeout:         30 * time.Second,
	}
}

// Feed applies feeders in order; later feeders override earlier values.
func (c *Config) Feed(sources ...feeders.Feeder) error {
	for _, f := range sources {
		if err := f.Feed(c); err != nil {
			return fmt.Errorf("config feed: %w", err)
		}
	}
	return nil
}

func (c *Config) stepDefaults() StepDefaults {
	return StepDefaults{
		Timeout:       c.StepTimeout,
		RetryAttempts: c.StepRetryAttempts,
		RetryDelay:    c.StepRetryDelay,
	}
}

func (c *Config) recoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		AutoRestart:        c.AutoRestart,
		MaxRestartAttempts: c.MaxRestartAttempts,
		RestartDelay:       c.RestartDelay,
	}
}

func (c *Config) monitorConfig() health.MonitorConfig {
	return health.MonitorConfig{
		Interval:     c.HealthCheckInterval,
		CheckTimeout: c.HealthCheckTimeout,
		HistorySize:  c.HealthHistorySize,
	}
}
