package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Reporter is implemented by components that can report their own
// health. The report must stay within a short bound and must classify
// routine degradation as warning or critical rather than panicking.
type Reporter interface {
	HealthCheck(ctx context.Context) Result
}

// Target is one monitored component as seen by a Checker.
type Target struct {
	ID   string
	Type string

	// Reporter is nil when the component does not self-report.
	Reporter Reporter
}

// Checker is a per-component-type health check strategy. It probes one
// target and returns zero or more results, which the monitor aggregates
// by worst-status-wins.
type Checker interface {
	Check(ctx context.Context, target Target) []Result
}

// GenericChecker forwards the target's self-reported health and returns
// unknown for targets that don't report. It is the fallback strategy
// for component types with no dedicated checker.
type GenericChecker struct{}

// Check implements Checker.
func (GenericChecker) Check(ctx context.Context, target Target) []Result {
	if target.Reporter == nil {
		return []Result{{
			Status:    StatusUnknown,
			Message:   fmt.Sprintf("component '%s' does not report health", target.ID),
			LastCheck: time.Now(),
		}}
	}

	start := time.Now()
	result := target.Reporter.HealthCheck(ctx)
	if result.ResponseTime == 0 {
		result.ResponseTime = time.Since(start)
	}
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	if result.Status == "" {
		result.Status = StatusUnknown
	}
	return []Result{result}
}

// LatencyChecker wraps the self-reported check with response-time
// thresholds: results slower than WarnAfter degrade to warning, slower
// than CriticalAfter to critical. Used for component types where
// response time is the primary health signal.
type LatencyChecker struct {
	WarnAfter     time.Duration
	CriticalAfter time.Duration
}

// Check implements Checker.
func (c LatencyChecker) Check(ctx context.Context, target Target) []Result {
	results := GenericChecker{}.Check(ctx, target)
	for i := range results {
		r := &results[i]
		switch {
		case c.CriticalAfter > 0 && r.ResponseTime >= c.CriticalAfter:
			r.Status = Worse(r.Status, StatusCritical)
			r.Message = appendMessage(r.Message,
				fmt.Sprintf("health check took %s, critical threshold %s", r.ResponseTime, c.CriticalAfter))
		case c.WarnAfter > 0 && r.ResponseTime >= c.WarnAfter:
			r.Status = Worse(r.Status, StatusWarning)
			r.Message = appendMessage(r.Message,
				fmt.Sprintf("health check took %s, warning threshold %s", r.ResponseTime, c.WarnAfter))
		}
	}
	return results
}

func appendMessage(existing, extra string) string {
	if existing == "" {
		return extra
	}
	return existing + "; " + extra
}

// CheckerRegistry maps component types to check strategies with a
// fallback for unregistered types. Adding support for a new component
// type is a map entry, not a new hierarchy.
type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	fallback Checker
}

// NewCheckerRegistry creates a registry with the given fallback. A nil
// fallback defaults to GenericChecker.
func NewCheckerRegistry(fallback Checker) *CheckerRegistry {
	if fallback == nil {
		fallback = GenericChecker{}
	}
	return &CheckerRegistry{
		checkers: make(map[string]Checker),
		fallback: fallback,
	}
}

// Register sets the strategy for a component type, replacing any
// previous entry.
func (r *CheckerRegistry) Register(componentType string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[componentType] = checker
}

// For returns the strategy for a component type, or the fallback.
func (r *CheckerRegistry) For(componentType string) Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if checker, ok := r.checkers[componentType]; ok {
		return checker
	}
	return r.fallback
}

// DefaultRegistry returns a registry with latency-aware strategies for
// the component types where response time is the dominant signal, and
// the generic pass-through for everything else.
func DefaultRegistry() *CheckerRegistry {
	r := NewCheckerRegistry(GenericChecker{})
	r.Register("data_adapter", LatencyChecker{WarnAfter: 500 * time.Millisecond, CriticalAfter: 5 * time.Second})
	r.Register("database", LatencyChecker{WarnAfter: 250 * time.Millisecond, CriticalAfter: 2 * time.Second})
	r.Register("cache", LatencyChecker{WarnAfter: 50 * time.Millisecond, CriticalAfter: 500 * time.Millisecond})
	r.Register("message_queue", LatencyChecker{WarnAfter: 250 * time.Millisecond, CriticalAfter: 2 * time.Second})
	r.Register("api_server", LatencyChecker{WarnAfter: time.Second, CriticalAfter: 10 * time.Second})
	return r
}
