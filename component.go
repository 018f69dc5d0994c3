package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// ComponentType identifies the category of a registered component. The
// health monitor selects its check strategy by type, with a generic
// fallback for types that have no dedicated strategy.
type ComponentType string

// Component types known to the orchestrator.
const (
	TypeDataAdapter     ComponentType = "data_adapter"
	TypeAIAgent         ComponentType = "ai_agent"
	TypeStrategyManager ComponentType = "strategy_manager"
	TypeMonitoring      ComponentType = "monitoring"
	TypeIntegration     ComponentType = "integration"
	TypeDatabase        ComponentType = "database"
	TypeCache           ComponentType = "cache"
	TypeMessageQueue    ComponentType = "message_queue"
	TypeAPIServer       ComponentType = "api_server"
)

var componentTypes = map[ComponentType]struct{}{
	TypeDataAdapter:     {},
	TypeAIAgent:         {},
	TypeStrategyManager: {},
	TypeMonitoring:      {},
	TypeIntegration:     {},
	TypeDatabase:        {},
	TypeCache:           {},
	TypeMessageQueue:    {},
	TypeAPIServer:       {},
}

// ComponentStatus is the orchestrator-owned lifecycle state of a
// component. Components never set their own status; they only report
// health. Status is written by the plan executor, the recovery
// controller, and the maintenance scheduler.
type ComponentStatus string

// Component lifecycle statuses.
const (
	StatusUninitialized ComponentStatus = "uninitialized"
	StatusInitializing  ComponentStatus = "initializing"
	StatusRunning       ComponentStatus = "running"
	StatusStopping      ComponentStatus = "stopping"
	StatusStopped       ComponentStatus = "stopped"
	StatusError         ComponentStatus = "error"
	StatusMaintenance   ComponentStatus = "maintenance"
)

// ComponentSpec declares a component to the orchestrator. Specs are
// immutable once registered.
//
// Dependencies and OptionalDependencies both contribute edges to the
// dependency graph and are treated identically for plan leveling; they
// differ only in how loudly a missing target is logged at registration.
// StartupOrder and ShutdownOrder are tie-break hints for deterministic
// ordering within a level — they never serialize execution, since all
// steps in a level run concurrently.
type ComponentSpec struct {
	ID                   string
	Type                 ComponentType
	Dependencies         []string
	OptionalDependencies []string
	StartupOrder         int
	ShutdownOrder        int
	HealthCheckInterval  time.Duration
}

// Validate checks the spec for structural problems that must fail
// registration before any execution.
func (s ComponentSpec) Validate() error {
	if s.ID == "" {
		return ErrComponentIDEmpty
	}
	if _, ok := componentTypes[s.Type]; !ok {
		return fmt.Errorf("component '%s': %w: %q", s.ID, ErrUnknownComponentType, s.Type)
	}
	for _, dep := range s.Dependencies {
		if dep == s.ID {
			return fmt.Errorf("component '%s': %w", s.ID, ErrSelfDependency)
		}
	}
	for _, dep := range s.OptionalDependencies {
		if dep == s.ID {
			return fmt.Errorf("component '%s': %w", s.ID, ErrSelfDependency)
		}
	}
	return nil
}

// Component is the lifecycle contract implemented by orchestrated
// components. The orchestrator treats implementations as opaque: it
// only sequences these calls according to the dependency graph. Every
// call must respect the deadline and cancellation of the passed
// context.
//
// Components that can report their own health additionally implement
// health.Reporter; the monitor discovers it by type assertion.
type Component interface {
	// Initialize prepares the component for Start. Called once per
	// startup pass, before Start.
	Initialize(ctx context.Context) error

	// Start brings the component into active operation.
	Start(ctx context.Context) error

	// Stop takes the component out of active operation.
	Stop(ctx context.Context) error

	// Cleanup releases resources after Stop. Called once per shutdown
	// pass, after Stop.
	Cleanup(ctx context.Context) error
}
