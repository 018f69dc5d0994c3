package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// PlanType distinguishes startup from shutdown plans.
type PlanType string

const (
	// PlanStartup levels on the forward graph: a component cannot start
	// before its dependencies.
	PlanStartup PlanType = "startup"
	// PlanShutdown levels on the reverse graph: a component cannot stop
	// before its dependents have stopped.
	PlanShutdown PlanType = "shutdown"
)

// StepAction is one lifecycle action bound to one component.
type StepAction string

const (
	ActionInitialize StepAction = "initialize"
	ActionStart      StepAction = "start"
	ActionStop       StepAction = "stop"
	ActionCleanup    StepAction = "cleanup"
)

// Step binds a lifecycle action to a component together with its
// execution budget.
type Step struct {
	ID            string
	ComponentID   string
	Action        StepAction
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	// DependsOn lists the step ids that must reach a terminal state
	// before this step may run. Always satisfied by level ordering.
	DependsOn []string

	// Parallel records whether the step shares its level with other
	// steps. Informational only: scheduling is always level-wide
	// concurrent regardless of this flag.
	Parallel bool
}

// Level is a set of steps with no dependency edges among them. All
// steps in a level execute concurrently; a level never starts until
// every step of the previous level has reached a terminal state.
type Level []Step

// Plan is an ordered sequence of levels representing one full startup
// or shutdown pass.
type Plan struct {
	ID        string
	Type      PlanType
	Levels    []Level
	CreatedAt time.Time
}

// EstimatedDuration is the sum of all step timeouts: the worst case
// for a single attempt per step.
func (p *Plan) EstimatedDuration() time.Duration {
	var total time.Duration
	for _, level := range p.Levels {
		for _, step := range level {
			total += step.Timeout
		}
	}
	return total
}

// StepCount returns the total number of steps across all levels.
func (p *Plan) StepCount() int {
	n := 0
	for _, level := range p.Levels {
		n += len(level)
	}
	return n
}

// StepDefaults is the execution budget applied to every built step.
type StepDefaults struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// PlanBuilder levels the dependency graph into executable plans.
type PlanBuilder struct {
	defaults StepDefaults
	stats    *Statistics
	logger   Logger
}

// NewPlanBuilder creates a builder with the given per-step defaults.
func NewPlanBuilder(defaults StepDefaults, stats *Statistics, logger Logger) *PlanBuilder {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = 30 * time.Second
	}
	if defaults.RetryAttempts < 1 {
		defaults.RetryAttempts = 1
	}
	return &PlanBuilder{defaults: defaults, stats: stats, logger: logger}
}

// BuildStartupPlan produces the leveled startup plan for specs. The
// forward graph orders levels so every dependency lands in an earlier
// level than its dependents.
func (b *PlanBuilder) BuildStartupPlan(specs []ComponentSpec) (*Plan, error) {
	graph, err := BuildGraph(specs, b.logger)
	if err != nil {
		return nil, err
	}
	return b.assemble(PlanStartup, ActionStart, graph, specs)
}

// BuildShutdownPlan produces the leveled shutdown plan for specs using
// the reverse graph, so dependents stop before their dependencies.
func (b *PlanBuilder) BuildShutdownPlan(specs []ComponentSpec) (*Plan, error) {
	graph, err := BuildGraph(specs, b.logger)
	if err != nil {
		return nil, err
	}
	return b.assemble(PlanShutdown, ActionStop, graph.Reverse(), specs)
}

// assemble levels the graph and materializes steps.
func (b *PlanBuilder) assemble(planType PlanType, action StepAction, graph *DependencyGraph, specs []ComponentSpec) (*Plan, error) {
	levels, err := levelize(graph)
	if err != nil {
		return nil, err
	}

	specByID := make(map[string]ComponentSpec, len(specs))
	for _, s := range specs {
		specByID[s.ID] = s
	}

	plan := &Plan{
		ID:        uuid.NewString(),
		Type:      planType,
		CreatedAt: time.Now(),
	}

	// Step ids of already-placed components, for DependsOn wiring.
	stepIDs := make(map[string]string, len(specs))

	for _, members := range levels {
		// Order hints break ties for deterministic logging only; all
		// steps in the level still execute concurrently.
		sort.SliceStable(members, func(i, j int) bool {
			si, sj := specByID[members[i]], specByID[members[j]]
			switch planType {
			case PlanShutdown:
				if si.ShutdownOrder != sj.ShutdownOrder {
					return si.ShutdownOrder > sj.ShutdownOrder
				}
			default:
				if si.StartupOrder != sj.StartupOrder {
					return si.StartupOrder < sj.StartupOrder
				}
			}
			return members[i] < members[j]
		})

		level := make(Level, 0, len(members))
		for _, id := range members {
			step := Step{
				ID:            uuid.NewString(),
				ComponentID:   id,
				Action:        action,
				Timeout:       b.defaults.Timeout,
				RetryAttempts: b.defaults.RetryAttempts,
				RetryDelay:    b.defaults.RetryDelay,
				Parallel:      len(members) > 1,
			}
			for _, dep := range graph.Dependencies(id) {
				if depStep, ok := stepIDs[dep]; ok {
					step.DependsOn = append(step.DependsOn, depStep)
				}
			}
			level = append(level, step)
		}
		for _, step := range level {
			stepIDs[step.ComponentID] = step.ID
		}
		plan.Levels = append(plan.Levels, level)
	}

	if b.stats != nil {
		b.stats.PlanCreated()
	}
	b.logger.Debug("Built plan",
		"plan", plan.ID,
		"type", plan.Type,
		"levels", len(plan.Levels),
		"steps", plan.StepCount(),
		"estimated_duration", plan.EstimatedDuration())
	return plan, nil
}

// levelize repeatedly collects the not-yet-placed nodes whose
// dependencies are all placed; each collection becomes the next level.
// A pass that places nothing while nodes remain means a residual cycle,
// which cannot occur after graph validation and is a fatal internal
// error.
func levelize(g *DependencyGraph) ([][]string, error) {
	placed := make(map[string]bool, g.Len())
	remaining := g.Nodes()
	var levels [][]string

	for len(remaining) > 0 {
		var ready, blocked []string
		for _, id := range remaining {
			ok := true
			for _, dep := range g.Dependencies(id) {
				if !placed[dep] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, id)
			} else {
				blocked = append(blocked, id)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrResidualCycle, blocked)
		}
		for _, id := range ready {
			placed[id] = true
		}
		levels = append(levels, ready)
		remaining = blocked
	}
	return levels, nil
}
