package orchestrator

import (
	"slices"
	"sort"
)

// DependencyGraph maps component ids to the set of ids they depend on.
// An edge a->b means a requires b to be running first. The graph is
// derived from the registry and recomputed for every plan build.
type DependencyGraph struct {
	edges map[string][]string
}

// BuildGraph converts specs into a dependency graph and rejects it if a
// cycle exists. Required and optional dependencies contribute edges
// identically. A declared dependency with no matching spec is logged
// and skipped rather than failing the build: it may register later.
func BuildGraph(specs []ComponentSpec, logger Logger) (*DependencyGraph, error) {
	known := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		known[s.ID] = struct{}{}
	}

	edges := make(map[string][]string, len(specs))
	for _, s := range specs {
		var deps []string
		for _, dep := range s.Dependencies {
			if _, ok := known[dep]; !ok {
				if logger != nil {
					logger.Warn("Dropping edge to unregistered dependency",
						"component", s.ID, "dependency", dep)
				}
				continue
			}
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		for _, dep := range s.OptionalDependencies {
			if _, ok := known[dep]; !ok {
				if logger != nil {
					logger.Debug("Dropping edge to unregistered optional dependency",
						"component", s.ID, "dependency", dep)
				}
				continue
			}
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		edges[s.ID] = deps
	}

	g := &DependencyGraph{edges: edges}
	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Components: cycle}
	}
	return g, nil
}

// Dependencies returns the dependency set of id.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.edges[id]
}

// Nodes returns all component ids in the graph, sorted.
func (g *DependencyGraph) Nodes() []string {
	nodes := make([]string, 0, len(g.edges))
	for id := range g.edges {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int {
	return len(g.edges)
}

// Reverse returns the transposed graph, used for shutdown leveling: an
// edge a->b (a depends on b) becomes b->a (b must not stop before a).
func (g *DependencyGraph) Reverse() *DependencyGraph {
	rev := make(map[string][]string, len(g.edges))
	for id := range g.edges {
		rev[id] = nil
	}
	for id, deps := range g.edges {
		for _, dep := range deps {
			rev[dep] = append(rev[dep], id)
		}
	}
	for id := range rev {
		sort.Strings(rev[id])
	}
	return &DependencyGraph{edges: rev}
}

// findCycle runs a depth-first search with a recursion stack per node.
// Any back-edge into the active stack is a cycle; the participating ids
// are returned in edge order, nil when the graph is acyclic.
func (g *DependencyGraph) findCycle() []string {
	visited := make(map[string]bool, len(g.edges))
	onStack := make(map[string]bool, len(g.edges))
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, dep := range g.edges[node] {
			if onStack[dep] {
				idx := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[idx:]), dep)
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		onStack[node] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, node := range g.Nodes() {
		if !visited[node] && visit(node) {
			return cycle
		}
	}
	return nil
}
