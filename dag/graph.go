package dag

import (
	"fmt"

	"github.com/kbukum/flowkit/workflow"
)

// Graph is the dependency structure of a definition. Stage order is the
// declaration order and is used to break ties everywhere.
type Graph struct {
	order      []string
	index      map[string]int
	deps       map[string][]string
	dependents map[string][]string
}

// New builds a Graph. It fails on duplicate stage ids and unknown
// dependencies; cycles are reported by the ordering functions.
func New(def *workflow.Definition) (*Graph, error) {
	g := &Graph{
		index:      make(map[string]int, len(def.Stages)),
		deps:       make(map[string][]string, len(def.Stages)),
		dependents: make(map[string][]string, len(def.Stages)),
	}
	for i, s := range def.Stages {
		if _, dup := g.index[s.ID]; dup {
			return nil, fmt.Errorf("dag: duplicate stage %q", s.ID)
		}
		g.index[s.ID] = i
		g.order = append(g.order, s.ID)
	}
	for _, s := range def.Stages {
		for _, dep := range s.DependsOn {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("dag: stage %q depends on unknown stage %q", s.ID, dep)
			}
			g.deps[s.ID] = append(g.deps[s.ID], dep)
			g.dependents[dep] = append(g.dependents[dep], s.ID)
		}
	}
	return g, nil
}

// Stages returns stage ids in declaration order.
func (g *Graph) Stages() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the direct dependencies of id in declared order.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the stages that directly depend on id, in declaration order.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// TopologicalOrder returns a depth-first post-order: each stage follows all
// of its dependencies. Roots are visited in declaration order and
// dependencies in the order they are listed.
func (g *Graph) TopologicalOrder() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.order))
	out := make([]string, 0, len(g.order))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dag: cycle detected at stage %q", id)
		}
		state[id] = visiting
		for _, dep := range g.deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		out = append(out, id)
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Levels groups stages by dependency depth using Kahn's algorithm. Stages in
// the same level have no dependencies on each other. Each level keeps
// declaration order.
func (g *Graph) Levels() ([][]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		ready := make(map[string]bool)
		for _, id := range queue {
			for _, dep := range g.dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready[dep] = true
				}
			}
		}
		var next []string
		for _, id := range g.order {
			if ready[id] {
				next = append(next, id)
			}
		}
		queue = next
	}

	if visited != len(g.order) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d stages", visited, len(g.order))
	}
	return levels, nil
}

// TopologicalOrder builds the graph for def and returns its sequential order.
func TopologicalOrder(def *workflow.Definition) ([]string, error) {
	g, err := New(def)
	if err != nil {
		return nil, err
	}
	return g.TopologicalOrder()
}

// Levels builds the graph for def and returns its Kahn levels.
func Levels(def *workflow.Definition) ([][]string, error) {
	g, err := New(def)
	if err != nil {
		return nil, err
	}
	return g.Levels()
}
