// Package dag builds and queries the stage dependency graph. Nodes are stage
// identities (definition paths relative to the project root); edges point
// from a dependent stage to each resolved producer stage. The graph is
// rebuilt from a fresh scan on every query and never persisted.
package dag

import (
	"fmt"
	"strings"

	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Graph is a directed graph of stages. Insertion order of nodes and edges is
// preserved so traversal order is reproducible given unchanged inputs.
type Graph struct {
	nodes map[string]*stage.Stage
	order []string
	// producers: dependent -> producer edges, declaration order.
	producers map[string][]string
	// consumers: reverse edges, maintained for undirected walks.
	consumers map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*stage.Stage),
		producers: make(map[string][]string),
		consumers: make(map[string][]string),
	}
}

// AddNode adds a stage under its identity. Adding the same ID twice does
// nothing.
func (g *Graph) AddNode(id string, s *stage.Stage) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = s
	g.order = append(g.order, id)
}

// AddEdge records that the dependent stage consumes an output of the
// producer stage. Both nodes must already exist.
func (g *Graph) AddEdge(dependent, producer string) error {
	if _, ok := g.nodes[dependent]; !ok {
		return fmt.Errorf("dependent node not found: %s", dependent)
	}
	if _, ok := g.nodes[producer]; !ok {
		return fmt.Errorf("producer node not found: %s", producer)
	}
	g.producers[dependent] = append(g.producers[dependent], producer)
	g.consumers[producer] = append(g.consumers[producer], dependent)
	return nil
}

// Node returns the stage registered under the given identity.
func (g *Graph) Node(id string) (*stage.Stage, bool) {
	s, ok := g.nodes[id]
	return s, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// NodeIDs returns all node identities in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Producers returns the stages the given node depends on, in declaration
// order.
func (g *Graph) Producers(id string) []string {
	return g.producers[id]
}

// Stages returns all stages in insertion order.
func (g *Graph) Stages() []*stage.Stage {
	stages := make([]*stage.Stage, 0, len(g.order))
	for _, id := range g.order {
		stages = append(stages, g.nodes[id])
	}
	return stages
}

// CycleError reports a dependency cycle among stage definitions. The graph
// builder rejects cyclic definition sets outright; postorder traversal over
// a cycle has no meaningful build order.
type CycleError struct {
	Stages []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Stages, " -> "))
}

// detectCycles runs a coloring DFS over every node. On failure the returned
// CycleError names the stages on the cycle, in dependency order.
func (g *Graph) detectCycles() error {
	const (
		white = iota // unvisited
		gray         // on the current DFS stack
		black        // fully explored
	)
	color := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		color[id] = gray
		stack = append(stack, id)

		for _, next := range g.producers[id] {
			switch color[next] {
			case gray:
				// Slice the stack from the first occurrence of next to get
				// just the cycle, then close the loop.
				start := 0
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), next)
				return &CycleError{Stages: cycle}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
