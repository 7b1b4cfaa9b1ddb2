// Package dag builds the task dependency graph and computes the phased
// execution order the pipeline runner walks. It generalizes the teacher's
// internal/engine/dag.go (step-level DAG) to Nexus's task-level DAG: nodes
// are tasks, edges are depends_on relationships, and levels become
// execution phases run one after another with bounded parallelism inside
// each phase.
package dag

import (
	"sort"

	"github.com/nexus-fleet/nexus/internal/config"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// Node is one vertex in the task graph.
type Node struct {
	Name       string
	Task       config.Task
	DependsOn  []*Node
	Dependents []*Node
}

// Graph is the task dependency graph plus its computed execution phases.
type Graph struct {
	Nodes  map[string]*Node
	Phases [][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts a task as a vertex.
func (g *Graph) AddNode(task config.Task) (*Node, error) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[task.Name]; exists {
		return nil, streamyerrors.NewValidationError("tasks", "duplicate task name \""+task.Name+"\"", nil)
	}
	node := &Node{Name: task.Name, Task: task}
	g.Nodes[task.Name] = node
	return node, nil
}

// AddEdge records that `to` depends on `from`.
func (g *Graph) AddEdge(from, to string) error {
	source, ok := g.Nodes[from]
	if !ok {
		return streamyerrors.NewValidationError("tasks", "unknown dependency \""+from+"\"", nil)
	}
	target, ok := g.Nodes[to]
	if !ok {
		return streamyerrors.NewValidationError("tasks", "unknown dependency target \""+to+"\"", nil)
	}
	source.Dependents = append(source.Dependents, target)
	target.DependsOn = append(target.DependsOn, source)
	return nil
}

// TopologicalSort computes execution phases with Kahn's algorithm, breaking
// ties within a phase by ascending task name so runs are deterministic.
func (g *Graph) TopologicalSort() error {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, node := range g.Nodes {
		for _, dependent := range node.Dependents {
			indegree[dependent.Name]++
		}
	}

	var queue []string
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	processed := 0
	var phases [][]string

	for len(queue) > 0 {
		current := append([]string(nil), queue...)
		sort.Strings(current)
		phases = append(phases, current)

		var next []string
		for _, id := range current {
			processed++
			node := g.Nodes[id]
			for _, dependent := range node.Dependents {
				indegree[dependent.Name]--
				if indegree[dependent.Name] == 0 {
					next = append(next, dependent.Name)
				}
			}
		}
		sort.Strings(next)
		queue = next
	}

	if processed != len(g.Nodes) {
		return streamyerrors.NewCycleError(g.findCycle(indegree))
	}

	g.Phases = phases
	return nil
}

// findCycle is only called once Kahn's algorithm above has stalled with
// nodes left unprocessed: every such node still carries indegree > 0,
// which means it has at least one DependsOn prerequisite that is itself
// stuck (otherwise Kahn's would eventually have drained it too). Starting
// from the lexicographically first stuck node, this follows one stuck
// prerequisite at a time, recording each name's position on the walked
// path, until a name already on the path is reached again — that repeat
// closes the loop and yields the v0 -> v1 -> ... -> v0 witness spec §4.A's
// build() contract requires.
func (g *Graph) findCycle(indegree map[string]int) []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var start string
	for _, name := range names {
		if indegree[name] > 0 {
			start = name
			break
		}
	}
	if start == "" {
		return nil
	}

	path := []string{start}
	pos := map[string]int{start: 0}
	current := start

	for {
		deps := directDependencyNames(g.Nodes[current])
		var next string
		for _, dep := range deps {
			if indegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		if i, seen := pos[next]; seen {
			cycle := append([]string{}, path[i:]...)
			return append(cycle, next)
		}
		path = append(path, next)
		pos[next] = len(path) - 1
		current = next
	}
}

// directDependencyNames returns node's immediate DependsOn names, sorted.
func directDependencyNames(node *Node) []string {
	if node == nil {
		return nil
	}
	out := make([]string, 0, len(node.DependsOn))
	for _, d := range node.DependsOn {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the transitive predecessors of name — every task
// that must finish before name can start, directly or through another
// task — sorted bottom-up (ascending by name) per spec §4.A.
func (g *Graph) Dependencies(name string) []string {
	seen := make(map[string]struct{})
	var visit func(string)
	visit = func(n string) {
		node, ok := g.Nodes[n]
		if !ok {
			return
		}
		for _, d := range node.DependsOn {
			if _, ok := seen[d.Name]; ok {
				continue
			}
			seen[d.Name] = struct{}{}
			visit(d.Name)
		}
	}
	visit(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SubgraphFor returns the names of name and every task it transitively
// depends on, sorted — the minimal set needed to run name alone.
func (g *Graph) SubgraphFor(name string) []string {
	seen := make(map[string]struct{})
	var visit func(string)
	visit = func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		node, ok := g.Nodes[n]
		if !ok {
			return
		}
		for _, dep := range node.DependsOn {
			visit(dep.Name)
		}
	}
	visit(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
