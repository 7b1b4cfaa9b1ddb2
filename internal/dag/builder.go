package dag

import (
	"github.com/nexus-fleet/nexus/internal/config"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// BuildDAG constructs the execution graph from a config's task set,
// grounded on the teacher's internal/engine/dag_builder.go BuildDAG. It
// reports duplicate task names (from AddNode), a dependency on an unknown
// task (UnknownTasksError) and a cycle (CycleError from TopologicalSort)
// itself, so it can be used standalone, e.g. in tests, even though
// internal/config already runs the same checks during ParseConfig.
func BuildDAG(tasks map[string]config.Task) (*Graph, error) {
	graph := NewGraph()

	for _, task := range tasks {
		if _, err := graph.AddNode(task); err != nil {
			return nil, err
		}
	}

	for name, task := range tasks {
		for _, dep := range task.DependsOn {
			if _, ok := tasks[dep]; !ok {
				return nil, streamyerrors.NewUnknownTasksError([]string{dep})
			}
			if err := graph.AddEdge(dep, name); err != nil {
				return nil, err
			}
		}
	}

	if err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	return graph, nil
}
