package config

import "sort"

// detectTaskCycle returns the nodes participating in a task dependency
// cycle, or nil if none exists.
//
// Unlike a recursive depth-first search, this reduces the task set the way
// Kahn's algorithm does: repeatedly drain every task whose remaining
// dependency count has reached zero. If a cycle exists, some tasks are
// never drained — each still has an unresolved dependency, and by
// construction that dependency is itself undrained (otherwise its count
// would already have dropped to zero). Starting from the first such task,
// following one undrained dependency at a time must eventually revisit a
// task already on the walked path; that revisit closes the loop and gives
// the v0 -> v1 -> ... -> v0 witness the build() contract promises.
func detectTaskCycle(tasks map[string]Task) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string][]string, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	remaining := make(map[string]int, len(tasks))

	for _, name := range names {
		var known []string
		raw := append([]string(nil), tasks[name].DependsOn...)
		sort.Strings(raw)
		for _, dep := range raw {
			if _, ok := tasks[dep]; !ok {
				continue // unknown deps are reported separately by validateTaskDeps
			}
			known = append(known, dep)
		}
		deps[name] = known
		remaining[name] = len(known)
	}
	for name, known := range deps {
		for _, dep := range known {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range names {
		if remaining[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	drained := make(map[string]bool, len(tasks))
	for len(queue) > 0 {
		batch := queue
		queue = nil
		for _, name := range batch {
			drained[name] = true
			freed := append([]string(nil), dependents[name]...)
			sort.Strings(freed)
			for _, dependent := range freed {
				remaining[dependent]--
				if remaining[dependent] == 0 {
					queue = append(queue, dependent)
				}
			}
		}
		sort.Strings(queue)
	}

	if len(drained) == len(tasks) {
		return nil
	}
	return walkUndrainedCycle(names, deps, drained)
}

// walkUndrainedCycle starts at the first name detectTaskCycle never
// drained and follows one undrained dependency at a time until it revisits
// a name already on the path, returning the path closed back to that
// revisit.
func walkUndrainedCycle(names []string, deps map[string][]string, drained map[string]bool) []string {
	var start string
	for _, name := range names {
		if !drained[name] {
			start = name
			break
		}
	}

	path := []string{start}
	pos := map[string]int{start: 0}
	current := start

	for {
		var next string
		for _, dep := range deps[current] {
			if !drained[dep] {
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

// validateTaskDeps reports every (task, missing-dep) pair referencing an
// unknown task name; ValidateConfig calls it before running cycle detection.
func validateTaskDeps(tasks map[string]Task) [][2]string {
	var missing [][2]string
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		deps := append([]string(nil), tasks[name].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := tasks[dep]; !ok {
				missing = append(missing, [2]string{name, dep})
			}
		}
	}
	return missing
}
