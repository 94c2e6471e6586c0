package dag

import (
	"fmt"
	"sort"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskUpToDate:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependents.
func IsSuccessful(s TaskState) bool {
	return s == TaskCompleted || s == TaskUpToDate
}

// Transition performs a validated transition for a single task.
//
// The caller supplies the expected prior state so races are observable.
// state is mutated only if the transition is valid.
func Transition(state ExecutionState, taskName string, from, to TaskState) error {
	cur, ok := state[taskName]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", taskName)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskName, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskName, from, to)
	}
	state[taskName] = to
	return nil
}

func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskUpToDate || to == TaskSkipped
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// FailAndPropagate marks taskName FAILED (from RUNNING) and transitively marks
// every PENDING downstream dependent SKIPPED. It returns the newly skipped
// names in canonical order.
//
// A downstream node found RUNNING is an invariant violation: it could only
// have started with a failed prerequisite.
func FailAndPropagate(g *TaskGraph, state ExecutionState, taskName string) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	node, ok := g.nodesByName[taskName]
	if !ok {
		return nil, fmt.Errorf("unknown task: %q", taskName)
	}

	switch cur := state[taskName]; cur {
	case TaskRunning:
		state[taskName] = TaskFailed
	case TaskFailed:
	default:
		return nil, fmt.Errorf("cannot fail %q from state %s", taskName, cur)
	}

	visited := make([]bool, len(g.nodes))
	visited[node.canonicalIndex] = true
	queue := append([]int(nil), g.outgoing[node.canonicalIndex]...)

	var skipped []int
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if visited[u] {
			continue
		}
		visited[u] = true

		name := g.nodes[u].Name
		switch state[name] {
		case TaskPending:
			state[name] = TaskSkipped
			skipped = append(skipped, u)
		case TaskRunning:
			return nil, fmt.Errorf("invariant violation: downstream task %q is RUNNING during failure propagation", name)
		}
		queue = append(queue, g.outgoing[u]...)
	}

	sort.Ints(skipped)
	return g.names(skipped), nil
}

// SkipPending marks every PENDING task SKIPPED and returns their names in
// canonical order. Used to stop scheduling after a failure.
func SkipPending(g *TaskGraph, state ExecutionState) []string {
	var skipped []string
	for _, n := range g.nodes {
		if state[n.Name] == TaskPending {
			state[n.Name] = TaskSkipped
			skipped = append(skipped, n.Name)
		}
	}
	return skipped
}
