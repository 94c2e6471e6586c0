package dag

import (
	"sort"
)

// GetReadyTasks returns the deterministically ordered list of task names that
// are eligible to run.
//
// Policy:
//   - A task is ready iff it is PENDING and all its dependencies are
//     COMPLETED or UP_TO_DATE.
//   - The returned list is sorted by (topological depth asc, task name asc).
//
// This function does not mutate graph or state.
func GetReadyTasks(g *TaskGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}

	ready := make([]string, 0)
	for _, node := range g.nodes {
		st, ok := state[node.Name]
		if !ok || st != TaskPending {
			continue
		}

		depsOK := true
		for _, parentIdx := range g.incoming[node.canonicalIndex] {
			if !IsSuccessful(state[g.nodes[parentIdx].Name]) {
				depsOK = false
				break
			}
		}
		if depsOK {
			ready = append(ready, node.Name)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		ad, _ := g.Depth(a)
		bd, _ := g.Depth(b)
		if ad != bd {
			return ad < bd
		}
		return a < b
	})

	return ready
}
