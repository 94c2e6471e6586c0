package dag

import (
	"container/heap"
)

// validateAcyclic rejects cyclic graphs using Kahn's algorithm. When a cycle
// exists one witness path is extracted for the error message.
func (g *TaskGraph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.nodes) {
		return nil
	}
	return cycleError(g.cycleWitness())
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// topoOrderIndices returns a topological ordering of node indices. Among
// ready nodes the lowest canonical index (name order) goes first. Nodes on a
// cycle never become ready and are absent from the result.
func (g *TaskGraph) topoOrderIndices() []int {
	indeg := append([]int(nil), g.indeg...)

	ready := &indexHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			if indeg[m]--; indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// cycleWitness walks the graph depth-first in canonical order and returns the
// first cycle found as a closed path of names, e.g. [a b c a].
func (g *TaskGraph) cycleWitness() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	mark := make([]int, len(g.nodes))
	var path []int

	var visit func(u int) []int
	visit = func(u int) []int {
		mark[u] = onPath
		path = append(path, u)
		for _, v := range g.outgoing[u] {
			switch mark[v] {
			case onPath:
				for i, p := range path {
					if p == v {
						return append(append([]int(nil), path[i:]...), v)
					}
				}
			case unvisited:
				if c := visit(v); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		mark[u] = done
		return nil
	}

	for i := range g.nodes {
		if mark[i] != unvisited {
			continue
		}
		if c := visit(i); c != nil {
			return g.names(c)
		}
	}
	return nil
}
