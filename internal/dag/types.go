package dag

import "smpybuild/internal/core"

// GraphHash is the deterministic identity of a TaskGraph.
//
// It is computed from target definitions and dependency structure only, so
// it is stable across insertion orders of tasks and edges.
type GraphHash string

// TaskDefHash is the identity of a single target definition.
//
// Distinct from core.Digest, which also covers input file content.
type TaskDefHash string

// Edge represents a dependency relation: To depends on From.
//
// To only runs after From has completed or was found up to date.
type Edge struct {
	From string
	To   string
}

// TaskNode is an immutable node in the TaskGraph.
type TaskNode struct {
	Name           string
	Task           core.Task
	DefinitionHash TaskDefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's position in the graph's canonical ordering.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }

func (h GraphHash) String() string { return string(h) }

func (h TaskDefHash) String() string { return string(h) }
