package dag

// TaskState is the runtime execution state of a node.
//
// Kept separate from TaskGraph, which is immutable:
//
//	PENDING, RUNNING, COMPLETED, FAILED, SKIPPED, UP_TO_DATE
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
	TaskUpToDate  TaskState = "UP_TO_DATE"
)

// ExecutionState maps task name to its current TaskState.
//
// It is a plain map so the scheduler can stay a pure function.
type ExecutionState map[string]TaskState

// NewExecutionState returns a state with every node of g PENDING.
func NewExecutionState(g *TaskGraph) ExecutionState {
	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = TaskPending
	}
	return state
}

// Clone returns an independent copy.
func (s ExecutionState) Clone() ExecutionState {
	cp := make(ExecutionState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}
