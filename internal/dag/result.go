package dag

import (
	"sort"

	"smpybuild/internal/core"
)

// GraphResult is the summary of one graph execution.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each node by name.
	FinalState ExecutionState

	// ExecutionOrder lists the tasks that were started (transitioned to RUNNING).
	ExecutionOrder []string

	// Results holds the runner result of every executed or up-to-date task.
	Results map[string]*core.TaskResult

	// SkipCause maps each skipped task to the failed task that caused it.
	SkipCause map[string]string
}

// Succeeded reports whether every task ended COMPLETED or UP_TO_DATE.
func (r *GraphResult) Succeeded() bool {
	for _, st := range r.FinalState {
		if !IsSuccessful(st) {
			return false
		}
	}
	return true
}

// Failed returns the names of failed tasks, sorted.
func (r *GraphResult) Failed() []string { return r.inState(TaskFailed) }

// Skipped returns the names of skipped tasks, sorted.
func (r *GraphResult) Skipped() []string { return r.inState(TaskSkipped) }

// UpToDate returns the names of tasks that needed no work, sorted.
func (r *GraphResult) UpToDate() []string { return r.inState(TaskUpToDate) }

// IgnoredFailures counts failed best-effort steps across all tasks.
func (r *GraphResult) IgnoredFailures() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.IgnoredFailures())
	}
	return n
}

func (r *GraphResult) inState(s TaskState) []string {
	var out []string
	for name, st := range r.FinalState {
		if st == s {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
