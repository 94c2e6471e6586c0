package dag

import (
	"context"
	"fmt"
	"sync"

	"smpybuild/internal/core"
)

func task(name string) core.Task {
	return core.Task{Name: name, Steps: []core.Step{core.Shell("run-" + name)}}
}

func tasks(names ...string) []core.Task {
	out := make([]core.Task, 0, len(names))
	for _, n := range names {
		out = append(out, task(n))
	}
	return out
}

// fakeRunner returns canned exit codes and records the order of Run calls.
type fakeRunner struct {
	mu    sync.Mutex
	exit  map[string]int
	fresh map[string]bool
	dry   bool
	ran   []string
}

func (r *fakeRunner) Probe(_ context.Context, t *core.Task) (*core.TaskResult, bool, error) {
	if r.fresh[t.Name] {
		return &core.TaskResult{Task: t.Name, UpToDate: true, Reason: core.ReasonOutputsCurrent}, true, nil
	}
	return nil, false, nil
}

func (r *fakeRunner) Run(_ context.Context, t *core.Task) (*core.TaskResult, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("missing task name")
	}
	r.mu.Lock()
	r.ran = append(r.ran, t.Name)
	r.mu.Unlock()
	return &core.TaskResult{Task: t.Name, ExitCode: r.exit[t.Name], DryRun: r.dry}, nil
}

func (r *fakeRunner) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type event struct {
	kind  string
	name  string
	state TaskState
	cause string
}

type recordingObserver struct {
	events []event
}

func (o *recordingObserver) TaskStarted(name string) {
	o.events = append(o.events, event{kind: "start", name: name})
}

func (o *recordingObserver) TaskFinished(name string, state TaskState, _ *core.TaskResult) {
	o.events = append(o.events, event{kind: "finish", name: name, state: state})
}

func (o *recordingObserver) TaskSkipped(name, cause string) {
	o.events = append(o.events, event{kind: "skip", name: name, cause: cause})
}
