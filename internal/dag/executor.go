package dag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smpybuild/internal/core"
)

// TaskRunner builds a single target. *core.Runner satisfies it.
//
// A failing recipe is reported through TaskResult.ExitCode. A non-nil error
// means the engine itself could not proceed (cancellation, I/O).
type TaskRunner interface {
	// Probe reports whether the task is already up to date. When fresh is
	// true the result must be non-nil.
	Probe(ctx context.Context, task *core.Task) (result *core.TaskResult, fresh bool, err error)

	Run(ctx context.Context, task *core.Task) (*core.TaskResult, error)
}

// Observer is notified of every terminal decision the executor takes.
//
// Callbacks run while the executor holds its state lock: they must be quick
// and must not call back into the Executor.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(name string, state TaskState, result *core.TaskResult)
	TaskSkipped(name, cause string)
}

// Executor runs a TaskGraph.
type Executor struct {
	Graph    *TaskGraph
	Runner   TaskRunner
	Observer Observer

	// KeepGoing keeps scheduling independent targets after a failure.
	KeepGoing bool

	mu     sync.Mutex
	state  ExecutionState
	result *GraphResult
}

// NewExecutor creates an executor with all nodes PENDING.
func NewExecutor(g *TaskGraph, runner TaskRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	return &Executor{
		Graph:  g,
		Runner: runner,
		state:  NewExecutionState(g),
		result: &GraphResult{
			GraphHash: g.Hash(),
			Results:   make(map[string]*core.TaskResult, g.Len()),
			SkipCause: make(map[string]string),
		},
	}, nil
}

// StateSnapshot returns a copy of the current execution state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// RunSerial executes the graph one target at a time. The next target is
// always the first entry of GetReadyTasks.
func (e *Executor) RunSerial(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution cancelled: %w", err)
		}

		e.mu.Lock()
		ready := GetReadyTasks(e.Graph, e.state)
		if len(ready) == 0 {
			e.mu.Unlock()
			return e.finish()
		}
		next := ready[0]
		started, err := e.startLocked(ctx, next)
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if !started {
			continue
		}

		res, err := e.Runner.Run(ctx, &e.Graph.nodesByName[next].Task)
		if err != nil {
			return nil, fmt.Errorf("executing %q: %w", next, err)
		}

		e.mu.Lock()
		err = e.completeLocked(next, res)
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

type workItem struct {
	name string
	task *core.Task
}

type workResult struct {
	name   string
	result *core.TaskResult
	err    error
}

// RunParallel executes the graph using up to concurrency workers.
//
// Targets are dispatched in increasing topological depth, and in name order
// within a depth. State is only mutated by the coordinating goroutine, under
// e.mu; task execution happens outside the lock.
func (e *Executor) RunParallel(ctx context.Context, concurrency int) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be > 0")
	}

	maxDepth := 0
	for _, d := range e.Graph.depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	byDepth := make([][]string, maxDepth+1)
	for _, n := range e.Graph.nodes {
		d := e.Graph.depth[n.canonicalIndex]
		byDepth[d] = append(byDepth[d], n.Name)
	}
	for d := range byDepth {
		sort.Strings(byDepth[d])
	}

	workCh := make(chan workItem, concurrency)
	doneCh := make(chan workResult, concurrency)

	var wg sync.WaitGroup
	var stopOnce sync.Once
	stopWorkers := func() {
		stopOnce.Do(func() {
			close(workCh)
			wg.Wait()
		})
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				res, err := e.Runner.Run(ctx, w.task)
				doneCh <- workResult{name: w.name, result: res, err: err}
			}
		}()
	}
	defer stopWorkers()

	inFlight := 0
	for depth := 0; depth <= maxDepth; depth++ {
		names := byDepth[depth]
		nextToStart := 0

		for {
			e.mu.Lock()
			for inFlight < concurrency && nextToStart < len(names) {
				name := names[nextToStart]
				nextToStart++

				// Skipped by an earlier failure.
				if IsTerminal(e.state[name]) {
					continue
				}
				if !e.depsSatisfiedLocked(name) {
					e.mu.Unlock()
					return nil, fmt.Errorf("task %q at depth %d is pending but dependencies are not successful", name, depth)
				}
				started, err := e.startLocked(ctx, name)
				if err != nil {
					e.mu.Unlock()
					return nil, err
				}
				if started {
					inFlight++
					workCh <- workItem{name: name, task: &e.Graph.nodesByName[name].Task}
				}
			}
			stageDone := nextToStart >= len(names) && inFlight == 0
			e.mu.Unlock()
			if stageDone {
				break
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
			case r := <-doneCh:
				inFlight--
				if r.err != nil {
					return nil, fmt.Errorf("executing %q: %w", r.name, r.err)
				}
				e.mu.Lock()
				err := e.completeLocked(r.name, r.result)
				e.mu.Unlock()
				if err != nil {
					return nil, err
				}
			}
		}
	}

	return e.finish()
}

func (e *Executor) depsSatisfiedLocked(name string) bool {
	for _, p := range e.Graph.incoming[e.Graph.nodesByName[name].canonicalIndex] {
		if !IsSuccessful(e.state[e.Graph.nodes[p].Name]) {
			return false
		}
	}
	return true
}

// startLocked probes name and either settles it as UP_TO_DATE (returning
// false) or moves it to RUNNING (returning true).
func (e *Executor) startLocked(ctx context.Context, name string) (bool, error) {
	node := e.Graph.nodesByName[name]

	// In a dry run nothing is rebuilt on disk, so a target downstream of one
	// that would be rebuilt must be reported as stale too.
	if !e.upstreamDryRunLocked(node) {
		res, fresh, err := e.Runner.Probe(ctx, &node.Task)
		if err != nil {
			return false, fmt.Errorf("probing %q: %w", name, err)
		}
		if fresh {
			if res == nil {
				return false, fmt.Errorf("probing %q: nil result", name)
			}
			if err := Transition(e.state, name, TaskPending, TaskUpToDate); err != nil {
				return false, err
			}
			e.result.Results[name] = res
			if e.Observer != nil {
				e.Observer.TaskFinished(name, TaskUpToDate, res)
			}
			return false, nil
		}
	}

	if err := Transition(e.state, name, TaskPending, TaskRunning); err != nil {
		return false, err
	}
	e.result.ExecutionOrder = append(e.result.ExecutionOrder, name)
	if e.Observer != nil {
		e.Observer.TaskStarted(name)
	}
	return true, nil
}

func (e *Executor) upstreamDryRunLocked(node *TaskNode) bool {
	for _, p := range e.Graph.incoming[node.canonicalIndex] {
		if res := e.result.Results[e.Graph.nodes[p].Name]; res != nil && res.DryRun {
			return true
		}
	}
	return false
}

// completeLocked commits the terminal state of a RUNNING task.
func (e *Executor) completeLocked(name string, res *core.TaskResult) error {
	if res == nil {
		return fmt.Errorf("executing %q: nil result", name)
	}
	if cur := e.state[name]; cur != TaskRunning {
		return fmt.Errorf("completion for %q but state is %s", name, cur)
	}
	e.result.Results[name] = res

	if res.Succeeded() {
		if err := Transition(e.state, name, TaskRunning, TaskCompleted); err != nil {
			return err
		}
		if e.Observer != nil {
			e.Observer.TaskFinished(name, TaskCompleted, res)
		}
		return nil
	}

	skipped, err := FailAndPropagate(e.Graph, e.state, name)
	if err != nil {
		return err
	}
	if e.Observer != nil {
		e.Observer.TaskFinished(name, TaskFailed, res)
	}
	if !e.KeepGoing {
		skipped = append(skipped, SkipPending(e.Graph, e.state)...)
	}
	for _, s := range skipped {
		e.result.SkipCause[s] = name
		if e.Observer != nil {
			e.Observer.TaskSkipped(s, name)
		}
	}
	return nil
}

func (e *Executor) finish() (*GraphResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, st := range e.state {
		if !IsTerminal(st) {
			return nil, fmt.Errorf("no ready tasks but %q is %s", name, st)
		}
	}
	e.result.FinalState = e.state.Clone()
	return e.result, nil
}
