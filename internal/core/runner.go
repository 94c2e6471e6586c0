package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"smpybuild/internal/logfields"
)

// Runner builds a single task: freshness check, then steps in order.
//
// Exit status of a task is governed solely by its primary steps. A failing
// best-effort step is recorded in the result and logged, and the recipe
// continues with the next step.
type Runner struct {
	// WorkingDir is the task execution directory.
	WorkingDir string

	// Executor runs shell steps.
	Executor *Executor

	// Freshness decides whether file tasks need to run.
	Freshness *FreshnessChecker

	// Passthrough names host variables visible to shell steps.
	Passthrough []string

	// LookupEnv reads host variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Stdout and Stderr receive live step output. Both may be nil.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger

	// DryRun reports stale tasks without running any step.
	DryRun bool

	// AlwaysMake treats every task as stale.
	AlwaysMake bool
}

// NewRunner creates a Runner for workingDir using the given freshness mode.
// stamps may be nil outside content mode.
func NewRunner(workingDir string, mode FreshnessMode, stamps StampStore) *Runner {
	resolver := NewInputResolver(workingDir)
	return &Runner{
		WorkingDir: workingDir,
		Executor:   NewExecutor(workingDir),
		Freshness: &FreshnessChecker{
			Mode:     mode,
			Resolver: resolver,
			Hasher:   NewTaskHasher(workingDir),
			Stamps:   stamps,
		},
		LookupEnv: os.LookupEnv,
		Logger:    slog.Default(),
	}
}

// StepOutcome is the record of one executed step.
type StepOutcome struct {
	Step         string `json:"step"`
	IgnoreErrors bool   `json:"ignore_errors,omitempty"`
	ExitCode     int    `json:"exit_code"`
	Err          string `json:"error,omitempty"`
}

// Failed reports whether the step did not succeed.
func (o StepOutcome) Failed() bool { return o.Err != "" }

// TaskResult is the outcome of building (or not building) one task.
type TaskResult struct {
	Task string

	// UpToDate is set when the freshness check skipped the task.
	UpToDate bool

	// Reason is the freshness verdict code.
	Reason string

	// DryRun is set when steps were listed but not executed.
	DryRun bool

	Steps []StepOutcome

	Stdout []byte
	Stderr []byte

	// ExitCode is 0 on success, otherwise the failing primary step's code.
	ExitCode int

	Duration time.Duration
}

// Succeeded reports whether the task satisfies its dependents.
func (r *TaskResult) Succeeded() bool { return r != nil && r.ExitCode == 0 }

// IgnoredFailures returns the best-effort steps that failed.
func (r *TaskResult) IgnoredFailures() []StepOutcome {
	if r == nil {
		return nil
	}
	var out []StepOutcome
	for _, s := range r.Steps {
		if s.IgnoreErrors && s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Probe checks whether task can be skipped. When fresh, the returned result
// has UpToDate set and fresh is true.
func (r *Runner) Probe(_ context.Context, task *Task) (result *TaskResult, fresh bool, err error) {
	if err := validateTask(task); err != nil {
		return nil, false, err
	}
	if r.AlwaysMake {
		return nil, false, nil
	}
	verdict, _, err := r.Freshness.Check(task)
	if err != nil {
		return nil, false, fmt.Errorf("checking freshness of %q: %w", task.Name, err)
	}
	if !verdict.UpToDate {
		return nil, false, nil
	}
	return &TaskResult{Task: task.Name, UpToDate: true, Reason: verdict.Reason}, true, nil
}

// Run executes the task's steps unconditionally.
//
// The returned error is reserved for infrastructure problems (invalid task,
// cancellation, stamp persistence). Step failures are reported through
// TaskResult.ExitCode.
func (r *Runner) Run(ctx context.Context, task *Task) (*TaskResult, error) {
	if err := validateTask(task); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := r.logger().With(logfields.Target(task.Name))
	res := &TaskResult{Task: task.Name, Reason: ReasonForced}

	if !r.AlwaysMake {
		verdict, _, err := r.Freshness.Check(task)
		if err != nil {
			return nil, fmt.Errorf("checking freshness of %q: %w", task.Name, err)
		}
		res.Reason = verdict.Reason
	}

	if r.DryRun {
		res.DryRun = true
		out := r.stdout()
		if out == nil {
			out = io.Discard
		}
		for _, s := range task.Steps {
			fmt.Fprintln(out, s.Describe())
		}
		return res, nil
	}

	// Inputs are resolved before the recipe runs so the stamp reflects what
	// the build actually consumed.
	inputs, err := r.Freshness.Resolver.Resolve(task.Inputs)
	if err != nil {
		return nil, fmt.Errorf("resolving inputs: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	sc := &StepContext{
		Task:     task.Name,
		WorkDir:  r.WorkingDir,
		Env:      BuildEnv(r.Passthrough, r.LookupEnv, task.Env),
		Stdout:   teeTo(&outBuf, r.stdout()),
		Stderr:   teeTo(&errBuf, r.stderr()),
		Logger:   logger,
		executor: r.Executor,
	}

	logger.Info("Building target", logfields.Reason(res.Reason), slog.Int("steps", len(task.Steps)))
	for _, step := range task.Steps {
		outcome, err := r.runStep(ctx, sc, step)
		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, outcome)
		if !outcome.Failed() {
			continue
		}
		if step.IgnoreErrors {
			logger.Warn("Ignoring failed best-effort step", logfields.Step(outcome.Step), slog.String(logfields.KeyError, outcome.Err))
			continue
		}
		logger.Error("Step failed", logfields.Step(outcome.Step), logfields.ExitCode(outcome.ExitCode), slog.String(logfields.KeyError, outcome.Err))
		res.ExitCode = outcome.ExitCode
		break
	}

	res.Stdout = outBuf.Bytes()
	res.Stderr = errBuf.Bytes()
	res.Duration = time.Since(start)

	if res.ExitCode == 0 {
		if err := r.Freshness.Record(task, inputs); err != nil {
			return nil, fmt.Errorf("recording stamp for %q: %w", task.Name, err)
		}
	}
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, sc *StepContext, step Step) (StepOutcome, error) {
	outcome := StepOutcome{Step: step.Describe(), IgnoreErrors: step.IgnoreErrors}
	sc.Logger.Debug("Running step", logfields.Step(outcome.Step))

	var err error
	if step.Action != nil {
		err = step.Action.Do(ctx, sc)
	} else {
		err = sc.Shell(ctx, step.Run)
	}
	if err == nil {
		return outcome, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, fmt.Errorf("execution cancelled: %w", ctxErr)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.Code
	} else {
		outcome.ExitCode = 1
	}
	outcome.Err = err.Error()
	return outcome, nil
}

// validateTask ensures the task is valid before execution.
func validateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if task.Name == "" {
		return fmt.Errorf("task name is required")
	}
	for i, s := range task.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("task %q step %d: %w", task.Name, i, err)
		}
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

var outputMu sync.Mutex

// lockedWriter serializes writes from concurrently running tasks.
type lockedWriter struct{ w io.Writer }

func (l lockedWriter) Write(p []byte) (int, error) {
	outputMu.Lock()
	defer outputMu.Unlock()
	return l.w.Write(p)
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout == nil {
		return nil
	}
	return lockedWriter{r.Stdout}
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr == nil {
		return nil
	}
	return lockedWriter{r.Stderr}
}
