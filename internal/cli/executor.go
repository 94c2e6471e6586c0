package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"smpybuild/internal/core"
	"smpybuild/internal/dag"
	"smpybuild/internal/logfields"
	"smpybuild/internal/metrics"
	"smpybuild/internal/runlog"
	"smpybuild/internal/targets"
	"smpybuild/internal/trace"
)

// GraphExecutor is the minimal engine interface the CLI wires into.
//
// It lets tests prove the exit-code mapping (panics included) without
// depending on executor internals.
type GraphExecutor interface {
	Run(ctx context.Context, g *dag.TaskGraph, runner dag.TaskRunner, obs dag.Observer) (*dag.GraphResult, error)
}

type defaultGraphExecutor struct {
	Jobs      int
	KeepGoing bool
}

func (d defaultGraphExecutor) Run(ctx context.Context, g *dag.TaskGraph, runner dag.TaskRunner, obs dag.Observer) (*dag.GraphResult, error) {
	exec, err := dag.NewExecutor(g, runner)
	if err != nil {
		return nil, err
	}
	exec.Observer = obs
	exec.KeepGoing = d.KeepGoing
	if d.Jobs > 1 {
		return exec.RunParallel(ctx, d.Jobs)
	}
	return exec.RunSerial(ctx)
}

var errBuildFailed = errors.New("build failed")

// Build runs goals (the default goal when empty) once and maps the outcome
// onto an exit code.
//
// Responsibilities:
//   - Record the run, and every failure point, in the run history.
//   - Write the trace and metrics files even when targets fail.
//   - Translate engine outcomes to exit codes.
func (a *App) Build(ctx context.Context, goals []string, trigger runlog.Trigger) (res CLIResult, buildErr error) {
	res.ExitCode = ExitInternalError
	start := time.Now()

	store, err := runlog.NewStore(a.stateDir())
	if err != nil {
		return CLIResult{ExitCode: ExitConfigError}, configError(err)
	}
	rec := runlog.NewRecorder(store)
	requested := goals
	if len(requested) == 0 {
		requested = []string{targets.DefaultGoal}
	}

	g, err := a.loadGraph(goals)
	if err != nil {
		a.recordEarlyFailure(rec, requested, trigger, err)
		return CLIResult{ExitCode: ExitCode(err)}, err
	}
	graphHash := g.Hash().String()

	run, err := rec.Start(graphHash, requested, trigger, a.Flags.DryRun)
	if err != nil {
		return CLIResult{ExitCode: ExitConfigError}, configError(fmt.Errorf("starting run record: %w", err))
	}
	log := a.Logger.With(logfields.RunID(run.RunID), logfields.Trigger(string(trigger)))
	log.Info("Build started", slog.Any("targets", requested), slog.Int("tasks", g.Len()))

	runner := a.newRunner()
	runner.Logger = log

	traceRec := trace.NewRecorder()
	var prom *metrics.PrometheusRecorder
	var mrec metrics.Recorder = metrics.NoopRecorder{}
	if a.Config.Metrics.Textfile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		mrec = prom
	}
	obs := &buildObserver{graph: g, logger: log, trace: traceRec, metrics: mrec}

	gr, runErr := a.runGraph(ctx, g, runner, obs)
	res.GraphResult = gr

	status := runlog.StatusSucceeded
	switch {
	case runErr != nil && ctx.Err() != nil:
		status = runlog.StatusCancelled
		res.ExitCode = ExitTargetFailure
		buildErr = fmt.Errorf("build cancelled: %w", runErr)
	case runErr != nil:
		status = runlog.StatusFailed
		res.ExitCode = ExitInternalError
		buildErr = runErr
	case len(gr.Failed()) > 0:
		status = runlog.StatusFailed
		res.ExitCode = ExitTargetFailure
		buildErr = fmt.Errorf("%w: %s", errBuildFailed, strings.Join(gr.Failed(), ", "))
	default:
		res.ExitCode = ExitSuccess
	}

	// One failure per run: the engine error, else the first failed target.
	var failure error
	switch {
	case runErr != nil:
		failure = runErr
	case len(gr.Failed()) > 0:
		name := gr.Failed()[0]
		r := gr.Results[name]
		failure = &runlog.ExecutionFailureError{
			Target:   name,
			ExitCode: r.ExitCode,
			Message:  failedStep(r),
		}
	}
	if failure != nil {
		if err := rec.RecordFailure(run.RunID, failure); err != nil {
			log.Warn("Failed to save run failure", logfields.Error(err))
		}
	}
	if _, err := rec.Finish(run, status, summarize(gr), targetRecords(gr)); err != nil {
		log.Warn("Failed to save run record", logfields.Error(err))
	}
	if keep := a.Config.History.Keep; keep >= 0 {
		if _, err := store.Prune(keep); err != nil {
			log.Warn("Failed to prune run history", logfields.Error(err))
		}
	}

	if a.Flags.Trace != "" {
		if err := trace.WriteFile(resolve(a.WorkDir, a.Flags.Trace), traceRec.Trace(graphHash)); err != nil {
			log.Error("Failed to write trace", logfields.Error(err))
			if res.ExitCode == ExitSuccess {
				res.ExitCode, buildErr = ExitInternalError, err
			}
		}
	}
	if prom != nil {
		prom.ObserveBuildDuration(time.Since(start))
		prom.IncBuildOutcome(string(status))
		if err := prom.WriteTextfile(resolve(a.WorkDir, a.Config.Metrics.Textfile)); err != nil {
			log.Warn("Failed to write metrics textfile", logfields.Error(err))
		}
	}

	log.Info("Build finished",
		slog.String("status", string(status)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000),
	)
	return res, buildErr
}

// runGraph runs g and turns an engine panic into a system failure.
func (a *App) runGraph(ctx context.Context, g *dag.TaskGraph, runner dag.TaskRunner, obs dag.Observer) (gr *dag.GraphResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			gr = nil
			err = &runlog.SystemFailureError{Code: "Panic", Message: fmt.Sprintf("panic during execution: %v", r)}
		}
	}()
	executor := a.Executor
	if executor == nil {
		executor = defaultGraphExecutor{Jobs: a.Flags.Jobs, KeepGoing: a.Flags.KeepGoing}
	}
	return executor.Run(ctx, g, runner, obs)
}

func (a *App) newRunner() *core.Runner {
	mode, err := core.ParseFreshnessMode(a.Config.Freshness)
	if err != nil {
		mode = core.FreshnessMTime
	}
	runner := core.NewRunner(a.WorkDir, mode, core.NewFileStampStore(filepath.Join(a.stateDir(), "stamps")))
	runner.Passthrough = a.Config.Env.Passthrough
	runner.Stdout = a.Stdout
	runner.Stderr = a.Stderr
	runner.Logger = a.Logger
	runner.DryRun = a.Flags.DryRun
	runner.AlwaysMake = a.Flags.AlwaysMake
	return runner
}

// recordEarlyFailure stores a failed run for errors detected before the
// graph could run. History is best effort here: the caller already has an
// error to report.
func (a *App) recordEarlyFailure(rec *runlog.Recorder, requested []string, trigger runlog.Trigger, cause error) {
	run, err := rec.Start("", requested, trigger, a.Flags.DryRun)
	if err != nil {
		a.Logger.Warn("Failed to start run record", logfields.Error(err))
		return
	}
	if err := rec.RecordFailure(run.RunID, cause); err != nil {
		a.Logger.Warn("Failed to save run failure", logfields.Error(err))
	}
	if _, err := rec.Finish(run, runlog.StatusFailed, runlog.Summary{}, nil); err != nil {
		a.Logger.Warn("Failed to save run record", logfields.Error(err))
	}
}

func summarize(gr *dag.GraphResult) runlog.Summary {
	var s runlog.Summary
	if gr == nil {
		return s
	}
	for _, st := range gr.FinalState {
		switch st {
		case dag.TaskCompleted:
			s.Completed++
		case dag.TaskUpToDate:
			s.UpToDate++
		case dag.TaskFailed:
			s.Failed++
		case dag.TaskSkipped:
			s.Skipped++
		}
	}
	s.IgnoredSteps = gr.IgnoredFailures()
	return s
}

func targetRecords(gr *dag.GraphResult) []runlog.TargetRecord {
	if gr == nil {
		return nil
	}
	names := make([]string, 0, len(gr.FinalState))
	for name := range gr.FinalState {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]runlog.TargetRecord, 0, len(names))
	for _, name := range names {
		tr := runlog.TargetRecord{
			Target:    name,
			State:     string(gr.FinalState[name]),
			SkipCause: gr.SkipCause[name],
		}
		if r := gr.Results[name]; r != nil {
			tr.Reason = r.Reason
			tr.ExitCode = r.ExitCode
			tr.DurationMs = r.Duration.Milliseconds()
			for _, o := range r.IgnoredFailures() {
				tr.IgnoredSteps = append(tr.IgnoredSteps, o.Step)
			}
		}
		records = append(records, tr)
	}
	return records
}

// failedStep describes the step that failed r.
func failedStep(r *core.TaskResult) string {
	if r == nil {
		return ""
	}
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if o := r.Steps[i]; o.Failed() && !o.IgnoreErrors {
			return fmt.Sprintf("%s: %s", o.Step, o.Err)
		}
	}
	return ""
}
