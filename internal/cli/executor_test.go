package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smpybuild/internal/core"
	"smpybuild/internal/dag"
	"smpybuild/internal/metrics"
	"smpybuild/internal/runlog"
	"smpybuild/internal/trace"
)

type panicExecutor struct{}

func (panicExecutor) Run(context.Context, *dag.TaskGraph, dag.TaskRunner, dag.Observer) (*dag.GraphResult, error) {
	panic("boom")
}

type errorExecutor struct{ err error }

func (e errorExecutor) Run(context.Context, *dag.TaskGraph, dag.TaskRunner, dag.Observer) (*dag.GraphResult, error) {
	return nil, e.err
}

func latestRun(t *testing.T, dir string) (runlog.Run, *runlog.Failure) {
	t.Helper()
	store, err := runlog.NewStore(filepath.Join(dir, ".smpybuild"))
	require.NoError(t, err)
	runs, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	f, err := store.LoadFailure(runs[0].RunID)
	require.NoError(t, err)
	return runs[0], f
}

func TestBuild_PanicIsInternalError(t *testing.T) {
	dir := newTestProject(t)
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: dir})
	app.Executor = panicExecutor{}

	res, err := app.Build(context.Background(), []string{"nb2py"}, runlog.TriggerCLI)
	require.Error(t, err)
	assert.Equal(t, ExitInternalError, res.ExitCode)

	var sf *runlog.SystemFailureError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "Panic", sf.Code)

	run, f := latestRun(t, dir)
	assert.Equal(t, runlog.StatusFailed, run.Status)
	require.NotNil(t, f)
	assert.Equal(t, runlog.FailureClassSystem, f.FailureClass)
	assert.Equal(t, "Panic", f.ErrorCode)
}

func TestBuild_EngineErrorIsInternalError(t *testing.T) {
	dir := newTestProject(t)
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: dir})
	app.Executor = errorExecutor{err: errors.New("disk on fire")}

	res, err := app.Build(context.Background(), nil, runlog.TriggerCLI)
	require.EqualError(t, err, "disk on fire")
	assert.Equal(t, ExitInternalError, res.ExitCode)
	assert.Equal(t, ExitInternalError, ExitCode(err))
}

func TestBuild_CancelledRun(t *testing.T) {
	dir := newTestProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	app, _ := newTestApp(t, ctx, CLI{WorkDir: dir})
	cancel()

	res, err := app.Build(ctx, []string{"nb2py"}, runlog.TriggerCLI)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExitTargetFailure, res.ExitCode)

	run, f := latestRun(t, dir)
	assert.Equal(t, runlog.StatusCancelled, run.Status)
	require.NotNil(t, f)
	assert.Equal(t, "Cancelled", f.ErrorCode)
	assert.NoFileExists(t, filepath.Join(dir, "A.py"))
}

func TestBuild_UnknownTargetRecordsGraphFailure(t *testing.T) {
	dir := newTestProject(t)
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: dir})

	res, err := app.Build(context.Background(), []string{"nope"}, runlog.TriggerCLI)
	require.ErrorIs(t, err, dag.ErrUnknownTarget)
	assert.Equal(t, ExitInvalidInvocation, res.ExitCode)

	run, f := latestRun(t, dir)
	assert.Equal(t, runlog.StatusFailed, run.Status)
	assert.Equal(t, []string{"nope"}, run.Targets)
	require.NotNil(t, f)
	assert.Equal(t, runlog.FailureClassGraph, f.FailureClass)
	assert.Equal(t, "UnknownTarget", f.ErrorCode)
}

func TestRecordEarlyFailure_LogsHistoryWriteErrors(t *testing.T) {
	dir := newTestProject(t)
	app, out := newTestApp(t, context.Background(), CLI{WorkDir: dir})

	store, err := runlog.NewStore(filepath.Join(dir, ".smpybuild"))
	require.NoError(t, err)
	// A directory in the way of failure.json makes the write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".smpybuild", "runs", "r1", "failure.json", "x"), 0o755))
	rec := &runlog.Recorder{
		Store: store,
		Now:   time.Now,
		NewID: func() (string, error) { return "r1", nil },
	}

	app.recordEarlyFailure(rec, []string{"nope"}, runlog.TriggerCLI,
		&runlog.GraphFailureError{Code: "UnknownTarget", Message: "no such target", Cause: dag.ErrUnknownTarget})

	assert.Contains(t, out.String(), "Failed to save run failure")
	run, err := store.LoadRun("r1")
	require.NoError(t, err)
	assert.Equal(t, runlog.StatusFailed, run.Status)
}

func TestBuild_ContentFreshnessIgnoresTouch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smpybuild.yaml"),
		[]byte("freshness: content\nnotebooks:\n  converter: native\n"), 0o644))
	writeNotebook(t, dir, "A.ipynb", 1, time.Now().Add(-time.Hour))
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: dir})

	_, err := app.Build(context.Background(), []string{"A.py"}, runlog.TriggerCLI)
	require.NoError(t, err)

	// Newer mtime, same bytes.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "A.ipynb"), future, future))
	res, err := app.Build(context.Background(), []string{"A.py"}, runlog.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.py"}, res.GraphResult.UpToDate())
	assert.Equal(t, core.ReasonStampMatches, res.GraphResult.Results["A.py"].Reason)

	// Different bytes rebuild.
	writeNotebook(t, dir, "A.ipynb", 2, future.Add(time.Minute))
	res, err = app.Build(context.Background(), []string{"A.py"}, runlog.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.py"}, res.GraphResult.ExecutionOrder)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitConfigError, ExitCode(configError(errors.New("bad"))))
	assert.Equal(t, ExitInvalidInvocation, ExitCode(invalidInvocationf("bad %d", 1)))
	assert.Equal(t, ExitInternalError, ExitCode(errors.New("other")))

	cause := errors.New("root")
	err := &InvocationError{ExitCode: ExitConfigError, Err: cause}
	assert.Equal(t, "root", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestObserver_SkipReasons(t *testing.T) {
	g, err := dag.NewTaskGraph([]core.Task{
		{Name: "ext", Phony: true},
		{Name: "all", Phony: true},
		{Name: "nb", Phony: true},
	}, []dag.Edge{{From: "ext", To: "all"}})
	require.NoError(t, err)

	rec := trace.NewRecorder()
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: t.TempDir()})
	obs := &buildObserver{graph: g, logger: app.Logger, trace: rec, metrics: metrics.NoopRecorder{}}

	obs.TaskFinished("ext", dag.TaskFailed, &core.TaskResult{Task: "ext", ExitCode: 2, Steps: []core.StepOutcome{
		{Step: "cleanup", IgnoreErrors: true, ExitCode: 1, Err: "x"},
		{Step: "python3 setup.py build_ext", ExitCode: 2, Err: "exit status 2"},
	}})
	obs.TaskSkipped("all", "ext")
	obs.TaskSkipped("nb", "ext")

	tr := rec.Trace("h")
	assert.Equal(t, []trace.TraceEvent{
		{Kind: trace.EventTargetSkipped, Target: "all", Reason: "UpstreamFailed", Cause: "ext"},
		{Kind: trace.EventTargetFailed, Target: "ext", Step: "python3 setup.py build_ext: exit status 2", ExitCode: 2},
		{Kind: trace.EventTargetSkipped, Target: "nb", Reason: "Halted", Cause: "ext"},
	}, tr.Events)
}

func TestObserver_BuiltRecordsIgnoredSteps(t *testing.T) {
	rec := trace.NewRecorder()
	app, _ := newTestApp(t, context.Background(), CLI{WorkDir: t.TempDir()})
	obs := &buildObserver{logger: app.Logger, trace: rec, metrics: metrics.NoopRecorder{}}

	obs.TaskFinished("ext", dag.TaskCompleted, &core.TaskResult{Task: "ext", Reason: core.ReasonInputNewer, Steps: []core.StepOutcome{
		{Step: "python3 setup.py build_ext"},
		{Step: "copy build/*.so -> .", IgnoreErrors: true, ExitCode: 1, Err: "no files match"},
	}})
	obs.TaskFinished("A.py", dag.TaskCompleted, &core.TaskResult{Task: "A.py", DryRun: true, Reason: core.ReasonOutputMissing})
	obs.TaskFinished("B.py", dag.TaskUpToDate, &core.TaskResult{Task: "B.py", UpToDate: true, Reason: core.ReasonOutputsCurrent})

	assert.Equal(t, []trace.TraceEvent{
		{Kind: trace.EventTargetPlanned, Target: "A.py", Reason: core.ReasonOutputMissing},
		{Kind: trace.EventTargetUpToDate, Target: "B.py", Reason: core.ReasonOutputsCurrent},
		{Kind: trace.EventStepIgnored, Target: "ext", Step: "copy build/*.so -> .", ExitCode: 1},
		{Kind: trace.EventTargetBuilt, Target: "ext", Reason: core.ReasonInputNewer},
	}, rec.Trace("h").Events)
}
