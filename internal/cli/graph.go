package cli

import (
	"errors"

	"smpybuild/internal/dag"
	"smpybuild/internal/runlog"
	"smpybuild/internal/targets"
)

// loadGraph assembles the target catalog for the working directory and
// selects the part needed for goals.
//
// Errors are *InvocationError wrapping a *runlog.GraphFailureError, so they
// carry both the exit code and the failure class for the run history.
func (a *App) loadGraph(goals []string) (*dag.TaskGraph, error) {
	full, err := a.fullGraph()
	if err != nil {
		return nil, err
	}
	g, err := targets.Select(full, goals)
	if err != nil {
		if errors.Is(err, dag.ErrUnknownTarget) {
			return nil, graphFailure(ExitInvalidInvocation, "UnknownTarget", err)
		}
		return nil, graphFailure(ExitConfigError, "GraphInvalid", err)
	}
	return g, nil
}

// fullGraph is every target the configuration defines.
func (a *App) fullGraph() (*dag.TaskGraph, error) {
	cat, err := targets.Build(a.WorkDir, a.Config)
	if err != nil {
		return nil, graphFailure(ExitConfigError, "CatalogInvalid", err)
	}
	full, err := cat.Graph()
	if err != nil {
		code := "GraphInvalid"
		if errors.Is(err, dag.ErrCycleFound) {
			code = "CycleDetected"
		}
		return nil, graphFailure(ExitConfigError, code, err)
	}
	return full, nil
}

func graphFailure(exitCode int, code string, err error) error {
	return &InvocationError{
		ExitCode: exitCode,
		Message:  err.Error(),
		Err:      &runlog.GraphFailureError{Code: code, Message: err.Error(), Cause: err},
	}
}
