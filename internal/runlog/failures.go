package runlog

import (
	"context"
	"errors"
	"fmt"
)

// GraphFailureError reports an invalid target graph or target selection.
type GraphFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *GraphFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("graph failure: %s", e.Message)
}

func (e *GraphFailureError) Unwrap() error { return e.Cause }

// WorkspaceFailureError reports an unusable configuration or working tree.
type WorkspaceFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *WorkspaceFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("workspace failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("workspace failure: %s", e.Message)
}

func (e *WorkspaceFailureError) Unwrap() error { return e.Cause }

// ExecutionFailureError reports a target whose primary step failed.
type ExecutionFailureError struct {
	Target   string
	ExitCode int
	Message  string
}

func (e *ExecutionFailureError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("target %s failed (exit %d): %s", e.Target, e.ExitCode, e.Message)
	}
	return fmt.Sprintf("execution failure: %s", e.Message)
}

// SystemFailureError reports engine-level problems (I/O, cancellation).
type SystemFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SystemFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("system failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("system failure: %s", e.Message)
}

func (e *SystemFailureError) Unwrap() error { return e.Cause }

// Classify maps err onto the failure taxonomy. Unknown errors are system
// failures; a cancelled context gets the Cancelled code.
func Classify(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var gf *GraphFailureError
	if errors.As(err, &gf) {
		return Failure{
			FailureClass: FailureClassGraph,
			ErrorCode:    nonEmptyOr(gf.Code, "GraphFailure"),
			ErrorMessage: nonEmptyOr(gf.Message, gf.Error()),
		}, nil
	}

	var wf *WorkspaceFailureError
	if errors.As(err, &wf) {
		return Failure{
			FailureClass: FailureClassWorkspace,
			ErrorCode:    nonEmptyOr(wf.Code, "WorkspaceFailure"),
			ErrorMessage: nonEmptyOr(wf.Message, wf.Error()),
		}, nil
	}

	var ef *ExecutionFailureError
	if errors.As(err, &ef) {
		var target *string
		if ef.Target != "" {
			t := ef.Target
			target = &t
		}
		return Failure{
			FailureClass: FailureClassExecution,
			Target:       target,
			ErrorCode:    fmt.Sprintf("Exit%d", ef.ExitCode),
			ErrorMessage: nonEmptyOr(ef.Message, ef.Error()),
		}, nil
	}

	var sf *SystemFailureError
	if errors.As(err, &sf) {
		return Failure{
			FailureClass: FailureClassSystem,
			ErrorCode:    nonEmptyOr(sf.Code, "SystemFailure"),
			ErrorMessage: nonEmptyOr(sf.Message, sf.Error()),
		}, nil
	}

	code := "UnknownError"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = "Cancelled"
	}
	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
