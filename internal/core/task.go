package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Task is a declarative build target.
//
// Inputs and Outputs are paths or glob patterns relative to the runner's
// working directory. A task with no Outputs can never be up to date and
// behaves like a phony target.
type Task struct {
	// Name is the target name used on the command line and in edges.
	Name string `json:"name" yaml:"name"`

	// Description is shown by `smpybuild list`.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Inputs are the prerequisites whose modification (or content) makes
	// the task stale.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Outputs are the files or directories the task produces.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Steps run in order. The first failing primary step stops the task.
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Env is added on top of the runner's passthrough environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Phony tasks always run regardless of freshness.
	Phony bool `json:"phony,omitempty" yaml:"phony,omitempty"`
}

// Step is a single recipe line.
//
// Exactly one of Run and Action is set.
type Step struct {
	// Run is a shell command interpreted by `sh -c`.
	Run string `json:"run,omitempty" yaml:"run,omitempty"`

	// Action is a native operation executed in-process.
	Action Action `json:"-" yaml:"-"`

	// IgnoreErrors marks a best-effort step (the Makefile "-" prefix).
	IgnoreErrors bool `json:"ignore_errors,omitempty" yaml:"ignore_errors,omitempty"`
}

// Shell returns a primary shell step.
func Shell(command string) Step { return Step{Run: command} }

// ShellQuote quotes s for sh unless it is made of safe characters only.
func ShellQuote(s string) string {
	if s != "" && strings.Trim(s, shellSafe) == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

const shellSafe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789@%+=:,./-_~"

// Native returns a primary native step.
func Native(a Action) Step { return Step{Action: a} }

// BestEffort returns a copy of s whose failure is ignored.
func BestEffort(s Step) Step {
	s.IgnoreErrors = true
	return s
}

// Describe returns a stable, human-readable form of the step.
// Best-effort steps carry the "-" prefix so dry runs read like a Makefile.
func (s Step) Describe() string {
	body := s.Run
	if s.Action != nil {
		body = s.Action.Describe()
	}
	if s.IgnoreErrors {
		return "-" + body
	}
	return body
}

func (s Step) validate() error {
	switch {
	case s.Run == "" && s.Action == nil:
		return fmt.Errorf("step has neither run nor action")
	case s.Run != "" && s.Action != nil:
		return fmt.Errorf("step %q has both run and action", s.Run)
	}
	return nil
}

// Action is a native step implementation.
//
// Describe must be deterministic: it contributes to task identity.
type Action interface {
	Describe() string
	Do(ctx context.Context, sc *StepContext) error
}

// StepContext is what a step sees while running.
type StepContext struct {
	Task    string
	WorkDir string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger

	executor *Executor
}

// Shell runs command through the runner's executor with the step's
// environment. A non-zero exit is returned as *ExitError.
func (sc *StepContext) Shell(ctx context.Context, command string) error {
	if sc.executor == nil {
		return fmt.Errorf("no executor bound to step context")
	}
	res, err := sc.executor.Execute(ctx, command, sc.Env, sc.Stdout, sc.Stderr)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ExitError{Command: command, Code: res.ExitCode}
	}
	return nil
}

// Abs resolves p against the working directory.
func (sc *StepContext) Abs(p string) string { return absUnder(sc.WorkDir, p) }

// ExitError reports a shell command that exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
}
