package runlog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerWatch    Trigger = "watch"
	TriggerSchedule Trigger = "schedule"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Summary counts final target states of a run.
type Summary struct {
	Completed    int `json:"completed"`
	UpToDate     int `json:"up_to_date"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	IgnoredSteps int `json:"ignored_steps"`
}

// Run is the persistent metadata of one build invocation.
type Run struct {
	RunID         string     `json:"run_id"`
	GraphHash     string     `json:"graph_hash"`
	Targets       []string   `json:"targets"`
	Trigger       Trigger    `json:"trigger"`
	DryRun        bool       `json:"dry_run"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Status        RunStatus  `json:"status"`
	Summary       Summary    `json:"summary"`
	PreviousRunID *string    `json:"previous_run_id"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Trigger {
	case TriggerCLI, TriggerWatch, TriggerSchedule:
	default:
		errs = append(errs, fmt.Errorf("invalid trigger %q", r.Trigger))
	}
	switch r.Status {
	case StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time precedes start_time"))
	}
	return errors.Join(errs...)
}

// Duration is the wall time of a finished run, zero while running.
func (r Run) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// TargetRecord is the per-target outcome of a run.
type TargetRecord struct {
	Target       string   `json:"target"`
	State        string   `json:"state"`
	Reason       string   `json:"reason,omitempty"`
	ExitCode     int      `json:"exit_code"`
	DurationMs   int64    `json:"duration_ms"`
	IgnoredSteps []string `json:"ignored_steps,omitempty"`
	SkipCause    string   `json:"skip_cause,omitempty"`
}

type FailureClass string

const (
	FailureClassGraph     FailureClass = "graph"
	FailureClassWorkspace FailureClass = "workspace"
	FailureClassExecution FailureClass = "execution"
	FailureClassSystem    FailureClass = "system"
)

// Failure is the recorded reason a run did not succeed.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Target       *string      `json:"target,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassGraph, FailureClassWorkspace, FailureClassExecution, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Target != nil && strings.TrimSpace(*f.Target) == "" {
		errs = append(errs, errors.New("target must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
