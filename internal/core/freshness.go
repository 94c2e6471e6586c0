package core

import (
	"fmt"
	"strings"
)

// FreshnessMode selects how a file task is judged up to date.
type FreshnessMode string

const (
	// FreshnessMTime is make's rule: stale when any input is newer than the
	// oldest output.
	FreshnessMTime FreshnessMode = "mtime"

	// FreshnessContent starts from the mtime rule and then forgives
	// timestamp-only changes when the recorded stamp digest still matches.
	FreshnessContent FreshnessMode = "content"
)

// ParseFreshnessMode validates a mode name. Empty means mtime.
func ParseFreshnessMode(raw string) (FreshnessMode, error) {
	switch FreshnessMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FreshnessMTime:
		return FreshnessMTime, nil
	case FreshnessContent:
		return FreshnessContent, nil
	default:
		return "", fmt.Errorf("invalid freshness mode %q (expected mtime|content)", raw)
	}
}

// Verdict explains a freshness decision. Reason is a stable code used in
// traces and logs.
type Verdict struct {
	UpToDate bool
	Reason   string
}

const (
	ReasonPhony          = "Phony"
	ReasonNoOutputs      = "NoOutputs"
	ReasonOutputMissing  = "OutputMissing"
	ReasonInputNewer     = "InputNewer"
	ReasonOutputsCurrent = "OutputsCurrent"
	ReasonStampMatches   = "StampMatches"
	ReasonForced         = "Forced"
)

// FreshnessChecker decides whether a task needs to run.
type FreshnessChecker struct {
	Mode     FreshnessMode
	Resolver *InputResolver
	Hasher   *TaskHasher
	Stamps   StampStore
}

// Check evaluates task freshness. It also returns the resolved inputs so the
// caller can stamp the task after a successful build without re-globbing.
func (f *FreshnessChecker) Check(task *Task) (Verdict, []Input, error) {
	if task.Phony {
		return Verdict{Reason: ReasonPhony}, nil, nil
	}
	if len(task.Outputs) == 0 {
		return Verdict{Reason: ReasonNoOutputs}, nil, nil
	}

	inputs, err := f.Resolver.Resolve(task.Inputs)
	if err != nil {
		return Verdict{}, nil, fmt.Errorf("resolving inputs: %w", err)
	}
	outputs, missing, err := f.Resolver.ResolveOutputs(task.Outputs)
	if err != nil {
		return Verdict{}, nil, fmt.Errorf("resolving outputs: %w", err)
	}
	if len(missing) > 0 {
		return Verdict{Reason: ReasonOutputMissing}, inputs, nil
	}

	if len(inputs) == 0 || !newest(inputs).After(oldest(outputs)) {
		return Verdict{UpToDate: true, Reason: ReasonOutputsCurrent}, inputs, nil
	}

	if f.Mode == FreshnessContent && f.Stamps != nil && f.Hasher != nil {
		stamp, ok, err := f.Stamps.Get(task.Name)
		if err != nil {
			return Verdict{}, nil, err
		}
		if ok {
			d, err := f.Hasher.ComputeDigest(task, inputs)
			if err != nil {
				return Verdict{}, nil, err
			}
			if d == stamp.Digest {
				return Verdict{UpToDate: true, Reason: ReasonStampMatches}, inputs, nil
			}
		}
	}
	return Verdict{Reason: ReasonInputNewer}, inputs, nil
}

// Record stores a stamp after a successful build. It is a no-op outside
// content mode.
func (f *FreshnessChecker) Record(task *Task, inputs []Input) error {
	if f.Mode != FreshnessContent || f.Stamps == nil || f.Hasher == nil || task.Phony || len(task.Outputs) == 0 {
		return nil
	}
	d, err := f.Hasher.ComputeDigest(task, inputs)
	if err != nil {
		return err
	}
	return f.Stamps.Put(Stamp{Task: task.Name, Digest: d})
}
