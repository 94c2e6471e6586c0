package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExecutionTrace is the canonical record of the decisions taken in one build.
//
// It holds logical facts only: no timestamps, durations, output bytes or
// error strings. Two builds that took the same decisions over the same graph
// produce byte-identical CanonicalJSON, regardless of -j.
type ExecutionTrace struct {
	GraphHash string       `json:"graphHash"`
	Events    []TraceEvent `json:"events"`
}

// EventKind discriminates TraceEvent. The string values are part of the
// canonical bytes; do not rename.
type EventKind string

const (
	EventTargetUpToDate EventKind = "TargetUpToDate"
	EventTargetPlanned  EventKind = "TargetPlanned"
	EventTargetBuilt    EventKind = "TargetBuilt"
	EventStepIgnored    EventKind = "StepIgnored"
	EventTargetFailed   EventKind = "TargetFailed"
	EventTargetSkipped  EventKind = "TargetSkipped"
)

// TraceEvent is a single logical decision about a target.
type TraceEvent struct {
	Kind EventKind `json:"kind"`

	// Target is the build target the event refers to.
	Target string `json:"target"`

	// Reason is a stable code: the freshness verdict for built and
	// up-to-date targets, "UpstreamFailed" or "Halted" for skips.
	Reason string `json:"reason,omitempty"`

	// Cause names the failed target responsible for a skip.
	Cause string `json:"cause,omitempty"`

	// Step describes the failed step: a best-effort step for StepIgnored,
	// the primary step for TargetFailed.
	Step string `json:"step,omitempty"`

	// ExitCode is set for failed steps and targets.
	ExitCode int `json:"exitCode,omitempty"`
}

// Validate checks basic invariants.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if kindOrder(e.Kind) == 0 {
			return fmt.Errorf("events[%d]: unknown kind %q", i, e.Kind)
		}
		if e.Target == "" {
			return fmt.Errorf("events[%d].target is required", i)
		}
		if e.Kind == EventStepIgnored && e.Step == "" {
			return fmt.Errorf("events[%d].step is required for %s", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts events by (target, kind order, step, reason, cause).
// Ordering is independent of execution timing.
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if ka, kb := kindOrder(a.Kind), kindOrder(b.Kind); ka != kb {
			return ka < kb
		}
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.Cause < b.Cause
	})
}

// kindOrder places events of one target in lifecycle order. Zero means unknown.
func kindOrder(k EventKind) int {
	switch k {
	case EventTargetUpToDate:
		return 10
	case EventTargetPlanned:
		return 20
	case EventStepIgnored:
		return 30
	case EventTargetBuilt:
		return 40
	case EventTargetFailed:
		return 50
	case EventTargetSkipped:
		return 60
	default:
		return 0
	}
}

// CanonicalJSON returns the canonical encoding. The receiver is not mutated.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: append([]TraceEvent{}, t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}
