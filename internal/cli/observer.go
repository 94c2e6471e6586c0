package cli

import (
	"log/slog"

	"smpybuild/internal/core"
	"smpybuild/internal/dag"
	"smpybuild/internal/logfields"
	"smpybuild/internal/metrics"
	"smpybuild/internal/trace"
)

// buildObserver fans executor decisions out to the log, the trace sink and
// the metrics recorder. The executor serializes callbacks.
type buildObserver struct {
	graph   *dag.TaskGraph
	logger  *slog.Logger
	trace   trace.Sink
	metrics metrics.Recorder
}

func (o *buildObserver) TaskStarted(name string) {
	o.logger.Debug("Target started", logfields.Target(name))
}

func (o *buildObserver) TaskFinished(name string, state dag.TaskState, res *core.TaskResult) {
	switch state {
	case dag.TaskUpToDate:
		o.logger.Debug("Target is up to date", logfields.Target(name), logfields.Reason(res.Reason))
		trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventTargetUpToDate, Target: name, Reason: res.Reason})
		o.metrics.IncTargetOutcome(name, metrics.OutcomeUpToDate)

	case dag.TaskCompleted:
		if res.DryRun {
			trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventTargetPlanned, Target: name, Reason: res.Reason})
			return
		}
		for _, s := range res.IgnoredFailures() {
			trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventStepIgnored, Target: name, Step: s.Step, ExitCode: s.ExitCode})
			o.metrics.IncIgnoredStep(name)
		}
		trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventTargetBuilt, Target: name, Reason: res.Reason})
		o.metrics.ObserveTargetDuration(name, res.Duration)
		o.metrics.IncTargetOutcome(name, metrics.OutcomeBuilt)
		o.logger.Info("Target built",
			logfields.Target(name),
			logfields.DurationMS(float64(res.Duration.Microseconds())/1000),
		)

	case dag.TaskFailed:
		step := failedStep(res)
		trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventTargetFailed, Target: name, Step: step, ExitCode: res.ExitCode})
		o.metrics.ObserveTargetDuration(name, res.Duration)
		o.metrics.IncTargetOutcome(name, metrics.OutcomeFailed)
		o.logger.Error("Target failed", logfields.Target(name), logfields.ExitCode(res.ExitCode), logfields.Step(step))
	}
}

func (o *buildObserver) TaskSkipped(name, cause string) {
	reason := "Halted"
	if dependsOn(o.graph, name, cause) {
		reason = "UpstreamFailed"
	}
	trace.SafeRecord(o.trace, trace.TraceEvent{Kind: trace.EventTargetSkipped, Target: name, Reason: reason, Cause: cause})
	o.metrics.IncTargetOutcome(name, metrics.OutcomeSkipped)
	o.logger.Warn("Target skipped", logfields.Target(name), logfields.Reason(reason), slog.String("cause", cause))
}

// dependsOn reports whether target transitively depends on prereq.
func dependsOn(g *dag.TaskGraph, target, prereq string) bool {
	if g == nil {
		return false
	}
	seen := map[string]bool{}
	stack := []string{target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range g.Dependencies(n) {
			if d == prereq {
				return true
			}
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}
