package metrics

import "time"

// TargetOutcome labels the final state of a target.
type TargetOutcome string

const (
	OutcomeBuilt    TargetOutcome = "built"
	OutcomeUpToDate TargetOutcome = "up_to_date"
	OutcomeFailed   TargetOutcome = "failed"
	OutcomeSkipped  TargetOutcome = "skipped"
)

// Recorder defines observability hooks for builds.
type Recorder interface {
	ObserveTargetDuration(target string, d time.Duration)
	IncTargetOutcome(target string, outcome TargetOutcome)
	IncIgnoredStep(target string)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // success|failed|cancelled|error
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTargetDuration(string, time.Duration) {}
func (NoopRecorder) IncTargetOutcome(string, TargetOutcome)      {}
func (NoopRecorder) IncIgnoredStep(string)                       {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)          {}
func (NoopRecorder) IncBuildOutcome(string)                      {}
