// Package core provides the domain model and single-task machinery of smpybuild.
//
// # Core Types
//
// Task: a named build target with declared inputs, outputs and an ordered
// list of steps. Phony tasks always run; file tasks run only when stale.
//
// Step: one line of a recipe. Either a shell command or a native Action.
// Steps marked IgnoreErrors are best-effort: their failure is recorded but
// never fails the task.
//
// Runner: decides whether a task is up to date (FreshnessChecker), executes
// its steps in order (Executor for shell commands) and records stamps after a
// successful build.
//
// Everything here is independent of the dependency graph; see package dag.
package core
