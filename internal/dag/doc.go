// Package dag schedules build targets over a dependency graph.
//
// It is split into:
//   - Immutable graph definition (TaskGraph): targets, edges and a stable GraphHash
//   - Mutable execution state (ExecutionState): per-run statuses
//   - Executor: serial or bounded-parallel dispatch over a TaskRunner
//
// A failed target skips everything downstream of it. Without KeepGoing no new
// target starts after the first failure.
package dag
