// Package runlog keeps the history of build runs: run metadata, per-target
// outcomes and a classified failure record for runs that did not succeed.
package runlog
