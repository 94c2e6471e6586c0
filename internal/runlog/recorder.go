package runlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder writes the lifecycle of a run into a Store.
type Recorder struct {
	Store *Store

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() (string, error)
}

// NewRecorder returns a Recorder using wall-clock time and UUIDv7 run IDs,
// which sort in creation order.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// Start allocates a run ID and persists a running Run linked to the
// previous run.
func (r *Recorder) Start(graphHash string, targets []string, trigger Trigger, dryRun bool) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("store is required")
	}
	id, err := r.NewID()
	if err != nil {
		return Run{}, fmt.Errorf("allocating run id: %w", err)
	}
	prev, err := r.Store.LatestRunID()
	if err != nil {
		return Run{}, fmt.Errorf("reading run history: %w", err)
	}

	run := Run{
		RunID:     id,
		GraphHash: graphHash,
		Targets:   append([]string(nil), targets...),
		Trigger:   trigger,
		DryRun:    dryRun,
		StartTime: r.Now(),
		Status:    StatusRunning,
	}
	if prev != "" {
		run.PreviousRunID = &prev
	}
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Finish stamps the end time, status and per-target records.
func (r *Recorder) Finish(run Run, status RunStatus, summary Summary, targets []TargetRecord) (Run, error) {
	end := r.Now()
	run.EndTime = &end
	run.Status = status
	run.Summary = summary
	if err := r.Store.SaveTargets(run.RunID, targets); err != nil {
		return run, err
	}
	return run, r.Store.SaveRun(run)
}

// RecordFailure classifies err and stores it for runID.
func (r *Recorder) RecordFailure(runID string, err error) error {
	if r == nil || r.Store == nil {
		return errors.New("store is required")
	}
	f, ferr := Classify(err)
	if ferr != nil {
		return ferr
	}
	return r.Store.SaveFailure(runID, f)
}
