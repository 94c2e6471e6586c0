package runlog

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRecorder(t *testing.T) *Recorder {
	t.Helper()
	s, _ := newTestStore(t)
	r := NewRecorder(s)
	clock := time.Unix(1000, 0).UTC()
	r.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	r.NewID = func() (string, error) {
		n++
		return fmt.Sprintf("run-%03d", n), nil
	}
	return r
}

func TestRecorder_StartLinksPreviousRun(t *testing.T) {
	r := fixedRecorder(t)

	first, err := r.Start("gh", []string{"all"}, TriggerCLI, false)
	require.NoError(t, err)
	assert.Nil(t, first.PreviousRunID)
	assert.Equal(t, StatusRunning, first.Status)

	second, err := r.Start("gh", []string{"send"}, TriggerSchedule, false)
	require.NoError(t, err)
	require.NotNil(t, second.PreviousRunID)
	assert.Equal(t, first.RunID, *second.PreviousRunID)
}

func TestRecorder_FinishPersistsOutcome(t *testing.T) {
	r := fixedRecorder(t)
	run, err := r.Start("gh", []string{"all"}, TriggerCLI, false)
	require.NoError(t, err)

	summary := Summary{Completed: 2, Failed: 1, Skipped: 1, IgnoredSteps: 3}
	records := []TargetRecord{{Target: "all", State: "SKIPPED", SkipCause: "nb2html"}}
	run, err = r.Finish(run, StatusFailed, summary, records)
	require.NoError(t, err)
	require.NoError(t, r.RecordFailure(run.RunID, &ExecutionFailureError{Target: "nb2html", ExitCode: 1, Message: "jupyter missing"}))

	loaded, err := r.Store.LoadRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, summary, loaded.Summary)
	assert.Equal(t, time.Second, loaded.Duration())

	got, err := r.Store.LoadTargets(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	f, err := r.Store.LoadFailure(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, FailureClassExecution, f.FailureClass)
}

func TestRecorder_IDErrorsPropagate(t *testing.T) {
	r := fixedRecorder(t)
	r.NewID = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := r.Start("gh", nil, TriggerCLI, false)
	require.Error(t, err)
}

func TestNewRecorder_UsesTimeOrderedIDs(t *testing.T) {
	s, _ := newTestStore(t)
	r := NewRecorder(s)

	id, err := r.NewID()
	require.NoError(t, err)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
