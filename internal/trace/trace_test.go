package trace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []TraceEvent {
	return []TraceEvent{
		{Kind: EventTargetBuilt, Target: "cython_extensions", Reason: "OutputMissing"},
		{Kind: EventStepIgnored, Target: "cython_extensions", Step: "-rm -rf build", ExitCode: 1},
		{Kind: EventTargetUpToDate, Target: "a.html", Reason: "OutputsCurrent"},
		{Kind: EventTargetSkipped, Target: "send", Reason: "UpstreamFailed", Cause: "nb2html"},
	}
}

func TestCanonicalJSON_ByteStableAcrossInsertionOrder(t *testing.T) {
	events := sampleEvents()
	reversed := make([]TraceEvent, len(events))
	for i := range events {
		reversed[len(events)-1-i] = events[i]
	}

	b1, err := ExecutionTrace{GraphHash: "g", Events: events}.CanonicalJSON()
	require.NoError(t, err)
	b2, err := ExecutionTrace{GraphHash: "g", Events: reversed}.CanonicalJSON()
	require.NoError(t, err)

	assert.Equal(t, string(b1), string(b2))
}

func TestCanonicalJSON_Format(t *testing.T) {
	tr := ExecutionTrace{GraphHash: "g", Events: []TraceEvent{
		{Kind: EventTargetBuilt, Target: "b", Reason: "Phony"},
		{Kind: EventStepIgnored, Target: "b", Step: "-ls *.so", ExitCode: 2},
		{Kind: EventTargetUpToDate, Target: "a"},
	}}

	b, err := tr.CanonicalJSON()
	require.NoError(t, err)

	want := `{"graphHash":"g","events":[` +
		`{"kind":"TargetUpToDate","target":"a"},` +
		`{"kind":"StepIgnored","target":"b","step":"-ls *.so","exitCode":2},` +
		`{"kind":"TargetBuilt","target":"b","reason":"Phony"}]}`
	assert.Equal(t, want, string(b))
}

func TestCanonicalJSON_DoesNotMutateReceiver(t *testing.T) {
	events := sampleEvents()
	tr := ExecutionTrace{GraphHash: "g", Events: events}

	_, err := tr.CanonicalJSON()
	require.NoError(t, err)

	assert.Equal(t, sampleEvents(), tr.Events)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (*ExecutionTrace)(nil).Validate())
	assert.Error(t, (&ExecutionTrace{}).Validate())
	assert.Error(t, (&ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: "Bogus", Target: "a"}}}).Validate())
	assert.Error(t, (&ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: EventTargetBuilt}}}).Validate())
	assert.Error(t, (&ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: EventStepIgnored, Target: "a"}}}).Validate())
	assert.NoError(t, (&ExecutionTrace{GraphHash: "g"}).Validate())
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := ExecutionTrace{GraphHash: "g", Events: sampleEvents()}.Hash()
	require.NoError(t, err)
	h2, err := ExecutionTrace{GraphHash: "g", Events: sampleEvents()}.Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Empty(t, ComputeTraceHash(nil))
}

func TestRecorder_ConcurrentRecordIsOrderIndependent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for _, e := range sampleEvents() {
		wg.Add(1)
		go func(e TraceEvent) {
			defer wg.Done()
			SafeRecord(r, e)
		}(e)
	}
	wg.Wait()

	got, err := r.Trace("g").CanonicalJSON()
	require.NoError(t, err)
	want, err := ExecutionTrace{GraphHash: "g", Events: sampleEvents()}.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

type panicSink struct{}

func (panicSink) Record(TraceEvent) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		SafeRecord(panicSink{}, TraceEvent{Kind: EventTargetBuilt, Target: "a"})
		SafeRecord(nil, TraceEvent{})
		NopSink{}.Record(TraceEvent{})
	})
}

func TestWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", "trace.json")
	require.NoError(t, WriteFile(p, ExecutionTrace{GraphHash: "g", Events: sampleEvents()}))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
