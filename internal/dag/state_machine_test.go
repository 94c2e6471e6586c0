package dag

import (
	"reflect"
	"testing"
)

func TestTransition_Rules(t *testing.T) {
	tests := []struct {
		from, to TaskState
		ok       bool
	}{
		{TaskPending, TaskRunning, true},
		{TaskPending, TaskUpToDate, true},
		{TaskPending, TaskSkipped, true},
		{TaskPending, TaskCompleted, false},
		{TaskRunning, TaskCompleted, true},
		{TaskRunning, TaskFailed, true},
		{TaskRunning, TaskSkipped, false},
		{TaskCompleted, TaskRunning, false},
		{TaskUpToDate, TaskRunning, false},
	}
	for _, tt := range tests {
		state := ExecutionState{"A": tt.from}
		err := Transition(state, "A", tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: ok=%v err=%v", tt.from, tt.to, tt.ok, err)
		}
		if !tt.ok && state["A"] != tt.from {
			t.Errorf("%s -> %s: state mutated on rejected transition", tt.from, tt.to)
		}
	}
}

func TestTransition_ExpectedStateMismatch(t *testing.T) {
	state := ExecutionState{"A": TaskRunning}
	if err := Transition(state, "A", TaskPending, TaskRunning); err == nil {
		t.Fatal("expected error")
	}
	if err := Transition(state, "missing", TaskPending, TaskRunning); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestFailAndPropagate_SkipsTransitiveDependentsOnly(t *testing.T) {
	// A -> B -> C, A -> D, E independent.
	g, err := NewTaskGraph(tasks("A", "B", "C", "D", "E"), []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "A", To: "D"}})
	if err != nil {
		t.Fatal(err)
	}
	state := NewExecutionState(g)
	state["A"] = TaskRunning

	skipped, err := FailAndPropagate(g, state, "A")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(skipped, []string{"B", "C", "D"}) {
		t.Fatalf("skipped = %v", skipped)
	}
	want := ExecutionState{"A": TaskFailed, "B": TaskSkipped, "C": TaskSkipped, "D": TaskSkipped, "E": TaskPending}
	if !reflect.DeepEqual(state, want) {
		t.Fatalf("state = %v", state)
	}
}

func TestFailAndPropagate_RunningDependentIsInvariantViolation(t *testing.T) {
	g, _ := NewTaskGraph(tasks("A", "B"), []Edge{{From: "A", To: "B"}})
	state := ExecutionState{"A": TaskRunning, "B": TaskRunning}

	if _, err := FailAndPropagate(g, state, "A"); err == nil {
		t.Fatal("expected invariant violation")
	}
}

func TestFailAndPropagate_RejectsPending(t *testing.T) {
	g, _ := NewTaskGraph(tasks("A"), nil)
	if _, err := FailAndPropagate(g, NewExecutionState(g), "A"); err == nil {
		t.Fatal("expected error failing a PENDING task")
	}
}

func TestSkipPending(t *testing.T) {
	g, _ := NewTaskGraph(tasks("A", "B", "C"), nil)
	state := ExecutionState{"A": TaskCompleted, "B": TaskPending, "C": TaskPending}

	if got := SkipPending(g, state); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Fatalf("skipped = %v", got)
	}
	if state["A"] != TaskCompleted || state["B"] != TaskSkipped {
		t.Fatalf("state = %v", state)
	}
}
