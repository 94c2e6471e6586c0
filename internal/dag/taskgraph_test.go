package dag

import (
	"errors"
	"reflect"
	"testing"

	"smpybuild/internal/core"
)

func TestGraphConstruction_SingleNode(t *testing.T) {
	g, err := NewTaskGraph(tasks("venv"), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if g.Hash() == "" {
		t.Fatalf("expected non-empty graph hash")
	}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, []string{"venv"}) {
		t.Fatalf("unexpected topo order: %v", got)
	}
}

func TestGraphConstruction_MakefileShape(t *testing.T) {
	g, err := NewTaskGraph(
		tasks("all", "cython_extensions", "notebooks", "nb2py", "nb2html", "a.py", "a.html", "send"),
		[]Edge{
			{From: "cython_extensions", To: "all"},
			{From: "notebooks", To: "all"},
			{From: "nb2py", To: "notebooks"},
			{From: "nb2html", To: "notebooks"},
			{From: "a.py", To: "nb2py"},
			{From: "a.html", To: "nb2html"},
			{From: "nb2html", To: "send"},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a.html", "a.py", "cython_extensions", "nb2html", "nb2py", "notebooks", "all", "send"}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("topo order:\n got %v\nwant %v", got, want)
	}
	if d, _ := g.Depth("all"); d != 3 {
		t.Fatalf("depth(all) = %d, want 3", d)
	}
	if got := g.Dependencies("notebooks"); !reflect.DeepEqual(got, []string{"nb2html", "nb2py"}) {
		t.Fatalf("dependencies(notebooks) = %v", got)
	}
	if got := g.Dependents("nb2html"); !reflect.DeepEqual(got, []string{"notebooks", "send"}) {
		t.Fatalf("dependents(nb2html) = %v", got)
	}
}

func TestGraphHash_InsertionOrderInvariant(t *testing.T) {
	g1, err := NewTaskGraph(tasks("A", "B", "C"), []Edge{{From: "A", To: "B"}, {From: "A", To: "C"}})
	if err != nil {
		t.Fatal(err)
	}
	g2, err := NewTaskGraph(tasks("C", "A", "B"), []Edge{{From: "A", To: "C"}, {From: "A", To: "B"}})
	if err != nil {
		t.Fatal(err)
	}
	if g1.Hash() != g2.Hash() {
		t.Fatalf("hash differs across insertion order: %s vs %s", g1.Hash(), g2.Hash())
	}
}

func TestGraphHash_DefinitionChangeChangesHash(t *testing.T) {
	g1, _ := NewTaskGraph(tasks("A", "B"), []Edge{{From: "A", To: "B"}})

	changed := tasks("A", "B")
	changed[1].Steps = append(changed[1].Steps, core.BestEffort(core.Shell("rm -rf build")))
	g2, _ := NewTaskGraph(changed, []Edge{{From: "A", To: "B"}})

	g3, _ := NewTaskGraph(tasks("A", "B"), nil)

	if g1.Hash() == g2.Hash() {
		t.Fatalf("step change did not change hash")
	}
	if g1.Hash() == g3.Hash() {
		t.Fatalf("edge change did not change hash")
	}
}

func TestGraphValidation_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		tasks []core.Task
		edges []Edge
		kind  error
	}{
		{"no tasks", nil, nil, ErrInvalidGraph},
		{"empty name", []core.Task{{}}, nil, ErrInvalidGraph},
		{"duplicate name", tasks("A", "A"), nil, ErrInvalidGraph},
		{"unknown from", tasks("A"), []Edge{{From: "X", To: "A"}}, ErrInvalidGraph},
		{"unknown to", tasks("A"), []Edge{{From: "A", To: "X"}}, ErrInvalidGraph},
		{"self loop", tasks("A"), []Edge{{From: "A", To: "A"}}, ErrInvalidGraph},
		{"duplicate edge", tasks("A", "B"), []Edge{{From: "A", To: "B"}, {From: "A", To: "B"}}, ErrInvalidGraph},
		{"cycle", tasks("A", "B"), []Edge{{From: "A", To: "B"}, {From: "B", To: "A"}}, ErrCycleFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTaskGraph(tt.tasks, tt.edges)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var ge *GraphError
			if !errors.As(err, &ge) {
				t.Fatalf("expected *GraphError, got %T", err)
			}
		})
	}
}

func TestGraphValidation_CycleWitnessIsDeterministic(t *testing.T) {
	edges := []Edge{{From: "b", To: "c"}, {From: "c", To: "a"}, {From: "a", To: "b"}, {From: "d", To: "a"}}
	for i := 0; i < 5; i++ {
		_, err := NewTaskGraph(tasks("d", "c", "b", "a"), edges)
		if err == nil {
			t.Fatal("expected cycle error")
		}
		if got, want := err.Error(), "cycle detected: cycle: a -> b -> c -> a"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestSubgraph_KeepsAncestorClosure(t *testing.T) {
	g, err := NewTaskGraph(
		tasks("all", "cython_extensions", "notebooks", "nb2html", "send", "venv"),
		[]Edge{
			{From: "cython_extensions", To: "all"},
			{From: "notebooks", To: "all"},
			{From: "nb2html", To: "notebooks"},
			{From: "nb2html", To: "send"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := g.Subgraph([]string{"send"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sub.TopologicalOrder(); !reflect.DeepEqual(got, []string{"nb2html", "send"}) {
		t.Fatalf("subgraph order = %v", got)
	}
	if !reflect.DeepEqual(sub.Edges(), []Edge{{From: "nb2html", To: "send"}}) {
		t.Fatalf("subgraph edges = %v", sub.Edges())
	}
}

func TestSubgraph_UnknownTarget(t *testing.T) {
	g, _ := NewTaskGraph(tasks("all"), nil)

	_, err := g.Subgraph([]string{"zz", "all", "bogus"})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
	if got := err.Error(); got != "unknown target: bogus, zz" {
		t.Fatalf("unexpected message %q", got)
	}
}
