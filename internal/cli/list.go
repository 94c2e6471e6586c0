package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"smpybuild/internal/dag"
)

// ListCmd prints targets in build order with their freshness. Without
// arguments every target is listed, not only those behind the default goal.
type ListCmd struct {
	Targets []string `arg:"" optional:"" help:"Restrict the listing to what these targets need."`
}

func (c *ListCmd) Run(app *App) error {
	var g *dag.TaskGraph
	var err error
	if len(c.Targets) == 0 {
		g, err = app.fullGraph()
	} else {
		g, err = app.loadGraph(c.Targets)
	}
	if err != nil {
		return err
	}
	runner := app.newRunner()
	runner.AlwaysMake = false

	tw := tabwriter.NewWriter(app.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tDEPENDS ON\tDESCRIPTION")
	for _, name := range g.TopologicalOrder() {
		node, _ := g.Node(name)
		status := "stale"
		switch {
		case node.Task.Phony:
			status = "phony"
		case app.Flags.AlwaysMake:
		default:
			_, fresh, err := runner.Probe(app.Context(), &node.Task)
			if err != nil {
				return fmt.Errorf("probing %q: %w", name, err)
			}
			if fresh {
				status = "up-to-date"
			}
		}
		deps := strings.Join(g.Dependencies(name), " ")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, status, deps, node.Task.Description)
	}
	app.result.ExitCode = ExitSuccess
	return tw.Flush()
}
