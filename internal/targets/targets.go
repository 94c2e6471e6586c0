// Package targets maps the configuration onto the Makefile-compatible
// target catalog: extension builds, per-notebook conversions, aggregates,
// publishing destinations and the virtualenv.
package targets

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"smpybuild/internal/config"
	"smpybuild/internal/core"
	"smpybuild/internal/dag"
	"smpybuild/internal/notebook"
)

// Built-in target names, as in the Makefiles.
const (
	All               = "all"
	CythonExtensions  = "cython_extensions"
	CythonExtensions2 = "cython_extensions2"
	CythonExtensions3 = "cython_extensions3"
	Notebooks         = "notebooks"
	NB2Py             = "nb2py"
	NB2HTML           = "nb2html"
	Venv              = "venv"
)

// DefaultGoal is built when no target is named.
const DefaultGoal = All

// stripMask clears the execute bits and group/other write bits
// (chmod -x,g-w,o-w).
const stripMask = 0o133

var builtins = []string{
	All, CythonExtensions, CythonExtensions2, CythonExtensions3,
	Notebooks, NB2Py, NB2HTML, Venv,
}

// Catalog is the full set of targets for a working directory.
type Catalog struct {
	Tasks []core.Task
	Edges []dag.Edge

	// Notebooks are the discovered notebook paths, sorted.
	Notebooks []string
}

// Build discovers notebooks under dir and assembles every target
// described by cfg.
func Build(dir string, cfg *config.Config) (*Catalog, error) {
	for name := range cfg.Publish {
		if isBuiltin(name) {
			return nil, fmt.Errorf("publish destination %q clashes with a built-in target", name)
		}
	}

	conv, err := notebook.NewConverter(cfg.Notebooks.Converter, cfg.Notebooks.Nbconvert)
	if err != nil {
		return nil, err
	}
	nbs, err := notebook.Discover(dir, cfg.Notebooks.Pattern)
	if err != nil {
		return nil, fmt.Errorf("discovering notebooks: %w", err)
	}

	c := &Catalog{Notebooks: nbs}
	env := cfg.Env.Vars

	c.add(extensionTask(CythonExtensions, cfg.Python.Default, cfg.Extensions, env))
	c.add(extensionTask(CythonExtensions2, cfg.Python.Python2, cfg.Extensions, env))
	c.add(extensionTask(CythonExtensions3, cfg.Python.Python3, cfg.Extensions, env))

	var scripts, pages []string
	for _, nb := range nbs {
		for _, to := range []notebook.Format{notebook.FormatScript, notebook.FormatHTML} {
			out := notebook.DerivedName(nb, to.Ext())
			c.add(core.Task{
				Name:    out,
				Inputs:  []string{nb},
				Outputs: []string{out},
				Steps:   []core.Step{core.Native(notebook.ConvertAction{Converter: conv, Source: nb, To: to})},
				Env:     env,
			})
			if to == notebook.FormatScript {
				scripts = append(scripts, out)
			} else {
				pages = append(pages, out)
			}
		}
	}

	c.add(core.Task{Name: NB2Py, Description: "Convert every notebook to a Python script", Phony: true})
	c.link(NB2Py, scripts...)
	c.add(core.Task{Name: NB2HTML, Description: "Convert every notebook to HTML", Phony: true})
	c.link(NB2HTML, pages...)
	c.add(core.Task{Name: Notebooks, Description: "Convert every notebook to a script and HTML", Phony: true})
	c.link(Notebooks, NB2Py, NB2HTML)

	dests := make([]string, 0, len(cfg.Publish))
	for name := range cfg.Publish {
		dests = append(dests, name)
	}
	sort.Strings(dests)
	for _, name := range dests {
		d := cfg.Publish[name]
		where := d.Path
		if d.IsRemote() {
			where = d.Remote
		}
		c.add(core.Task{
			Name:        name,
			Description: "Publish HTML notebooks to " + where,
			Inputs:      pages,
			Phony:       true,
			Steps: []core.Step{core.Native(notebook.Publish{
				Patterns: pages,
				Path:     d.Path,
				Remote:   d.Remote,
				Command:  d.Command,
			})},
			Env: env,
		})
		c.link(name, NB2HTML)
	}

	c.add(core.Task{
		Name:        Venv,
		Description: "Create the virtualenv",
		Outputs:     []string{cfg.Venv.Dir},
		Steps:       []core.Step{core.Shell(cfg.Venv.Command + " " + core.ShellQuote(cfg.Venv.Dir))},
		Env:         env,
	})

	c.add(core.Task{Name: All, Description: "Build extensions and notebooks", Phony: true})
	c.link(All, CythonExtensions, Notebooks)

	return c, nil
}

func (c *Catalog) add(t core.Task) { c.Tasks = append(c.Tasks, t) }

// link makes target depend on each prerequisite.
func (c *Catalog) link(target string, prereqs ...string) {
	for _, p := range prereqs {
		c.Edges = append(c.Edges, dag.Edge{From: p, To: target})
	}
}

// Graph validates the catalog as a TaskGraph.
func (c *Catalog) Graph() (*dag.TaskGraph, error) {
	return dag.NewTaskGraph(c.Tasks, c.Edges)
}

// Select returns the part of g needed to build goals (DefaultGoal when
// empty).
func Select(g *dag.TaskGraph, goals []string) (*dag.TaskGraph, error) {
	if len(goals) == 0 {
		goals = []string{DefaultGoal}
	}
	return g.Subgraph(goals)
}

func extensionTask(name, python string, ext config.ExtensionsConfig, env map[string]string) core.Task {
	built := path.Join(ext.TargetDir, path.Base(ext.Artifacts))

	build := []string{python, core.ShellQuote(ext.SetupScript), "build_ext"}
	for _, a := range ext.BuildArgs {
		build = append(build, core.ShellQuote(a))
	}

	steps := []core.Step{
		core.Shell(strings.Join(build, " ")),
		core.BestEffort(core.Native(core.CopyFiles{Patterns: []string{ext.Artifacts}, DestDir: ext.TargetDir})),
		core.BestEffort(core.Native(core.StripModes{Patterns: []string{built}, Clear: stripMask})),
		core.BestEffort(core.Native(core.ListFiles{Patterns: []string{built}})),
	}
	if len(ext.BuildDirs) > 0 {
		steps = append(steps, core.BestEffort(core.Native(core.RemovePaths{Patterns: ext.BuildDirs})))
	}
	if len(ext.Generated) > 0 {
		steps = append(steps, core.BestEffort(core.Native(core.RemovePaths{Patterns: ext.Generated})))
	}

	// Named recipes, as in make: build_ext does its own incremental work and
	// the three interpreters share one artifact directory.
	return core.Task{
		Name:        name,
		Description: "Compile Cython extensions with " + python,
		Phony:       true,
		Steps:       steps,
		Env:         env,
	}
}

func isBuiltin(name string) bool {
	for _, b := range builtins {
		if b == name {
			return true
		}
	}
	return false
}
