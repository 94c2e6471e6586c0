package cli

import "smpybuild/internal/runlog"

// BuildCmd builds targets once, like make.
type BuildCmd struct {
	Targets []string `arg:"" optional:"" help:"Targets to build (default: all)."`
}

func (c *BuildCmd) Run(app *App) error {
	res, err := app.Build(app.Context(), c.Targets, runlog.TriggerCLI)
	app.result = res
	return err
}
