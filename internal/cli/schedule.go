package cli

import (
	"context"
	"time"

	"smpybuild/internal/runlog"
	"smpybuild/internal/schedule"
)

// ScheduleCmd rebuilds targets every interval until interrupted; typically
// used to republish notebooks.
type ScheduleCmd struct {
	Every   time.Duration `required:"" help:"Interval between builds, e.g. 30m."`
	Targets []string      `arg:"" optional:"" help:"Targets to build (default: all)."`
}

func (c *ScheduleCmd) Run(app *App) error {
	if c.Every <= 0 {
		return invalidInvocationf("--every must be positive, got %s", c.Every)
	}
	if _, err := app.loadGraph(c.Targets); err != nil {
		return err
	}

	ctx := app.Context()
	s, err := schedule.New(app.Logger)
	if err != nil {
		return err
	}
	if _, err := s.Every(ctx, "build", c.Every, func(ctx context.Context) {
		app.rebuild(ctx, c.Targets, runlog.TriggerSchedule)
	}); err != nil {
		return err
	}
	if err := s.Run(ctx); err != nil {
		return err
	}
	app.result.ExitCode = ExitSuccess
	return nil
}
