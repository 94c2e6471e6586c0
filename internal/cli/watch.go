package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"smpybuild/internal/config"
	"smpybuild/internal/logfields"
	"smpybuild/internal/runlog"
	"smpybuild/internal/watch"
)

// WatchCmd builds targets, then rebuilds them whenever a notebook, a Cython
// source, the setup script or the configuration file changes.
type WatchCmd struct {
	Targets []string `arg:"" optional:"" help:"Targets to rebuild (default: all)."`
}

func (c *WatchCmd) Run(app *App) error {
	ctx := app.Context()
	// Validate the goals up front; a typo should not leave a watcher running.
	if _, err := app.loadGraph(c.Targets); err != nil {
		return err
	}
	app.rebuild(ctx, c.Targets, runlog.TriggerWatch)

	w := &watch.Watcher{
		Root:     app.WorkDir,
		Patterns: app.watchPatterns(),
		SkipDirs: app.skipDirs(),
		Debounce: app.Config.Watch.Debounce,
		Logger:   app.Logger,
	}
	err := w.Run(ctx, func(ctx context.Context, changed []string) {
		app.Logger.Info("Sources changed", slog.Any("paths", changed))
		if slices.Contains(changed, app.configRel()) {
			app.reloadConfig()
		}
		app.rebuild(ctx, c.Targets, runlog.TriggerWatch)
	})
	if err != nil {
		return err
	}
	app.result.ExitCode = ExitSuccess
	return nil
}

// rebuild runs one build for a long-running command. Failures are logged;
// the command keeps going.
func (a *App) rebuild(ctx context.Context, goals []string, trigger runlog.Trigger) {
	if _, err := a.Build(ctx, goals, trigger); err != nil && ctx.Err() == nil {
		a.Logger.Error("Build failed", logfields.Trigger(string(trigger)), logfields.Error(err))
	}
}

func (a *App) watchPatterns() []string {
	ext := a.Config.Extensions
	patterns := []string{a.Config.Notebooks.Pattern}
	patterns = append(patterns, ext.Sources...)
	patterns = append(patterns, filepath.ToSlash(ext.SetupScript))
	if rel := a.configRel(); rel != "" {
		patterns = append(patterns, rel)
	}
	return patterns
}

// skipDirs adds the state directory and the virtualenv to the defaults.
func (a *App) skipDirs() []string {
	dirs := slices.Clone(watch.DefaultSkipDirs)
	for _, d := range []string{a.Config.StateDir, a.Config.Venv.Dir} {
		if base := filepath.Base(d); base != "." && base != string(filepath.Separator) && !slices.Contains(dirs, base) {
			dirs = append(dirs, base)
		}
	}
	return dirs
}

// configRel is the configuration file relative to the working directory,
// or "" when it lives outside of it.
func (a *App) configRel() string {
	path := filepath.Join(a.WorkDir, config.DefaultFile)
	if a.Flags.Config != "" {
		path = resolve(a.WorkDir, a.Flags.Config)
	}
	rel, err := filepath.Rel(a.WorkDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

// reloadConfig re-reads the configuration file, keeping flag overrides.
// An invalid file is reported and the previous configuration stays active.
func (a *App) reloadConfig() {
	path := filepath.Join(a.WorkDir, config.DefaultFile)
	optional := a.Flags.Config == ""
	if !optional {
		path = resolve(a.WorkDir, a.Flags.Config)
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		a.Logger.Error("Keeping previous configuration", logfields.Path(path), logfields.Error(err))
		return
	}
	a.applyFlags(cfg)
	a.Config = cfg
	a.Logger.Info("Configuration reloaded", logfields.Path(path))
}
