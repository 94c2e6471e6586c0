package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"smpybuild/internal/logfields"
	"smpybuild/internal/runlog"
)

// HistoryCmd shows recent runs, newest first.
type HistoryCmd struct {
	Limit int  `short:"l" default:"10" help:"Number of runs to show (0 for all)."`
	JSON  bool `help:"Print runs as JSON."`
}

type historyEntry struct {
	runlog.Run
	Failure *runlog.Failure `json:"failure,omitempty"`
}

func (c *HistoryCmd) Run(app *App) error {
	store, err := runlog.NewStore(app.stateDir())
	if err != nil {
		return configError(err)
	}
	runs, err := store.Recent(c.Limit)
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	entries := make([]historyEntry, 0, len(runs))
	for _, r := range runs {
		f, err := store.LoadFailure(r.RunID)
		if err != nil {
			app.Logger.Warn("Unreadable failure record", logfields.RunID(r.RunID), logfields.Error(err))
		}
		entries = append(entries, historyEntry{Run: r, Failure: f})
	}
	app.result.ExitCode = ExitSuccess

	if c.JSON {
		enc := json.NewEncoder(app.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(app.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTRIGGER\tSTATUS\tDURATION\tTARGETS\tBUILT/FRESH/FAILED/SKIPPED\tFAILURE")
	for _, e := range entries {
		failure := ""
		if e.Failure != nil {
			failure = e.Failure.ErrorCode
			if e.Failure.Target != nil {
				failure += " (" + *e.Failure.Target + ")"
			}
		}
		status := string(e.Status)
		if e.DryRun {
			status += " (dry run)"
		}
		s := e.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d/%d/%d\t%s\n",
			e.RunID,
			e.StartTime.Local().Format(time.DateTime),
			e.Trigger,
			status,
			e.Duration().Round(time.Millisecond),
			strings.Join(e.Targets, " "),
			s.Completed, s.UpToDate, s.Failed, s.Skipped,
			failure,
		)
	}
	return tw.Flush()
}
