package cli

import (
	"errors"
	"fmt"

	"github.com/alecthomas/kong"
)

const (
	ExitSuccess           = 0
	ExitTargetFailure     = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Version is printed by --version. Overridden at link time.
var Version = "dev"

// CLI is the command-line grammar. Global flags apply to every command and
// override the configuration file.
type CLI struct {
	Config          string           `short:"c" help:"Configuration file (default: smpybuild.yaml in the working directory)."`
	WorkDir         string           `name:"workdir" short:"C" default:"." help:"Run as if started in this directory."`
	Verbose         bool             `short:"v" help:"Enable debug logging."`
	LogFormat       string           `name:"log-format" placeholder:"text|json" help:"Log output format."`
	Jobs            int              `short:"j" default:"1" help:"Number of targets to build concurrently."`
	KeepGoing       bool             `name:"keep-going" short:"k" help:"Keep building unrelated targets after a failure."`
	DryRun          bool             `name:"dry-run" short:"n" help:"Print the steps of stale targets without running them."`
	AlwaysMake      bool             `name:"always-make" short:"B" help:"Treat every target as stale."`
	Trace           string           `placeholder:"FILE" help:"Write the execution trace as canonical JSON to FILE."`
	MetricsTextfile string           `name:"metrics-textfile" placeholder:"FILE" help:"Write Prometheus metrics to FILE after each build."`
	Version         kong.VersionFlag `help:"Show version and exit."`

	Build    BuildCmd    `cmd:"" name:"run" default:"withargs" help:"Build targets (the default command)."`
	List     ListCmd     `cmd:"" help:"List targets with their dependencies and freshness."`
	Watch    WatchCmd    `cmd:"" help:"Rebuild targets whenever their sources change."`
	Schedule ScheduleCmd `cmd:"" help:"Rebuild targets periodically."`
	History  HistoryCmd  `cmd:"" help:"Show recent runs."`
}

// InvocationError carries the exit code for errors detected before or
// around a build: bad flags, bad configuration, unknown targets.
type InvocationError struct {
	ExitCode int
	Message  string
	Err      error
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *InvocationError) Unwrap() error { return e.Err }

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configError(err error) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: err.Error(), Err: err}
}

// ExitCode maps err onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv.ExitCode
	}
	return ExitInternalError
}
