package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"smpybuild/internal/config"
	"smpybuild/internal/dag"
)

// CLIResult is the outcome of one invocation.
type CLIResult struct {
	ExitCode int

	// GraphResult is set by build commands once the graph ran.
	GraphResult *dag.GraphResult
}

// App is the state shared by every command: resolved flags, the loaded
// configuration and the output streams.
type App struct {
	Flags   *CLI
	Config  *config.Config
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger

	// Executor runs the task graph; nil uses the dag executor.
	Executor GraphExecutor

	ctx    context.Context
	result CLIResult
}

// Context returns the invocation context.
func (a *App) Context() context.Context { return a.ctx }

// kongExit is raised by the kong exit hook so --help and --version return
// from Run instead of terminating the process.
type kongExit struct{ code int }

// Run is the CLI entrypoint, suitable for black-box tests. It accepts the
// arguments without argv[0] and returns the exit code plus any error.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (CLIResult, error) {
	var grammar CLI
	parser, err := kong.New(&grammar,
		kong.Name("smpybuild"),
		kong.Description("Build Cython extensions and convert and publish Jupyter notebooks."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { panic(kongExit{code: code}) }),
		kong.Vars{"version": Version},
	)
	if err != nil {
		return CLIResult{ExitCode: ExitInternalError}, fmt.Errorf("building command line parser: %w", err)
	}

	kctx, exited, err := parse(parser, args)
	if exited != nil {
		return CLIResult{ExitCode: exited.code}, nil
	}
	if err != nil {
		return CLIResult{ExitCode: ExitInvalidInvocation}, &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error(), Err: err}
	}

	app, err := newApp(ctx, &grammar, stdout, stderr)
	if err != nil {
		return CLIResult{ExitCode: ExitCode(err)}, err
	}
	if err := kctx.Run(app); err != nil {
		code := app.result.ExitCode
		if code == ExitSuccess {
			code = ExitCode(err)
		}
		return CLIResult{ExitCode: code, GraphResult: app.result.GraphResult}, err
	}
	return app.result, nil
}

func parse(parser *kong.Kong, args []string) (kctx *kong.Context, exited *kongExit, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(kongExit)
			if !ok {
				panic(r)
			}
			exited = &e
		}
	}()
	kctx, err = parser.Parse(args)
	return kctx, nil, err
}

// newApp resolves the working directory, loads the configuration and lets
// the global flags override it.
func newApp(ctx context.Context, flags *CLI, stdout, stderr io.Writer) (*App, error) {
	if flags.Jobs < 1 {
		return nil, invalidInvocationf("-j must be at least 1, got %d", flags.Jobs)
	}
	if flags.LogFormat != "" && config.NormalizeLogFormat(flags.LogFormat) == "" {
		return nil, invalidInvocationf("--log-format must be text or json, got %q", flags.LogFormat)
	}

	workDir, err := filepath.Abs(flags.WorkDir)
	if err != nil {
		return nil, invalidInvocationf("resolving working directory: %v", err)
	}
	if fi, err := os.Stat(workDir); err != nil || !fi.IsDir() {
		return nil, invalidInvocationf("working directory %s does not exist", workDir)
	}

	cfgPath, optional := filepath.Join(workDir, config.DefaultFile), true
	if flags.Config != "" {
		cfgPath, optional = resolve(workDir, flags.Config), false
	}
	cfg, err := config.Load(cfgPath, optional)
	if err != nil {
		return nil, configError(err)
	}

	app := &App{
		Flags:   flags,
		WorkDir: workDir,
		Stdout:  stdout,
		Stderr:  stderr,
		ctx:     ctx,
	}
	app.applyFlags(cfg)
	app.Config = cfg
	app.Logger = newLogger(stderr, cfg.Logging)
	return app, nil
}

// applyFlags lets the global flags override cfg.
func (a *App) applyFlags(cfg *config.Config) {
	if f := config.NormalizeLogFormat(a.Flags.LogFormat); f != "" {
		cfg.Logging.Format = f
	}
	if a.Flags.Verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	if a.Flags.MetricsTextfile != "" {
		cfg.Metrics.Textfile = a.Flags.MetricsTextfile
	}
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.SlogLevel()}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// resolve makes p absolute relative to dir.
func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// stateDir is where stamps and run history live.
func (a *App) stateDir() string {
	return resolve(a.WorkDir, a.Config.StateDir)
}
