package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"syscall"
)

// ExecutionResult is the outcome of one shell command.
type ExecutionResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Executor runs shell commands in a controlled environment.
//
// The environment is an allowlist: only what the caller passes in Env is
// visible to the command. See BuildEnv.
type Executor struct {
	// WorkingDir is the directory commands start in.
	WorkingDir string

	// Shell is the interpreter used with "-c". Defaults to "sh".
	Shell string
}

// NewExecutor creates an Executor rooted at workingDir.
func NewExecutor(workingDir string) *Executor {
	return &Executor{WorkingDir: workingDir, Shell: "sh"}
}

// Execute runs command via `sh -c`, capturing stdout and stderr while also
// streaming them to the optional writers.
//
// A non-zero exit is not an error: it is reported through ExitCode.
// The error return is reserved for failures to start the process and for
// cancellation, in which case the whole process group is killed.
func (e *Executor) Execute(ctx context.Context, command string, env []string, stdout, stderr io.Writer) (*ExecutionResult, error) {
	if command == "" {
		return nil, fmt.Errorf("command is empty")
	}
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.Command(shell, "-c", command)
	cmd.Dir = e.WorkingDir
	cmd.Env = env
	if cmd.Env == nil {
		// nil would inherit the host environment.
		cmd.Env = []string{}
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = teeTo(&outBuf, stdout)
	cmd.Stderr = teeTo(&errBuf, stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionResult{
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		ExitCode: exitCode,
	}, nil
}

func teeTo(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// BuildEnv constructs the allowlisted environment for a task.
//
// Host variables named in passthrough are copied when set; declared values
// are then layered on top and win. The result is sorted by key.
func BuildEnv(passthrough []string, lookup func(string) (string, bool), declared map[string]string) []string {
	merged := make(map[string]string, len(passthrough)+len(declared))
	if lookup != nil {
		for _, key := range passthrough {
			if v, ok := lookup(key); ok {
				merged[key] = v
			}
		}
	}
	for k, v := range declared {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
