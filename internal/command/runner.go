// Package command runs external programs with an explicit argument list and a
// mandatory timeout.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a command when neither the command nor the runner
// sets a timeout.
const DefaultTimeout = 6 * time.Hour

// Command describes a single program invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes commands. A non-zero exit is reported as an *ExitError.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError reports a command that failed, timed out or could not start.
type ExitError struct {
	Command  Command
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ExitError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("command %q timed out after %v", e.Command.String(), e.Command.Timeout)
	case e.ExitCode < 0:
		return fmt.Sprintf("command %q could not run: %v", e.Command.String(), e.Err)
	default:
		return fmt.Sprintf("command %q failed: return code = %d", e.Command.String(), e.ExitCode)
	}
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as child processes. Output is captured and, when
// Stdout/Stderr are set, streamed there as well so long builds stay visible.
type ExecRunner struct {
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes cmd and waits for it to finish or time out.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, errors.New("no command provided")
	}

	if cmd.Timeout <= 0 {
		cmd.Timeout = r.Timeout
	}
	if cmd.Timeout <= 0 {
		cmd.Timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	//nolint:gosec // G204: commands are assembled from validated job inputs
	process := exec.CommandContext(execCtx, cmd.Name, cmd.Args...)
	process.Dir = cmd.Dir
	process.Env = append(os.Environ(), cmd.Env...)
	process.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	process.Stdout = teeTo(&stdout, r.Stdout)
	process.Stderr = teeTo(&stderr, r.Stderr)

	r.logger().Debug("executing command", "command", cmd.String(), "dir", cmd.Dir, "timeout", cmd.Timeout)

	start := time.Now()
	err := process.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	exitErr := &ExitError{Command: cmd, ExitCode: -1, Stderr: result.Stderr, Err: err}
	var processErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		exitErr.TimedOut = true
	case ctx.Err() != nil:
		exitErr.Err = ctx.Err()
	case errors.As(err, &processErr):
		exitErr.ExitCode = processErr.ExitCode()
	}
	result.ExitCode = exitErr.ExitCode
	return result, exitErr
}

func teeTo(capture *bytes.Buffer, stream io.Writer) io.Writer {
	if stream == nil {
		return capture
	}
	return io.MultiWriter(capture, stream)
}
