// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"freezecheck-cli/pkg/types"
)

// DefaultWaitDelay is the grace period between interrupting a timed-out child
// and killing it.
const DefaultWaitDelay = 10 * time.Second

var (
	// ErrEmptyCommand is returned when a Spec has no argv.
	ErrEmptyCommand = errors.New("empty command")
	// ErrTimeout is wrapped by TimeoutError.
	ErrTimeout = errors.New("process timed out")
)

type (
	// CommandFunc creates exec.Cmd values. It matches exec.CommandContext and
	// allows injection of mock implementations for testing.
	CommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes external processes with bounded waits.
	Runner struct {
		execCommand CommandFunc
		waitDelay   time.Duration
		logger      *log.Logger
	}

	// Spec describes one process invocation.
	Spec struct {
		// Argv is the program followed by its arguments.
		Argv []string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env holds variables layered over the inherited environment.
		Env map[string]string
		// Stdout receives standard output (ignored by Stream).
		Stdout io.Writer
		// Stderr receives standard error.
		Stderr io.Writer
		// Timeout bounds the call; zero means no limit beyond ctx.
		Timeout time.Duration
	}

	// TimeoutError is returned when a process exceeded its bounded wait.
	TimeoutError struct {
		Argv    []string
		Timeout time.Duration
	}
)

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s", strings.Join(e.Argv, " "), e.Timeout)
}

// Unwrap returns ErrTimeout for errors.Is() compatibility.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn CommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = fn
	}
}

// WithWaitDelay overrides the interrupt-to-kill grace period.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// WithLogger sets the logger used for debug traces of each invocation.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner backed by exec.CommandContext.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		waitDelay:   DefaultWaitDelay,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes spec and waits for it. Output goes to spec.Stdout/spec.Stderr.
func (r *Runner) Run(ctx context.Context, spec Spec) (types.ExitCode, error) {
	ctx, cancel := withTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd, err := r.command(ctx, spec)
	if err != nil {
		return 1, err
	}
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	return r.finish(ctx, spec, cmd.Run())
}

// Output executes spec and returns its standard output. A non-zero exit
// status is reported as an error that includes the captured standard error.
func (r *Runner) Output(ctx context.Context, spec Spec) (string, error) {
	var stdout, stderr bytes.Buffer
	spec.Stdout = &stdout
	if spec.Stderr == nil {
		spec.Stderr = &stderr
	} else {
		spec.Stderr = io.MultiWriter(spec.Stderr, &stderr)
	}

	code, err := r.Run(ctx, spec)
	if err != nil {
		return stdout.String(), err
	}
	if code != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%s exited with status %d: %s", strings.Join(spec.Argv, " "), code, msg)
		}
		return stdout.String(), fmt.Errorf("%s exited with status %d", strings.Join(spec.Argv, " "), code)
	}
	return stdout.String(), nil
}

// Stream starts spec and hands its standard output to consume while the
// process is still running. Standard error is copied to spec.Stderr
// concurrently. If consume returns early, the remainder of standard output is
// drained so the child never blocks on a full pipe.
//
// The returned error is the first of: an infrastructure failure, consume's
// error, or a timeout. The exit code is valid whenever the process was started.
func (r *Runner) Stream(ctx context.Context, spec Spec, consume func(io.Reader) error) (types.ExitCode, error) {
	ctx, cancel := withTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd, err := r.command(ctx, spec)
	if err != nil {
		return 1, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("failed to start %s: %w", spec.Argv[0], err)
	}

	errSink := spec.Stderr
	if errSink == nil {
		errSink = io.Discard
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(errSink, stderr)
		return err
	})
	var consumeErr error
	g.Go(func() error {
		consumeErr = consume(stdout)
		_, err := io.Copy(io.Discard, stdout)
		return err
	})
	pumpErr := g.Wait()

	code, waitErr := r.finish(ctx, spec, cmd.Wait())
	switch {
	case waitErr != nil:
		return code, waitErr
	case consumeErr != nil:
		return code, consumeErr
	case pumpErr != nil && !errors.Is(pumpErr, os.ErrClosed):
		return code, fmt.Errorf("read output of %s: %w", spec.Argv[0], pumpErr)
	}
	return code, nil
}

// command builds the exec.Cmd for spec, layering spec.Env over the
// environment the factory produced and arming the interrupt-then-kill cancel.
func (r *Runner) command(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	if len(spec.Argv) == 0 {
		return nil, ErrEmptyCommand
	}

	r.logger.Debug("exec", "argv", spec.Argv, "dir", spec.Dir)

	cmd := r.execCommand(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), EnvToSlice(spec.Env)...)
	}
	if runtime.GOOS != "windows" {
		cmd.Cancel = func() error {
			return cmd.Process.Signal(os.Interrupt)
		}
	}
	cmd.WaitDelay = r.waitDelay
	return cmd, nil
}

// finish converts the result of Run/Wait into an exit code.
func (r *Runner) finish(ctx context.Context, spec Spec, err error) (types.ExitCode, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && spec.Timeout > 0 {
		return 1, &TimeoutError{Argv: spec.Argv, Timeout: spec.Timeout}
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := types.ExitCode(exitErr.ExitCode())
		if code == -1 && ctx.Err() != nil {
			return 1, fmt.Errorf("%s interrupted: %w", spec.Argv[0], ctx.Err())
		}
		return code, nil
	}
	return 1, fmt.Errorf("failed to execute %s: %w", spec.Argv[0], err)
}

// EnvToSlice converts an environment map into sorted KEY=VALUE entries.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
