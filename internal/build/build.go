// SPDX-License-Identifier: MPL-2.0

// Package build turns a build request into freezer command lines and runs them.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/pkg/types"
)

const (
	// DefaultFreezer is the module run with "-m".
	DefaultFreezer = "cx_Freeze"
	// DefaultTimeout bounds each freezer invocation.
	DefaultTimeout = 30 * time.Minute
)

// ErrBuildFailed is returned when the freezer exits non-zero.
var ErrBuildFailed = errors.New("build failed")

type (
	// ExclusionRule excludes Module from every build except the toolkit's own
	// demo sample and samples whose name ends with KeepSuffix.
	ExclusionRule struct {
		Module        string
		KeepForSample types.SampleName
		KeepSuffix    string
	}

	// Options are the typed build switches. --silent is not an option: it is
	// always passed. Runtime-library bundling follows the platform adapter.
	Options struct {
		Excludes  []string
		ExtraArgs []string
	}

	// Request is one immutable build of a sample.
	Request struct {
		Sample types.SampleName
		// Dir is the sample directory the freezer runs in.
		Dir string
		// TargetDir is the executable output directory, relative to Dir.
		// When set it is passed as --build-exe so the launcher finds the
		// build where it looks for it.
		TargetDir string
		// Freezer is the module name passed to "-m".
		Freezer string
		Options Options
		// Format is an optional distribution-format tag for a second build step.
		Format string
	}

	// Option configures an Invoker.
	Option func(*Invoker)

	// Invoker runs freezer command lines inside an environment.
	Invoker struct {
		runner  *proc.Runner
		env     map[string]string
		timeout time.Duration
		logger  *log.Logger
		stdout  io.Writer
		stderr  io.Writer
	}
)

// DefaultExclusions is the GUI toolkit exclusion table.
var DefaultExclusions = []ExclusionRule{
	{Module: "tkinter", KeepForSample: "tkinter", KeepSuffix: "_tk"},
}

// Excludes returns the modules rules exclude for sample.
func Excludes(rules []ExclusionRule, sample types.SampleName) []string {
	var out []string
	for _, r := range rules {
		if sample == r.KeepForSample || (r.KeepSuffix != "" && sample.HasSuffix(r.KeepSuffix)) {
			continue
		}
		out = append(out, r.Module)
	}
	return out
}

// SplitExtraArgs splits a shell-quoted argument string such as BUILD_OPTS.
func SplitExtraArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("split build options %q: %w", s, err)
	}
	return fields, nil
}

// NewRequest builds a Request with the default exclusion table applied.
func NewRequest(sample types.SampleName, dir, targetDir, format string, extra []string) Request {
	return Request{
		Sample:    sample,
		Dir:       dir,
		TargetDir: targetDir,
		Freezer:   DefaultFreezer,
		Options: Options{
			Excludes:  Excludes(DefaultExclusions, sample),
			ExtraArgs: extra,
		},
		Format: format,
	}
}

// Args returns the interpreter arguments of each freezer invocation, in order.
// The first is always the executable build, with extra arguments last so
// they can override anything before them; a distribution-format build
// follows only when the adapter recognizes req.Format. Unknown formats are
// dropped silently.
func Args(adapter platform.Adapter, req Request) [][]string {
	freezer := req.Freezer
	if freezer == "" {
		freezer = DefaultFreezer
	}

	build := []string{"-m", freezer, "build_exe", "--silent"}
	if len(req.Options.Excludes) > 0 {
		build = append(build, "--excludes="+strings.Join(req.Options.Excludes, ","))
	}
	if adapter.Windowed {
		build = append(build, "--include-msvcr")
	}
	if req.TargetDir != "" {
		build = append(build, "--build-exe="+req.TargetDir)
	}
	build = append(build, req.Options.ExtraArgs...)

	out := [][]string{build}
	if adapter.SupportsFormat(req.Format) {
		out = append(out, []string{"-m", freezer, "bdist_" + req.Format, "--silent"})
	}
	return out
}

// WithRunner sets the process runner.
func WithRunner(r *proc.Runner) Option {
	return func(i *Invoker) { i.runner = r }
}

// WithEnv sets variables forwarded to the freezer, such as DISPLAY.
func WithEnv(env map[string]string) Option {
	return func(i *Invoker) { i.env = env }
}

// WithTimeout bounds each freezer invocation.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithOutput sets where freezer output is echoed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(i *Invoker) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(opts ...Option) *Invoker {
	i := &Invoker{
		runner:  proc.NewRunner(),
		timeout: DefaultTimeout,
		logger:  log.New(io.Discard),
		stdout:  io.Discard,
		stderr:  io.Discard,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke runs every freezer invocation for req with env's interpreter and
// returns the first non-zero exit code. Later steps do not run after a failure.
func (i *Invoker) Invoke(ctx context.Context, env *environ.Environment, adapter platform.Adapter, req Request) (types.ExitCode, error) {
	if req.Format != "" && !adapter.SupportsFormat(req.Format) {
		i.logger.Warn("ignoring distribution format not supported on this platform", "format", req.Format, "platform", adapter.Family)
	}

	for _, args := range Args(adapter, req) {
		argv := append([]string{env.Interpreter}, args...)
		i.logger.Info("building", "sample", req.Sample, "step", args[2])

		code, err := i.runner.Run(ctx, proc.Spec{
			Argv:    argv,
			Dir:     req.Dir,
			Env:     i.env,
			Stdout:  i.stdout,
			Stderr:  i.stderr,
			Timeout: i.timeout,
		})
		if err != nil {
			return code, err
		}
		if code != 0 {
			return code, fmt.Errorf("%w: %s exited with status %d", ErrBuildFailed, args[2], code)
		}
	}
	return 0, nil
}
