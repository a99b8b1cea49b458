// SPDX-License-Identifier: MPL-2.0

// Package deps drives the external dependency-installation script.
//
// The harness never resolves dependencies itself: it picks the install mode
// and hands the sample to the script, running it with the interpreter of the
// resolved environment.
package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/pkg/types"
)

const (
	// ModeBasic installs only the freezer's basic requirements.
	ModeBasic Mode = "b"
	// ModeDist installs the freezer from a built wheel.
	ModeDist Mode = "d"
	// ModeEditable installs the freezer in editable mode from the source tree.
	ModeEditable Mode = "e"
	// ModeLatest installs the latest freezer release.
	ModeLatest Mode = "l"
	// ModePackages installs the freezer from the packages index (pre-releases allowed).
	ModePackages Mode = "p"
	// ModeNone skips installation.
	ModeNone Mode = "n"

	// DefaultTimeout bounds one installer run.
	DefaultTimeout = 30 * time.Minute
)

var (
	// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
	ErrInvalidMode = errors.New("invalid dependency mode")
	// ErrInstallFailed is returned when the installer exits non-zero.
	ErrInstallFailed = errors.New("dependency installation failed")
)

type (
	// Mode selects how the freezer and the sample requirements are installed.
	Mode string

	// InvalidModeError is returned when a Mode is not recognized.
	InvalidModeError struct {
		Value Mode
	}

	// Request describes one installation.
	Request struct {
		Sample  types.SampleName
		Mode    Mode
		Debug   bool
		Verbose bool
	}

	// Option configures an Installer.
	Option func(*Installer)

	// Installer runs the installation script.
	Installer struct {
		runner  *proc.Runner
		script  string
		topDir  string
		env     map[string]string
		timeout time.Duration
		logger  *log.Logger
		stdout  io.Writer
		stderr  io.Writer
	}
)

var modeFlags = map[Mode]string{
	ModeBasic:    "--basic-requirements",
	ModeDist:     "--dist",
	ModeEditable: "--editable",
	ModeLatest:   "--latest",
	ModePackages: "",
}

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid dependency mode %q (valid: b, d, e, l, p, n)", e.Value)
}

// Unwrap returns ErrInvalidMode for errors.Is() compatibility.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// Validate returns an error if the Mode is not recognized.
func (m Mode) Validate() error {
	if m == ModeNone {
		return nil
	}
	if _, ok := modeFlags[m]; !ok {
		return &InvalidModeError{Value: m}
	}
	return nil
}

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }

// ParseMode parses a mode letter. The empty string selects ModePackages.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModePackages, nil
	}
	m := Mode(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Effective returns the mode to run with. A fresh environment has nothing
// installed, so ModeNone is promoted to ModePackages there.
func (r Request) Effective(fresh bool) Mode {
	if r.Mode == ModeNone && fresh {
		return ModePackages
	}
	return r.Mode
}

// ShouldInstall reports whether the installer has to run.
func (r Request) ShouldInstall(fresh bool) bool {
	return r.Effective(fresh) != ModeNone
}

// Args returns the installer arguments after the script path.
func Args(req Request, fresh bool) []string {
	args := []string{req.Sample.String()}
	if flag := modeFlags[req.Effective(fresh)]; flag != "" {
		args = append(args, flag)
	}
	if req.Debug {
		args = append(args, "--debug")
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// WithRunner sets the process runner.
func WithRunner(r *proc.Runner) Option {
	return func(i *Installer) { i.runner = r }
}

// WithScript sets the installation script path.
func WithScript(path string) Option {
	return func(i *Installer) { i.script = path }
}

// WithTopDir sets the working directory of the installer.
func WithTopDir(dir string) Option {
	return func(i *Installer) { i.topDir = dir }
}

// WithEnv sets variables forwarded to the installer.
func WithEnv(env map[string]string) Option {
	return func(i *Installer) { i.env = env }
}

// WithTimeout bounds each installer run.
func WithTimeout(d time.Duration) Option {
	return func(i *Installer) { i.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// WithOutput sets where installer output is echoed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(i *Installer) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

// NewInstaller creates an Installer using ci/build_test.py.
func NewInstaller(opts ...Option) *Installer {
	i := &Installer{
		runner:  proc.NewRunner(),
		script:  filepath.Join("ci", "build_test.py"),
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

// Install runs the installer in env. It returns false when nothing had to be
// installed.
func (i *Installer) Install(ctx context.Context, env *environ.Environment, req Request) (bool, error) {
	if err := req.Mode.Validate(); err != nil {
		return false, err
	}
	if !req.ShouldInstall(env.Fresh) {
		i.logger.Info("skipping dependency installation", "environment", env.Name)
		return false, nil
	}
	if req.Mode == ModeNone {
		i.logger.Warn("environment is fresh, installing dependencies despite --no-deps", "environment", env.Name)
	}

	argv := append([]string{env.Interpreter, i.script}, Args(req, env.Fresh)...)
	i.logger.Info("installing dependencies", "environment", env.Name, "mode", req.Effective(env.Fresh))

	code, err := i.runner.Run(ctx, proc.Spec{
		Argv:    argv,
		Dir:     i.topDir,
		Env:     i.env,
		Stdout:  i.stdout,
		Stderr:  i.stderr,
		Timeout: i.timeout,
	})
	if err != nil {
		return true, err
	}
	if code != 0 {
		return true, fmt.Errorf("%w: installer exited with status %d", ErrInstallFailed, code)
	}
	return true, nil
}
