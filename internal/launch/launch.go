// SPDX-License-Identifier: MPL-2.0

// Package launch locates build artifacts and starts the run driver in them.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/probe"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/pkg/types"
)

// DefaultTimeout bounds one run-driver invocation.
const DefaultTimeout = 10 * time.Minute

type (
	// Option configures a Launcher.
	Option func(*Launcher)

	// Launcher starts the run driver with the harness's own interpreter, not
	// the build environment's.
	Launcher struct {
		runner      *proc.Runner
		interpreter string
		driver      string
		args        []string
		env         map[string]string
		timeout     time.Duration
		logger      *log.Logger
		stderr      io.Writer
	}
)

// BuildDir returns the freezer's default output directory, relative to the
// sample directory, e.g. "build/exe.linux-x86_64-3.12".
func BuildDir(info probe.Info) string {
	return filepath.Join("build", fmt.Sprintf("exe.%s-%s", info.PlatformTag, info.Version))
}

// ResolveArtifactPaths returns the ordered candidate directories for a build
// of the sample in sampleDir: the build directory, then for bundle formats
// the executable directory inside the first app bundle found and the bundle
// root itself.
func ResolveArtifactPaths(sampleDir string, adapter platform.Adapter, info probe.Info, format string) ([]string, error) {
	candidates := []string{filepath.Join(sampleDir, BuildDir(info))}
	if !adapter.ProducesBundle(format) {
		return candidates, nil
	}

	bundles, err := filepath.Glob(filepath.Join(sampleDir, "build", "*.app"))
	if err != nil {
		return nil, fmt.Errorf("find app bundle: %w", err)
	}
	if len(bundles) == 0 {
		return candidates, nil
	}
	slices.Sort(bundles)
	bundle := bundles[0]
	return append(candidates, filepath.Join(bundle, "Contents", "MacOS"), bundle), nil
}

// Existing returns the leading candidates that exist as directories. The
// sequence stops at the first gap: nothing after a missing candidate is kept.
func Existing(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || !info.IsDir() {
			break
		}
		out = append(out, c)
	}
	return out
}

// WithRunner sets the process runner.
func WithRunner(r *proc.Runner) Option {
	return func(l *Launcher) { l.runner = r }
}

// WithArgs appends arguments after the driver path.
func WithArgs(args ...string) Option {
	return func(l *Launcher) { l.args = args }
}

// WithEnv sets variables forwarded to the run driver.
func WithEnv(env map[string]string) Option {
	return func(l *Launcher) { l.env = env }
}

// WithTimeout bounds each run-driver invocation.
func WithTimeout(d time.Duration) Option {
	return func(l *Launcher) { l.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(la *Launcher) { la.logger = l }
}

// WithStderr sets where the run driver's standard error is echoed.
func WithStderr(w io.Writer) Option {
	return func(l *Launcher) { l.stderr = w }
}

// NewLauncher creates a Launcher running driver with interpreter.
func NewLauncher(interpreter, driver string, opts ...Option) *Launcher {
	l := &Launcher{
		runner:      proc.NewRunner(),
		interpreter: interpreter,
		driver:      driver,
		timeout:     DefaultTimeout,
		logger:      log.New(io.Discard),
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch runs the driver with dir as working directory and hands its
// standard output to consume while it runs.
func (l *Launcher) Launch(ctx context.Context, dir string, consume func(io.Reader) error) (types.ExitCode, error) {
	driver := l.driver
	if !filepath.IsAbs(driver) {
		abs, err := filepath.Abs(driver)
		if err != nil {
			return 1, fmt.Errorf("resolve run driver %s: %w", driver, err)
		}
		driver = abs
	}

	argv := append([]string{l.interpreter, driver}, l.args...)
	l.logger.Info("running samples", "dir", dir)
	return l.runner.Stream(ctx, proc.Spec{
		Argv:    argv,
		Dir:     dir,
		Env:     l.env,
		Stderr:  l.stderr,
		Timeout: l.timeout,
	}, consume)
}
