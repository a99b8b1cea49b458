// SPDX-License-Identifier: MPL-2.0

// Package probe queries an interpreter for the platform and version facts
// that name build directories and environments.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"freezecheck-cli/internal/proc"
	"freezecheck-cli/pkg/platform"
)

// DefaultTimeout bounds one probe call.
const DefaultTimeout = 30 * time.Second

// script prints one fact per line, in the order parseInfo expects.
// The last line is the installed freezer version, or empty.
const script = `import sys, sysconfig
print(sysconfig.get_platform())
print(sysconfig.get_python_version())
print(sysconfig.get_config_var("py_version"))
print(sysconfig.get_config_var("py_version_nodot"))
try:
    from importlib.metadata import version
    print(version(sys.argv[1]))
except Exception:
    print("")
`

// ErrEnvironmentQuery is the sentinel error wrapped by EnvironmentQueryError.
var ErrEnvironmentQuery = errors.New("interpreter query failed")

type (
	// Info holds the facts reported by an interpreter.
	Info struct {
		// PlatformTag is the sysconfig platform, e.g. "linux-x86_64" or "macosx-14.0-arm64".
		PlatformTag string `json:"platform_tag" yaml:"platform_tag" toml:"platform_tag"`
		// Version is the major.minor version, e.g. "3.12".
		Version string `json:"version" yaml:"version" toml:"version"`
		// FullVersion is the full version, e.g. "3.12.4" or "3.14.0rc1".
		FullVersion string `json:"full_version" yaml:"full_version" toml:"full_version"`
		// NumericVersion is the version with dots removed, e.g. "312".
		NumericVersion string `json:"numeric_version" yaml:"numeric_version" toml:"numeric_version"`
		// FreezerVersion is the installed freezer version, empty if not installed.
		FreezerVersion string `json:"freezer_version,omitempty" yaml:"freezer_version,omitempty" toml:"freezer_version,omitempty"`
	}

	// EnvironmentQueryError is returned when an interpreter cannot be invoked
	// or its answer cannot be parsed.
	EnvironmentQueryError struct {
		Interpreter string
		Reason      string
		Err         error
	}

	// Option configures a Prober.
	Option func(*Prober)

	// Prober runs the probe script.
	Prober struct {
		runner        *proc.Runner
		freezerModule string
		timeout       time.Duration
		logger        *log.Logger
	}
)

// Error implements the error interface.
func (e *EnvironmentQueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query interpreter %s: %s: %v", e.Interpreter, e.Reason, e.Err)
	}
	return fmt.Sprintf("query interpreter %s: %s", e.Interpreter, e.Reason)
}

// Unwrap returns ErrEnvironmentQuery and the underlying cause.
func (e *EnvironmentQueryError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrEnvironmentQuery, e.Err}
	}
	return []error{ErrEnvironmentQuery}
}

// Family returns the platform family the PlatformTag belongs to.
func (i Info) Family() platform.Family {
	return platform.FamilyFromTag(i.PlatformTag)
}

// VersionTag returns the tag used in environment names, e.g. "py312".
func (i Info) VersionTag() string {
	return "py" + i.NumericVersion
}

// WithRunner sets the process runner.
func WithRunner(r *proc.Runner) Option {
	return func(p *Prober) { p.runner = r }
}

// WithFreezerModule sets the distribution name whose installed version is reported.
func WithFreezerModule(name string) Option {
	return func(p *Prober) { p.freezerModule = name }
}

// WithTimeout bounds each probe call.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		runner:        proc.NewRunner(),
		freezerModule: "cx_Freeze",
		timeout:       DefaultTimeout,
		logger:        log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe asks interp for its platform and version facts.
func (p *Prober) Probe(ctx context.Context, interp string) (Info, error) {
	if interp == "" {
		return Info{}, &EnvironmentQueryError{Reason: "no interpreter given"}
	}
	out, err := p.runner.Output(ctx, proc.Spec{
		Argv:    []string{interp, "-c", script, p.freezerModule},
		Timeout: p.timeout,
	})
	if err != nil {
		return Info{}, &EnvironmentQueryError{Interpreter: interp, Reason: "cannot run interpreter", Err: err}
	}
	info, err := parseInfo(out)
	if err != nil {
		return Info{}, &EnvironmentQueryError{Interpreter: interp, Reason: "unexpected output", Err: err}
	}
	p.logger.Debug("probed interpreter", "interpreter", interp, "platform", info.PlatformTag, "version", info.FullVersion)
	return info, nil
}

func parseInfo(out string) (Info, error) {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if len(lines) < 4 {
		return Info{}, fmt.Errorf("got %d lines, want at least 4", len(lines))
	}
	info := Info{
		PlatformTag:    lines[0],
		Version:        lines[1],
		FullVersion:    lines[2],
		NumericVersion: lines[3],
	}
	if len(lines) > 4 {
		info.FreezerVersion = lines[4]
	}
	var errs []error
	if info.PlatformTag == "" {
		errs = append(errs, errors.New("empty platform tag"))
	}
	if info.Version == "" || !strings.Contains(info.Version, ".") {
		errs = append(errs, fmt.Errorf("bad version %q", info.Version))
	}
	if info.NumericVersion == "" || strings.Contains(info.NumericVersion, ".") {
		errs = append(errs, fmt.Errorf("bad numeric version %q", info.NumericVersion))
	}
	if err := errors.Join(errs...); err != nil {
		return Info{}, err
	}
	return info, nil
}
