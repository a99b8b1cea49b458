// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"freezecheck-cli/internal/build"
	"freezecheck-cli/internal/container"
	"freezecheck-cli/internal/deps"
	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/history"
	"freezecheck-cli/internal/launch"
	"freezecheck-cli/internal/matrix"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/internal/report"
	"freezecheck-cli/pkg/types"
)

const (
	// EnvDebug is set to "1" for the freezer and the run driver with --debug.
	EnvDebug = "FREEZECHECK_DEBUG"
	// EnvDebugPlugins is set to "1" for the freezer and the run driver with --debug-plugins.
	EnvDebugPlugins = "FREEZECHECK_DEBUG_PLUGINS"

	defaultContainerTimeout = 5 * time.Minute
)

type (
	// Options describe one pipeline run. Every input is explicit; the
	// pipeline reads no process-global state.
	Options struct {
		Sample types.SampleName
		// TopDir is the freezer source tree. Relative paths below are
		// resolved against it.
		TopDir     string
		SamplesDir string
		CIDir      string
		// MatrixFile defaults to <CIDir>/build-test.json.
		MatrixFile string
		// InstallScript defaults to <CIDir>/build_test.py.
		InstallScript string
		RunDriver     string
		// Interpreter is the harness's own interpreter. It probes the
		// platform, seeds virtual environments and starts the run driver.
		Interpreter string

		EnvKind  environ.Kind
		EnvName  string
		EnvRoot  string
		CondaExe string

		DepsMode     deps.Mode
		NoDeps       bool
		Debug        bool
		DebugPlugins bool
		Verbose      bool

		// Format is an optional distribution format built after the executable.
		Format        string
		FreezerModule string
		ExtraArgs     []string

		// Env is a snapshot of the caller's environment. Active environment
		// detection, DISPLAY forwarding and CI mode read it.
		Env map[string]string

		Timeouts Timeouts
		// ContainerEngine is the preferred cross-check engine; the other
		// one is used when it is unavailable.
		ContainerEngine container.EngineType
		ContainerImage  string
		// SummaryPath, when set, receives the summary as JSON, YAML or TOML.
		SummaryPath string
	}

	// Timeouts bound each kind of subprocess. Zero keeps the component default.
	Timeouts struct {
		Provision time.Duration
		Install   time.Duration
		Build     time.Duration
		Run       time.Duration
		Container time.Duration
	}

	// Recorder persists finished runs.
	Recorder interface {
		Record(ctx context.Context, run history.Run) (string, error)
	}

	// Option configures a Pipeline.
	Option func(*Pipeline)
)

// WithExecCommand replaces the command factory used for every subprocess.
func WithExecCommand(fn proc.CommandFunc) Option {
	return func(p *Pipeline) { p.execCommand = fn }
}

// WithLogger sets the logger shared by every stage.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithOutput sets the report stream and where subprocess stderr is echoed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithEngine sets how the cross-check container engine is obtained.
func WithEngine(fn report.EngineFunc) Option {
	return func(p *Pipeline) { p.engine = fn }
}

// WithRecorder stores every finished run in r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLookPath sets the executable lookup used to detect optional tools.
func WithLookPath(fn environ.LookPathFunc) Option {
	return func(p *Pipeline) { p.lookPath = fn }
}

// WithNow sets the clock used for run timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// withDefaults fills unset paths and modes.
func (o Options) withDefaults() Options {
	if o.TopDir == "" {
		o.TopDir = "."
	}
	if abs, err := filepath.Abs(o.TopDir); err == nil {
		o.TopDir = abs
	}
	if o.SamplesDir == "" {
		o.SamplesDir = "samples"
	}
	if o.CIDir == "" {
		o.CIDir = "ci"
	}
	o.SamplesDir = o.resolve(o.SamplesDir)
	o.CIDir = o.resolve(o.CIDir)
	if o.MatrixFile == "" {
		o.MatrixFile = filepath.Join(o.CIDir, matrix.DefaultFile)
	}
	if o.InstallScript == "" {
		o.InstallScript = filepath.Join(o.CIDir, "build_test.py")
	}
	if o.RunDriver == "" {
		o.RunDriver = filepath.Join(o.CIDir, "run_sample.py")
	}
	o.MatrixFile = o.resolve(o.MatrixFile)
	o.InstallScript = o.resolve(o.InstallScript)
	o.RunDriver = o.resolve(o.RunDriver)
	if o.EnvRoot == "" {
		o.EnvRoot = ".venvs"
	}
	o.EnvRoot = o.resolve(o.EnvRoot)
	if o.CondaExe == "" {
		o.CondaExe = "conda"
	}
	if o.FreezerModule == "" {
		o.FreezerModule = build.DefaultFreezer
	}
	if o.ContainerEngine == "" {
		o.ContainerEngine = container.EngineTypePodman
	}
	if o.ContainerImage == "" {
		o.ContainerImage = container.DefaultImage
	}
	o.Timeouts = o.Timeouts.withDefaults()
	if o.Interpreter == "" {
		o.Interpreter = "python3"
	}
	if o.EnvKind == "" {
		o.EnvKind = environ.KindVirtual
	}
	if o.DepsMode == "" {
		o.DepsMode = deps.ModePackages
	}
	if o.NoDeps {
		o.DepsMode = deps.ModeNone
	}
	if o.Env == nil {
		o.Env = map[string]string{}
	}
	return o
}

func (o Options) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.TopDir, p)
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Provision == 0 {
		t.Provision = environ.DefaultTimeout
	}
	if t.Install == 0 {
		t.Install = deps.DefaultTimeout
	}
	if t.Build == 0 {
		t.Build = build.DefaultTimeout
	}
	if t.Run == 0 {
		t.Run = launch.DefaultTimeout
	}
	if t.Container == 0 {
		t.Container = defaultContainerTimeout
	}
	return t
}

// forwardedEnv returns the variables forwarded to the freezer, the
// installer and the run driver.
func (o Options) forwardedEnv() map[string]string {
	env := map[string]string{}
	if d, ok := o.Env["DISPLAY"]; ok && d != "" {
		env["DISPLAY"] = d
	}
	if o.Debug {
		env[EnvDebug] = "1"
	}
	if o.DebugPlugins {
		env[EnvDebugPlugins] = "1"
	}
	return env
}

// ci reports whether extra diagnostics are requested.
func (o Options) ci() bool {
	return o.Env["CI"] == "true"
}
