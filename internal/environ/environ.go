// SPDX-License-Identifier: MPL-2.0

// Package environ resolves the interpreter environment a sample is built in.
//
// Virtual environments are named deterministically from the sample, the
// platform tag and the interpreter version tag, created on first use and
// reused afterwards. The harness never removes them.
package environ

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	iplatform "freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/pkg/platform"
	"freezecheck-cli/pkg/types"
)

// DefaultTimeout bounds environment creation and lookup.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrEnvironmentNotFound is returned when a named environment does not exist.
	ErrEnvironmentNotFound = errors.New("environment not found")
	// ErrCreateFailed is returned when environment creation did not produce an interpreter.
	ErrCreateFailed = errors.New("environment creation failed")
)

type (
	// Environment is a resolved build environment.
	Environment struct {
		Name        string `json:"name" yaml:"name" toml:"name"`
		Kind        Kind   `json:"kind" yaml:"kind" toml:"kind"`
		Root        string `json:"root,omitempty" yaml:"root,omitempty" toml:"root,omitempty"`
		Interpreter string `json:"interpreter" yaml:"interpreter" toml:"interpreter"`
		PlatformTag string `json:"platform_tag" yaml:"platform_tag" toml:"platform_tag"`
		VersionTag  string `json:"version_tag" yaml:"version_tag" toml:"version_tag"`
		// Fresh is true when the environment was created by this call, so
		// dependencies must be installed whatever the caller asked for.
		Fresh bool `json:"fresh" yaml:"fresh" toml:"fresh"`
	}

	// Request selects the environment to resolve.
	Request struct {
		Kind   Kind
		Sample types.SampleName
		// Name overrides the derived name of a named environment.
		Name string
		// SystemInterpreter is the interpreter the harness runs with. It seeds
		// virtual environments and is used as-is for KindSystem.
		SystemInterpreter string
		PlatformTag       string
		VersionTag        string
	}

	// LookPathFunc matches exec.LookPath.
	LookPathFunc func(file string) (string, error)

	// Option configures a Provisioner.
	Option func(*Provisioner)

	// Provisioner resolves and creates environments.
	Provisioner struct {
		runner   *proc.Runner
		root     string
		env      map[string]string
		condaExe string
		lookPath LookPathFunc
		timeout  time.Duration
		logger   *log.Logger
		stdout   io.Writer
		stderr   io.Writer
	}
)

// WithRunner sets the process runner.
func WithRunner(r *proc.Runner) Option {
	return func(p *Provisioner) { p.runner = r }
}

// WithRoot sets the directory virtual environments are created in.
func WithRoot(dir string) Option {
	return func(p *Provisioner) { p.root = dir }
}

// WithEnvSnapshot sets the environment variables consulted for an already
// active environment (CONDA_PREFIX, CONDA_DEFAULT_ENV, VIRTUAL_ENV).
func WithEnvSnapshot(env map[string]string) Option {
	return func(p *Provisioner) { p.env = env }
}

// WithCondaExe sets the executable used to list named environments.
func WithCondaExe(exe string) Option {
	return func(p *Provisioner) { p.condaExe = exe }
}

// WithLookPath sets the function used to find optional tools such as uv.
func WithLookPath(fn LookPathFunc) Option {
	return func(p *Provisioner) { p.lookPath = fn }
}

// WithTimeout bounds each external call.
func WithTimeout(d time.Duration) Option {
	return func(p *Provisioner) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// WithOutput sets where the output of creation commands is echoed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Provisioner) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// NewProvisioner creates a Provisioner. Virtual environments default to
// ".venvs" under the current directory.
func NewProvisioner(opts ...Option) *Provisioner {
	p := &Provisioner{
		runner:   proc.NewRunner(),
		root:     ".venvs",
		condaExe: "conda",
		lookPath: exec.LookPath,
		timeout:  DefaultTimeout,
		logger:   log.New(io.Discard),
		stdout:   io.Discard,
		stderr:   io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnvironmentName returns the deterministic environment name for a sample
// built on platformTag with versionTag. The result is a safe directory name.
func EnvironmentName(sample types.SampleName, platformTag, versionTag string) string {
	return platform.SafeDirName(fmt.Sprintf("%s-%s-%s", sample, platformTag, versionTag))
}

// Resolve returns the environment for req, creating a virtual environment
// when it does not exist yet. Calling it again with the same request returns
// the same environment without recreating it.
func (p *Provisioner) Resolve(ctx context.Context, req Request) (*Environment, error) {
	if err := req.Kind.Validate(); err != nil {
		return nil, err
	}
	if err := req.Sample.Validate(); err != nil {
		return nil, err
	}

	adapter := iplatform.AdapterForTag(req.PlatformTag)

	if req.Kind == KindSystem {
		return p.system(req), nil
	}
	if !adapter.IsolationSupported {
		p.logger.Warn("environment isolation is not supported on this platform, using the system interpreter",
			"platform", adapter.Family, "requested", req.Kind)
		return p.system(req), nil
	}
	if active := p.active(req, adapter); active != nil {
		p.logger.Warn("an environment is already active, skipping requested isolation",
			"active", active.Root, "requested", req.Kind)
		return active, nil
	}

	switch req.Kind {
	case KindNamed:
		return p.named(ctx, req, adapter)
	default:
		return p.virtual(ctx, req, adapter)
	}
}

func (p *Provisioner) system(req Request) *Environment {
	return &Environment{
		Name:        "system",
		Kind:        KindSystem,
		Interpreter: req.SystemInterpreter,
		PlatformTag: req.PlatformTag,
		VersionTag:  req.VersionTag,
	}
}

// active returns the externally activated environment from the snapshot, if any.
func (p *Provisioner) active(req Request, adapter iplatform.Adapter) *Environment {
	if prefix := p.env["CONDA_PREFIX"]; prefix != "" {
		name := p.env["CONDA_DEFAULT_ENV"]
		if name == "" {
			name = filepath.Base(prefix)
		}
		return &Environment{
			Name:        name,
			Kind:        KindNamed,
			Root:        prefix,
			Interpreter: condaInterpreter(prefix, adapter),
			PlatformTag: req.PlatformTag,
			VersionTag:  req.VersionTag,
		}
	}
	if venv := p.env["VIRTUAL_ENV"]; venv != "" {
		return &Environment{
			Name:        filepath.Base(venv),
			Kind:        KindVirtual,
			Root:        venv,
			Interpreter: venvInterpreter(venv, adapter),
			PlatformTag: req.PlatformTag,
			VersionTag:  req.VersionTag,
		}
	}
	return nil
}

func (p *Provisioner) virtual(ctx context.Context, req Request, adapter iplatform.Adapter) (*Environment, error) {
	name := EnvironmentName(req.Sample, req.PlatformTag, req.VersionTag)
	dir := filepath.Join(p.root, name)
	env := &Environment{
		Name:        name,
		Kind:        KindVirtual,
		Root:        dir,
		Interpreter: venvInterpreter(dir, adapter),
		PlatformTag: req.PlatformTag,
		VersionTag:  req.VersionTag,
	}

	if fileExists(env.Interpreter) {
		p.logger.Debug("reusing virtual environment", "name", name, "dir", dir)
		return env, nil
	}
	if req.SystemInterpreter == "" {
		return nil, fmt.Errorf("%w: no base interpreter to create %s", ErrCreateFailed, name)
	}

	argv := []string{req.SystemInterpreter, "-m", "venv", dir}
	if uv, err := p.lookPath("uv"); err == nil {
		argv = []string{uv, "venv", "--python", req.SystemInterpreter, dir}
	}
	p.logger.Info("creating virtual environment", "name", name, "dir", dir)

	code, err := p.runner.Run(ctx, proc.Spec{
		Argv:    argv,
		Stdout:  p.stdout,
		Stderr:  p.stderr,
		Timeout: p.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, name, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("%w: %s exited with status %d", ErrCreateFailed, strings.Join(argv, " "), code)
	}
	if !fileExists(env.Interpreter) {
		return nil, fmt.Errorf("%w: interpreter %s missing after creation", ErrCreateFailed, env.Interpreter)
	}

	env.Fresh = true
	return env, nil
}

type condaEnvList struct {
	Envs []string `json:"envs"`
}

func (p *Provisioner) named(ctx context.Context, req Request, adapter iplatform.Adapter) (*Environment, error) {
	name := req.Name
	if name == "" {
		name = EnvironmentName(req.Sample, req.PlatformTag, req.VersionTag)
	}

	out, err := p.runner.Output(ctx, proc.Spec{
		Argv:    []string{p.condaExe, "env", "list", "--json"},
		Stderr:  p.stderr,
		Timeout: p.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("list named environments: %w", err)
	}
	var list condaEnvList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, fmt.Errorf("parse environment list: %w", err)
	}

	for _, prefix := range list.Envs {
		if filepath.Base(prefix) != name {
			continue
		}
		return &Environment{
			Name:        name,
			Kind:        KindNamed,
			Root:        prefix,
			Interpreter: condaInterpreter(prefix, adapter),
			PlatformTag: req.PlatformTag,
			VersionTag:  req.VersionTag,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEnvironmentNotFound, name)
}

func venvInterpreter(dir string, adapter iplatform.Adapter) string {
	return filepath.Join(dir, adapter.ScriptsDir, "python"+adapter.ExeSuffix)
}

// condaInterpreter places python.exe at the prefix root on Windows, where
// conda does not use a Scripts directory for the interpreter.
func condaInterpreter(prefix string, adapter iplatform.Adapter) string {
	if adapter.Family == platform.FamilyWindows {
		return filepath.Join(prefix, "python.exe")
	}
	return venvInterpreter(prefix, adapter)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
