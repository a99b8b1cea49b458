// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"freezecheck-cli/internal/aggregate"
	"freezecheck-cli/internal/build"
	"freezecheck-cli/internal/container"
	"freezecheck-cli/internal/deps"
	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/issue"
	"freezecheck-cli/internal/launch"
	"freezecheck-cli/internal/matrix"
	"freezecheck-cli/internal/platform"
	"freezecheck-cli/internal/probe"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/internal/protocol"
	"freezecheck-cli/internal/report"
	"freezecheck-cli/pkg/types"
)

// Pipeline runs samples through probe, environment, dependencies, build and
// run. It holds no per-run state and may be reused.
type Pipeline struct {
	execCommand proc.CommandFunc
	logger      *log.Logger
	stdout      io.Writer
	stderr      io.Writer
	engine      report.EngineFunc
	recorder    Recorder
	lookPath    environ.LookPathFunc
	now         func() time.Time
}

// run carries the state of one Run call.
type run struct {
	*Pipeline
	opts   Options
	sum    *Summary
	rep    *report.Reporter
	runner *proc.Runner
	fwd    map[string]string
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		execCommand: exec.CommandContext,
		logger:      log.New(io.Discard),
		stdout:      io.Discard,
		stderr:      io.Discard,
		lookPath:    exec.LookPath,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for opts.Sample. The summary is returned even
// when err is non-nil; ExitCode(err) gives the process exit code.
//
// Fatal errors (usage, provisioning, build, protocol) abort the run at the
// stage that failed. A non-zero run status is reported as a *RunFailure
// only after every artifact directory was attempted.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	r := &run{
		Pipeline: p,
		opts:     opts,
		sum: &Summary{
			RunID:     uuid.NewString(),
			Sample:    opts.Sample,
			DepsMode:  opts.DepsMode,
			StartedAt: p.now().UTC(),
		},
		rep:    report.New(p.stdout),
		runner: proc.NewRunner(proc.WithExecCommand(p.execCommand), proc.WithLogger(p.logger)),
		fwd:    opts.forwardedEnv(),
	}

	err := r.execute(ctx)
	r.sum.FinishedAt = p.now().UTC()
	if err != nil {
		r.sum.Error = err.Error()
		r.sum.ExitCode = ExitCode(err)
	}

	if perr := r.persist(ctx); perr != nil {
		err = errors.Join(err, perr)
	}
	return r.sum, err
}

func (r *run) execute(ctx context.Context) error {
	o := r.opts
	if err := o.Sample.Validate(); err != nil {
		return &UsageError{Issue: issue.SampleNotFoundId, Reason: "invalid sample name", Err: err}
	}
	if err := o.DepsMode.Validate(); err != nil {
		return &UsageError{Reason: "invalid dependency mode", Err: err}
	}
	if err := o.EnvKind.Validate(); err != nil {
		return &UsageError{Reason: "invalid environment kind", Err: err}
	}
	sampleDir := filepath.Join(o.SamplesDir, o.Sample.String())
	if !types.FilesystemPath(sampleDir).IsDir() {
		return &UsageError{Issue: issue.SampleNotFoundId, Reason: fmt.Sprintf("sample directory %s not found", sampleDir)}
	}
	m, err := matrix.Load(o.MatrixFile)
	if err != nil {
		return &UsageError{Issue: issue.SampleMatrixInvalidId, Reason: "invalid sample matrix", Err: err}
	}

	prober := probe.New(
		probe.WithRunner(r.runner),
		probe.WithFreezerModule(o.FreezerModule),
		probe.WithLogger(r.logger),
	)
	r.rep.Section("probe " + o.Interpreter)
	info, err := prober.Probe(ctx, o.Interpreter)
	if err != nil {
		return &ProvisioningError{Issue: issue.InterpreterQueryFailedId, Stage: "probe", Err: err}
	}
	r.sum.Platform = info
	r.rep.Note("platform %s, python %s", info.PlatformTag, info.FullVersion)

	entry := m.Lookup(o.Sample)
	reason, err := unsupported(entry, info)
	if err != nil {
		return &UsageError{Issue: issue.SampleMatrixInvalidId, Reason: "invalid sample matrix", Err: err}
	}
	if reason != "" {
		r.sum.Skipped = true
		r.sum.SkipReason = reason
		r.logger.Warn("sample skipped", "sample", o.Sample, "reason", reason)
		r.rep.Note("skipped: %s", reason)
		return nil
	}

	adapter := platform.AdapterFor(info.Family())
	env, err := r.environment(ctx, info)
	if err != nil {
		return err
	}
	if err := r.dependencies(ctx, env); err != nil {
		return err
	}

	buildInfo := info
	if env.Interpreter != o.Interpreter {
		if buildInfo, err = prober.Probe(ctx, env.Interpreter); err != nil {
			return &ProvisioningError{Issue: issue.InterpreterQueryFailedId, Stage: "probe", Err: err}
		}
	}
	if buildInfo.FreezerVersion == "" {
		if v, err := probe.FreezerVersionFromSource(o.TopDir, o.FreezerModule); err == nil {
			buildInfo.FreezerVersion = v
		} else {
			r.logger.Debug("freezer version unknown", "err", err)
		}
	}
	r.sum.Platform = buildInfo

	if o.ci() {
		r.diagnostics(ctx, env, buildInfo)
	}

	if err := r.build(ctx, env, adapter, sampleDir, buildInfo); err != nil {
		return err
	}
	return r.runArtifacts(ctx, adapter, sampleDir, buildInfo)
}

// unsupported returns why the matrix excludes the sample on info's platform,
// or an empty string.
func unsupported(entry matrix.Entry, info probe.Info) (string, error) {
	if !entry.SupportsPlatform(info.Family()) {
		return fmt.Sprintf("sample %s is not supported on %s", entry.Sample, info.Family()), nil
	}
	ok, err := entry.SupportsPython(info.FullVersion)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("sample %s requires python %s, found %s", entry.Sample, entry.PythonVersion, info.FullVersion), nil
	}
	return "", nil
}

func (r *run) environment(ctx context.Context, info probe.Info) (*environ.Environment, error) {
	o := r.opts
	r.rep.Section("environment")
	prov := environ.NewProvisioner(
		environ.WithRunner(r.runner),
		environ.WithRoot(o.EnvRoot),
		environ.WithEnvSnapshot(o.Env),
		environ.WithCondaExe(o.CondaExe),
		environ.WithLookPath(r.lookPath),
		environ.WithTimeout(o.Timeouts.Provision),
		environ.WithLogger(r.logger),
		environ.WithOutput(r.stdout, r.stderr),
	)
	env, err := prov.Resolve(ctx, environ.Request{
		Kind:              o.EnvKind,
		Sample:            o.Sample,
		Name:              o.EnvName,
		SystemInterpreter: o.Interpreter,
		PlatformTag:       info.PlatformTag,
		VersionTag:        info.VersionTag(),
	})
	if err != nil {
		id := issue.EnvironmentCreateFailedId
		if errors.Is(err, environ.ErrEnvironmentNotFound) {
			id = issue.EnvironmentNotFoundId
		}
		return nil, &ProvisioningError{Issue: id, Stage: "environment", Err: err}
	}
	r.sum.Environment = env
	r.rep.Note("%s environment %s (%s)", env.Kind, env.Name, env.Interpreter)
	return env, nil
}

func (r *run) dependencies(ctx context.Context, env *environ.Environment) error {
	o := r.opts
	r.rep.Section("dependencies")
	inst := deps.NewInstaller(
		deps.WithRunner(r.runner),
		deps.WithScript(o.InstallScript),
		deps.WithTopDir(o.TopDir),
		deps.WithEnv(r.fwd),
		deps.WithTimeout(o.Timeouts.Install),
		deps.WithLogger(r.logger),
		deps.WithOutput(r.stdout, r.stderr),
	)
	req := deps.Request{Sample: o.Sample, Mode: o.DepsMode, Debug: o.Debug, Verbose: o.Verbose}
	r.sum.DepsMode = req.Effective(env.Fresh)

	installed, err := inst.Install(ctx, env, req)
	r.sum.DepsInstalled = installed
	if err != nil {
		return &ProvisioningError{Issue: issue.DependencyInstallFailedId, Stage: "dependencies", Err: err}
	}
	if installed {
		r.rep.Status("dependencies", 0)
	} else {
		r.rep.Note("dependencies: skipped")
	}
	return nil
}

// diagnostics dumps the installed packages of env. Failures are logged only.
func (r *run) diagnostics(ctx context.Context, env *environ.Environment, info probe.Info) {
	r.rep.Section("diagnostics")
	r.rep.Note("interpreter %s, platform %s, python %s, freezer %s",
		env.Interpreter, info.PlatformTag, info.FullVersion, info.FreezerVersion)
	code, err := r.runner.Run(ctx, proc.Spec{
		Argv:    []string{env.Interpreter, "-m", "pip", "list"},
		Stdout:  r.stdout,
		Stderr:  r.stderr,
		Timeout: r.opts.Timeouts.Install,
	})
	if err != nil || code != 0 {
		r.logger.Warn("cannot list installed packages", "code", code, "err", err)
	}
}

func (r *run) build(ctx context.Context, env *environ.Environment, adapter platform.Adapter, sampleDir string, info probe.Info) error {
	o := r.opts
	r.rep.Section("build " + o.Sample.String())
	req := build.NewRequest(o.Sample, sampleDir, launch.BuildDir(info), o.Format, o.ExtraArgs)
	req.Freezer = o.FreezerModule

	inv := build.NewInvoker(
		build.WithRunner(r.runner),
		build.WithEnv(r.fwd),
		build.WithTimeout(o.Timeouts.Build),
		build.WithLogger(r.logger),
		build.WithOutput(r.stdout, r.stderr),
	)
	code, err := inv.Invoke(ctx, env, adapter, req)
	r.sum.BuildExitCode = code
	if err != nil {
		r.rep.Status("build", code.Worse(1))
		return &BuildError{ExitCode: code, Err: err}
	}
	r.rep.Status("build", 0)
	return nil
}

// runArtifacts starts the run driver in every existing candidate directory
// and aggregates the outcome. A missing candidate ends the sequence; it and
// every later candidate are recorded as skipped.
func (r *run) runArtifacts(ctx context.Context, adapter platform.Adapter, sampleDir string, info probe.Info) error {
	o := r.opts
	candidates, err := launch.ResolveArtifactPaths(sampleDir, adapter, info, o.Format)
	if err != nil {
		return &BuildError{Issue: issue.NoArtifactsId, ExitCode: 1, Err: err}
	}
	existing := launch.Existing(candidates)
	if len(existing) == 0 {
		return &BuildError{
			Issue:    issue.NoArtifactsId,
			ExitCode: 1,
			Err:      fmt.Errorf("%w: expected %s", ErrNoArtifacts, candidates[0]),
		}
	}

	records := report.NewRecordReporter(r.rep, adapter, r.recordOptions()...)
	launcher := launch.NewLauncher(o.Interpreter, o.RunDriver,
		launch.WithRunner(r.runner),
		launch.WithEnv(r.fwd),
		launch.WithTimeout(o.Timeouts.Run),
		launch.WithLogger(r.logger),
		launch.WithStderr(r.stderr),
	)

	agg := aggregate.New()
	var fatal error
	for i, dir := range candidates {
		if i >= len(existing) || fatal != nil {
			r.logger.Debug("artifact directory skipped", "dir", dir)
			agg.Skip(dir)
			continue
		}

		r.rep.Section("run " + dir)
		agg.Begin(dir)
		code, err := launcher.Launch(ctx, dir, func(out io.Reader) error {
			return consume(ctx, out, dir, agg, records)
		})
		if err != nil {
			agg.Fail(code, err)
			var pe *ProtocolError
			if errors.As(err, &pe) {
				fatal = pe
			}
		}
		agg.End(code)
		res := agg.Results()[len(agg.Results())-1]
		r.rep.Status("run "+filepath.Base(dir), res.ExitCode)
	}

	final, err := agg.Finish()
	r.sum.Dirs = agg.Results()
	r.sum.ExitCode = final
	r.sum.CrossChecks = records.CrossChecks()
	if last, ok := agg.LastAttempted(); ok {
		r.sum.LastAttempted = last
	}
	if fatal != nil {
		return fatal
	}
	if err != nil {
		return &BuildError{Issue: issue.NoArtifactsId, ExitCode: 1, Err: err}
	}
	if final != 0 {
		var failed []string
		for _, res := range agg.Attempted() {
			if res.ExitCode != 0 {
				failed = append(failed, res.Dir)
			}
		}
		return &RunFailure{ExitCode: final, Failed: failed}
	}
	return nil
}

// consume decodes the run driver's output, feeding each record to the
// aggregator and the per-record side effects. Decoding is strict: the first
// malformed line or a missing status record is returned as a *ProtocolError.
func consume(ctx context.Context, out io.Reader, dir string, agg *aggregate.Aggregator, records *report.RecordReporter) error {
	for rec, err := range protocol.Records(out) {
		if err != nil {
			return &ProtocolError{Dir: dir, Err: err}
		}
		if err := agg.Observe(rec); err != nil {
			return &ProtocolError{Dir: dir, Err: err}
		}
		if pr, ok := rec.(protocol.ProcessRecord); ok {
			records.Report(ctx, dir, pr)
		}
	}
	return nil
}

func (r *run) recordOptions() []report.RecordOption {
	opts := []report.RecordOption{
		report.WithImage(r.opts.ContainerImage),
		report.WithContainerTimeout(r.opts.Timeouts.Container),
		report.WithRetry(container.DefaultRunAttempts, container.DefaultRunBackoff),
		report.WithLogger(r.logger),
	}
	engine := r.engine
	if engine == nil {
		preferred := r.opts.ContainerEngine
		engine = func() (container.Engine, error) { return container.NewEngine(preferred) }
	}
	return append(opts, report.WithEngine(engine))
}

// persist stores the run in the history and writes the summary file. A
// history failure is logged; a summary failure is returned.
func (r *run) persist(ctx context.Context) error {
	if r.recorder != nil {
		if _, err := r.recorder.Record(ctx, r.sum.History()); err != nil {
			r.logger.Warn("cannot record run history", "err", err)
		}
	}
	if r.opts.SummaryPath == "" {
		return nil
	}
	if err := report.WriteFile(r.opts.SummaryPath, r.sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	r.logger.Debug("summary written", "path", r.opts.SummaryPath)
	return nil
}
