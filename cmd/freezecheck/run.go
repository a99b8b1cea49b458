// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"freezecheck-cli/internal/build"
	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/container"
	"freezecheck-cli/internal/deps"
	"freezecheck-cli/internal/environ"
	"freezecheck-cli/internal/history"
	"freezecheck-cli/internal/pipeline"
	"freezecheck-cli/internal/watch"
	"freezecheck-cli/pkg/platform"
	"freezecheck-cli/pkg/types"
)

// envBuildOpts holds extra freezer arguments, shell-quoted.
const envBuildOpts = "BUILD_OPTS"

// runFlags are the flags of the run command. verbose is the root --verbose
// flag merged with ui.verbose.
type runFlags struct {
	system       bool
	venv         bool
	envName      string
	deps         string
	noDeps       bool
	debug        bool
	debugPlugins bool
	format       string
	summary      string
	interpreter  string
	noHistory    bool
	watch        bool
	verbose      bool
}

func newRunCommand(app *App) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <sample>",
		Short: "Freeze a sample and run the result",
		Long: `Freeze a sample and run the result.

The sample is looked up under paths.samples_dir. Its matrix entry in
<ci_dir>/build-test.json may restrict it to some platforms or interpreter
versions; an unsupported sample is reported as skipped and exits 0.

Exit status is 0 on success, 1 for usage, provisioning, build and run
protocol errors, and the aggregated status reported by the run driver
otherwise.`,
		Example: `  freezecheck run simple
  freezecheck run simple --system --no-deps
  freezecheck run bcrypt --env=py312 --deps=l
  freezecheck run simple --format=dmg --summary=out/simple.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			return runSample(cmd.Context(), app, args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&f.system, "system", false, "use the current interpreter without isolation")
	fs.BoolVar(&f.venv, "venv", false, "use a per-sample virtual environment")
	fs.StringVar(&f.envName, "env", "", "use the named (conda) environment")
	fs.StringVar(&f.deps, "deps", string(deps.ModePackages), "dependency mode: b(asic), d(ist), e(ditable), l(atest), p(ackages) or n(one)")
	fs.BoolVar(&f.noDeps, "no-deps", false, "skip dependency installation unless the environment is new")
	fs.BoolVar(&f.debug, "debug", false, "enable freezer and run driver debug output")
	fs.BoolVar(&f.debugPlugins, "debug-plugins", false, "enable debug output of freezer hooks")
	fs.StringVar(&f.format, "format", "", "also build this distribution format (e.g. appimage, dmg, msi)")
	fs.StringVar(&f.summary, "summary", "", "write the run summary to this .json, .yaml or .toml file")
	fs.StringVar(&f.interpreter, "python", defaultInterpreter(), "interpreter running the harness scripts")
	fs.BoolVar(&f.noHistory, "no-history", false, "do not record the run in the history database")
	fs.BoolVarP(&f.watch, "watch", "w", false, "rerun whenever a source file of the sample changes")
	cmd.MarkFlagsMutuallyExclusive("system", "venv", "env")

	return cmd
}

func runSample(ctx context.Context, app *App, sample string, f runFlags) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		app.renderError(app.stderr, err, config.ColorSchemeAuto)
		return &ExitError{Code: 1, Err: err}
	}
	cfg := loaded.Config
	f.verbose = app.verbose

	topDir, err := os.Getwd()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("determine working directory: %w", err)}
	}
	opts, err := runOptions(cfg, app.env, types.SampleName(sample), f, topDir)
	if err != nil {
		app.renderError(app.stderr, err, cfg.UI.ColorScheme)
		return &ExitError{Code: 1, Err: err}
	}

	logger := app.logger()
	popts := []pipeline.Option{
		pipeline.WithExecCommand(app.execCommand),
		pipeline.WithLogger(logger),
		pipeline.WithOutput(app.stdout, app.stderr),
	}
	if app.engine != nil {
		popts = append(popts, pipeline.WithEngine(app.engine))
	}
	if !f.noHistory {
		if store := openHistory(cfg, app); store != nil {
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("cannot close run history", "err", err)
				}
			}()
			popts = append(popts, pipeline.WithRecorder(store))
		}
	}

	p := pipeline.New(popts...)
	if f.watch {
		return watchSample(ctx, app, p, opts, cfg.UI.ColorScheme)
	}
	return runOnce(ctx, app, p, opts, cfg.UI.ColorScheme)
}

// runOnce runs the pipeline and reports its outcome.
func runOnce(ctx context.Context, app *App, p *pipeline.Pipeline, opts pipeline.Options, scheme config.ColorScheme) error {
	sum, err := p.Run(ctx, opts)
	if err != nil {
		app.renderError(app.stderr, actionable(err, opts.Sample), scheme)
		return &ExitError{Code: pipeline.ExitCode(err), Err: err}
	}

	if sum.Skipped {
		fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("skipped:"), sum.SkipReason)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s %s on %s\n", SuccessStyle.Render("passed:"), KeyStyle.Render(opts.Sample.String()), sum.Platform.PlatformTag)
	return nil
}

// watchSample runs once, then again after every change to the sample's
// sources, until ctx is done. Failed runs do not stop watching.
func watchSample(ctx context.Context, app *App, p *pipeline.Pipeline, opts pipeline.Options, scheme config.ColorScheme) error {
	logger := app.logger()
	if err := runOnce(ctx, app, p, opts, scheme); errors.Is(err, pipeline.ErrUsage) {
		return err
	}

	w, err := watch.New(watch.Config{
		Dir:    sampleDir(opts),
		Logger: logger,
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("sources changed, running again", "files", changed)
			if err := runOnce(ctx, app, p, opts, scheme); err != nil {
				logger.Debug("run failed", "err", err)
			}
			return nil
		},
	})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	fmt.Fprintf(app.stdout, "%s %s (Ctrl+C to stop)\n", SubtitleStyle.Render("watching"), sampleDir(opts))
	if err := w.Run(ctx); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

// sampleDir mirrors how the pipeline locates the sample.
func sampleDir(opts pipeline.Options) string {
	samples := opts.SamplesDir
	if samples == "" {
		samples = "samples"
	}
	if !filepath.IsAbs(samples) {
		samples = filepath.Join(opts.TopDir, samples)
	}
	return filepath.Join(samples, opts.Sample.String())
}

// openHistory opens the run history. A history that cannot be opened is
// logged and the run goes on without it.
func openHistory(cfg *config.Config, app *App) *history.Store {
	logger := app.logger()
	path, err := cfg.HistoryPath()
	if err != nil {
		logger.Warn("run history disabled", "err", err)
		return nil
	}
	store, err := history.Open(path, history.WithLogger(logger), history.WithDebug(app.verbose))
	if err != nil {
		logger.Warn("run history disabled", "path", path, "err", err)
		return nil
	}
	return store
}

// runOptions maps configuration, environment and flags to pipeline
// options. Flags win over configuration.
func runOptions(cfg *config.Config, env map[string]string, sample types.SampleName, f runFlags, topDir string) (pipeline.Options, error) {
	mode, err := deps.ParseMode(f.deps)
	if err != nil {
		return pipeline.Options{}, &pipeline.UsageError{Reason: "invalid --deps", Err: err}
	}

	extra, err := build.SplitExtraArgs(cfg.Freezer.ExtraArgs)
	if err != nil {
		return pipeline.Options{}, &pipeline.UsageError{Reason: "invalid freezer.extra_args", Err: err}
	}
	fromEnv, err := build.SplitExtraArgs(env[envBuildOpts])
	if err != nil {
		return pipeline.Options{}, &pipeline.UsageError{Reason: "invalid " + envBuildOpts, Err: err}
	}
	extra = append(extra, fromEnv...)

	kind := environ.Kind(cfg.Environment.Kind)
	switch {
	case f.system:
		kind = environ.KindSystem
	case f.venv:
		kind = environ.KindVirtual
	case f.envName != "":
		kind = environ.KindNamed
	}

	return pipeline.Options{
		Sample:          sample,
		TopDir:          topDir,
		SamplesDir:      cfg.Paths.SamplesDir,
		CIDir:           cfg.Paths.CIDir,
		RunDriver:       cfg.Paths.RunDriver,
		Interpreter:     f.interpreter,
		EnvKind:         kind,
		EnvName:         f.envName,
		EnvRoot:         cfg.Environment.Root,
		CondaExe:        cfg.Environment.CondaExe,
		DepsMode:        mode,
		NoDeps:          f.noDeps,
		Debug:           f.debug,
		DebugPlugins:    f.debugPlugins,
		Verbose:         f.verbose,
		Format:          f.format,
		FreezerModule:   cfg.Freezer.Module,
		ExtraArgs:       extra,
		Env:             env,
		ContainerEngine: container.EngineType(cfg.ContainerEngine),
		ContainerImage:  cfg.ContainerImage,
		SummaryPath:     f.summary,
		Timeouts: pipeline.Timeouts{
			Provision: cfg.Timeouts.Provision,
			Install:   cfg.Timeouts.Install,
			Build:     cfg.Timeouts.Build,
			Run:       cfg.Timeouts.Run,
			Container: cfg.Timeouts.Container,
		},
	}, nil
}

// defaultInterpreter is the interpreter name found on PATH by default.
func defaultInterpreter() string {
	if platform.HostFamily() == platform.FamilyWindows {
		return "python"
	}
	return "python3"
}
