// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/proc"
	"freezecheck-cli/internal/report"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives it instead of reading process globals.
	App struct {
		Config      config.Provider
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
		env         map[string]string
		execCommand proc.CommandFunc
		engine      report.EngineFunc

		// Persistent flag values.
		configPath string
		verbose    bool
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config      config.Provider
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
		Env         map[string]string
		ExecCommand proc.CommandFunc
		Engine      report.EngineFunc
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Env == nil {
		deps.Env = envSnapshot(os.Environ())
	}
	if deps.ExecCommand == nil {
		deps.ExecCommand = exec.CommandContext
	}
	return &App{
		Config:      deps.Config,
		stdin:       deps.Stdin,
		stdout:      proc.NewLockedWriter(deps.Stdout),
		stderr:      proc.NewLockedWriter(deps.Stderr),
		env:         deps.Env,
		execCommand: deps.ExecCommand,
		engine:      deps.Engine,
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "freezecheck",
		Short: "Freeze sample applications and verify the frozen programs run",
		Long: TitleStyle.Render("freezecheck") + SubtitleStyle.Render(" - a test harness for the freezer") + `

freezecheck provisions an interpreter environment, installs the freezer,
freezes a sample application and runs the result through the run driver,
checking every process it reports.

` + SubtitleStyle.Render("Examples:") + `
  freezecheck run simple              Freeze and run samples/simple
  freezecheck run simple --system     Use the current interpreter as-is
  freezecheck run bcrypt --deps=e     Install the freezer in editable mode
  freezecheck history simple          Show recent runs of a sample
  freezecheck config show             Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/freezecheck/config.cue)")

	root.AddCommand(
		newRunCommand(app),
		newConfigCommand(app),
		newHistoryCommand(app),
		newProbeCommand(app),
		newProtocolCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the resulting code.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code.ProcessStatus()))
		}
		os.Exit(1)
	}
}

// loadConfig loads the configuration selected by --config. ui.verbose
// applies when --verbose was not given.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	loaded, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}
	if !a.verbose {
		a.verbose = loaded.Config.UI.Verbose
	}
	return loaded, nil
}

// logger returns the logger shared by every stage of a command.
func (a *App) logger() *log.Logger {
	return newLogger(a.stderr, a.verbose, a.ci())
}

// ci reports whether the harness runs under continuous integration.
func (a *App) ci() bool {
	return a.env["CI"] == "true"
}

// envSnapshot converts KEY=VALUE entries into a map. Later entries win.
func envSnapshot(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
