// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/probe"
	"freezecheck-cli/internal/proc"
)

func newProbeCommand(app *App) *cobra.Command {
	var (
		interpreter string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show the platform facts of an interpreter",
		Long: `Show the platform facts of an interpreter: the platform tag, the
interpreter version and the installed freezer version. These facts decide
the artifact directory names of a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			ctx := cmd.Context()

			loaded, err := app.loadConfig(ctx)
			if err != nil {
				app.renderError(app.stderr, err, config.ColorSchemeAuto)
				return &ExitError{Code: 1, Err: err}
			}
			cfg := loaded.Config

			logger := app.logger()
			prober := probe.New(
				probe.WithRunner(proc.NewRunner(proc.WithExecCommand(app.execCommand), proc.WithLogger(logger))),
				probe.WithFreezerModule(cfg.Freezer.Module),
				probe.WithTimeout(cfg.Timeouts.Provision),
				probe.WithLogger(logger),
			)
			info, err := prober.Probe(ctx, interpreter)
			if err != nil {
				app.renderError(app.stderr, err, cfg.UI.ColorScheme)
				return &ExitError{Code: 1, Err: err}
			}

			if asJSON {
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			freezer := info.FreezerVersion
			if freezer == "" {
				freezer = SubtitleStyle.Render("(not installed)")
			}
			fmt.Fprintf(app.stdout, "%s: %s\n", KeyStyle.Render("platform"), info.PlatformTag)
			fmt.Fprintf(app.stdout, "%s: %s\n", KeyStyle.Render("family"), info.Family())
			fmt.Fprintf(app.stdout, "%s: %s (%s)\n", KeyStyle.Render("python"), info.FullVersion, info.VersionTag())
			fmt.Fprintf(app.stdout, "%s: %s\n", KeyStyle.Render(cfg.Freezer.Module), freezer)
			return nil
		},
	}
	cmd.Flags().StringVar(&interpreter, "python", defaultInterpreter(), "interpreter to query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the facts as JSON")
	return cmd
}
