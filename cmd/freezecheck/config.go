// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"freezecheck-cli/internal/config"
)

// newConfigCommand creates the `freezecheck config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage freezecheck configuration",
		Long: `Manage freezecheck configuration.

Configuration is stored in:
  - Linux: ~/.config/freezecheck/config.cue
  - macOS: ~/Library/Application Support/freezecheck/config.cue
  - Windows: %APPDATA%\freezecheck\config.cue

Every key can be overridden with FREEZECHECK_<KEY>, for example
FREEZECHECK_TIMEOUTS_BUILD=30m.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				cmd.SilenceErrors = true
				app.renderError(app.stderr, err, config.ColorSchemeAuto)
				return &ExitError{Code: 1, Err: err}
			}

			source := SubtitleStyle.Render("(using defaults)")
			if loaded.Path != "" {
				source = loaded.Path
			}
			fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
			fmt.Fprintf(app.stdout, "%s: %s\n\n", KeyStyle.Render("Config file"), source)
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig("", force)
			if errors.Is(err, config.ErrConfigExists) {
				fmt.Fprintf(app.stderr, "%s %s exists; use --force to overwrite it\n", WarningStyle.Render("!"), path)
				cmd.SilenceErrors = true
				return &ExitError{Code: 1, Err: err}
			}
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration and data paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			dataDir, err := config.DataDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			fmt.Fprintf(app.stdout, "Data directory: %s\n", dataDir)
			return nil
		},
	})

	return cfgCmd
}
