// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/history"
	"freezecheck-cli/pkg/types"
)

const (
	defaultHistoryLimit = 20
	timeLayout          = "2006-01-02 15:04:05"
)

func newHistoryCommand(app *App) *cobra.Command {
	var limit int
	histCmd := &cobra.Command{
		Use:   "history [sample]",
		Short: "List recorded runs",
		Long: `List recorded runs, newest first.

Runs are recorded in the history database (paths.history_db, by default
history.db under the freezecheck data directory) unless run was given
--no-history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sample types.SampleName
			if len(args) == 1 {
				sample = types.SampleName(args[0])
			}
			return withHistory(cmd, app, func(ctx context.Context, store *history.Store) error {
				runs, err := store.List(ctx, history.Filter{Sample: sample, Limit: limit})
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(app.stdout, SubtitleStyle.Render("no recorded runs"))
					return nil
				}
				fmt.Fprintln(app.stdout, historyTable(runs))
				return nil
			})
		},
	}
	histCmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "maximum number of runs to list (0 for all)")

	histCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, app, func(ctx context.Context, store *history.Store) error {
				run, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printRun(app.stdout, run)
				return nil
			})
		},
	})

	return histCmd
}

// withHistory opens the configured history database for fn. Errors are
// rendered here and turned into exit status 1.
func withHistory(cmd *cobra.Command, app *App, fn func(context.Context, *history.Store) error) error {
	cmd.SilenceErrors = true
	ctx := cmd.Context()

	loaded, err := app.loadConfig(ctx)
	if err != nil {
		app.renderError(app.stderr, err, config.ColorSchemeAuto)
		return &ExitError{Code: 1, Err: err}
	}
	path, err := loaded.Config.HistoryPath()
	if err != nil {
		app.renderError(app.stderr, err, loaded.Config.UI.ColorScheme)
		return &ExitError{Code: 1, Err: err}
	}
	store, err := history.Open(path, history.WithLogger(app.logger()), history.WithDebug(app.verbose))
	if err != nil {
		app.renderError(app.stderr, err, loaded.Config.UI.ColorScheme)
		return &ExitError{Code: 1, Err: err}
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			app.logger().Warn("cannot close run history", "err", cerr)
		}
	}()

	if err := fn(ctx, store); err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			fmt.Fprintf(app.stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		} else {
			app.renderError(app.stderr, err, loaded.Config.UI.ColorScheme)
		}
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

func historyTable(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			string(r.Sample),
			r.PlatformTag,
			r.Python,
			r.Environment,
			outcome(r),
			r.StartedAt.Local().Format(timeLayout),
		})
	}
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "SAMPLE", "PLATFORM", "PYTHON", "ENV", "RESULT", "STARTED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		String()
}

func printRun(w io.Writer, r history.Run) {
	field := func(key, value string) {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), value)
	}
	fmt.Fprintln(w, TitleStyle.Render("Run "+r.ID))
	field("sample", string(r.Sample))
	field("platform", r.PlatformTag)
	field("python", r.Python)
	field("environment", r.Environment)
	field("deps mode", r.DepsMode)
	field("result", outcome(r))
	field("started", r.StartedAt.Local().Format(timeLayout))
	field("duration", r.Duration().String())
	if r.Error != "" {
		field("error", ErrorStyle.Render(r.Error))
	}
	for _, d := range r.Dirs {
		status := "exit status " + strconv.Itoa(int(d.ExitCode))
		switch {
		case d.Skipped:
			status = WarningStyle.Render("skipped")
		case d.Error != "":
			status = ErrorStyle.Render(d.Error)
		case d.ExitCode == 0:
			status = SuccessStyle.Render("ok")
		}
		fmt.Fprintf(w, "  %s (%d records): %s\n", d.Dir, d.Records, status)
	}
}

func outcome(r history.Run) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.ExitCode == 0:
		return "passed"
	default:
		return "failed (" + strconv.Itoa(int(r.ExitCode)) + ")"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
