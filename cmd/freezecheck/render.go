// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"freezecheck-cli/internal/config"
	"freezecheck-cli/internal/issue"
	"freezecheck-cli/internal/pipeline"
	"freezecheck-cli/pkg/types"
)

// actionable attaches what was attempted and what to try next to a
// pipeline error. Run failures are returned unchanged: their report is the
// run output itself.
func actionable(err error, sample types.SampleName) error {
	var (
		usage *pipeline.UsageError
		prov  *pipeline.ProvisioningError
		build *pipeline.BuildError
		proto *pipeline.ProtocolError
	)
	ec := issue.NewErrorContext().WithResource(sample.String()).Wrap(err)
	if id, ok := pipeline.IssueOf(err); ok {
		ec.WithIssue(id)
	}

	switch {
	case errors.As(err, &usage):
		ec.WithOperation("start run").
			WithSuggestion("Check paths.samples_dir and run from the root of the freezer checkout")
	case errors.As(err, &prov):
		ec.WithOperation("prepare environment ("+prov.Stage+")").
			WithSuggestion("Rerun with --system to use the current interpreter as-is")
		if prov.Stage == "dependencies" {
			ec.WithSuggestion("Rerun with --no-deps to reuse what the environment already has")
		}
	case errors.As(err, &build):
		ec.WithOperation("build sample").
			WithSuggestion("Rerun with --verbose --debug to see the freezer's diagnostics")
	case errors.As(err, &proto):
		ec.WithOperation("read run protocol").
			WithSuggestion("The run driver must print one record per line and end with 'status <code>'")
	default:
		return err
	}
	return ec.BuildError()
}

// renderError writes err for the user, followed by the catalog entry it
// points at. verbose adds the error chain.
func (a *App) renderError(w io.Writer, err error, scheme config.ColorScheme) {
	msg := err.Error()
	if ae, ok := issue.Find(err); ok {
		msg = ae.Format(a.verbose)
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+msg)

	entry := catalogEntry(err)
	if entry == nil {
		return
	}
	rendered, rerr := entry.Render(glamourStyle(w, scheme))
	if rerr != nil {
		a.logger().Debug("cannot render issue", "err", rerr)
		return
	}
	fmt.Fprint(w, rendered)
}

// catalogEntry returns the catalog issue linked to err, if any.
func catalogEntry(err error) *issue.Issue {
	if ae, ok := issue.Find(err); ok {
		if entry := ae.CatalogIssue(); entry != nil {
			return entry
		}
	}
	if id, ok := pipeline.IssueOf(err); ok {
		return issue.Get(id)
	}
	return nil
}

// glamourStyle picks the markdown style for w. Anything that is not a
// terminal gets plain text.
func glamourStyle(w io.Writer, scheme config.ColorScheme) string {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return "notty"
	}
	switch scheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
