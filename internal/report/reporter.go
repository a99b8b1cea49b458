// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"freezecheck-cli/pkg/types"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// Reporter writes the human-readable report stream. Output of external
// processes is written to it verbatim; only headers are styled.
type Reporter struct {
	w io.Writer
}

// New returns a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Writer returns the underlying stream for verbatim process output.
func (r *Reporter) Writer() io.Writer { return r.w }

// Section writes a stage header.
func (r *Reporter) Section(title string) {
	fmt.Fprintln(r.w, headerStyle.Render("==> "+title))
}

// Note writes a de-emphasized line.
func (r *Reporter) Note(format string, args ...any) {
	fmt.Fprintln(r.w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Status writes the outcome line of a stage.
func (r *Reporter) Status(what string, code types.ExitCode) {
	if code.IsSuccess() {
		fmt.Fprintln(r.w, successStyle.Render(fmt.Sprintf("%s: ok", what)))
		return
	}
	fmt.Fprintln(r.w, failureStyle.Render(fmt.Sprintf("%s: exit status %d", what, code)))
}
