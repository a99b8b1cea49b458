// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the harness logger. Verbose lowers the level to debug;
// under CI every line also carries a timestamp and its caller.
func newLogger(w io.Writer, verbose, ci bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "freezecheck",
		Level:           level,
		ReportTimestamp: ci,
		ReportCaller:    ci,
		TimeFormat:      time.RFC3339,
	})
}
