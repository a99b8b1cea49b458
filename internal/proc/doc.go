// SPDX-License-Identifier: MPL-2.0

// Package proc runs the external processes the harness drives: interpreters,
// environment tools, the packaging tool and the run driver.
//
// Every invocation goes through a Runner so that tests can swap the
// exec.Cmd factory (the TestHelperProcess pattern) and so that every child is
// subject to a bounded wait: when the per-call timeout or the caller's context
// expires, the child is interrupted, then killed after a grace period.
//
// A non-zero exit status is a normal outcome and is returned as an ExitCode;
// only infrastructure failures (binary missing, pipe errors, timeouts) are
// returned as errors.
package proc
