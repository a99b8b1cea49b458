// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"freezecheck-cli/internal/issue"
	"freezecheck-cli/pkg/types"
)

var (
	// ErrUsage is the sentinel error wrapped by UsageError.
	ErrUsage = errors.New("usage error")
	// ErrProvisioning is the sentinel error wrapped by ProvisioningError.
	ErrProvisioning = errors.New("provisioning failed")
	// ErrBuild is the sentinel error wrapped by BuildError.
	ErrBuild = errors.New("build failed")
	// ErrProtocol is the sentinel error wrapped by ProtocolError.
	ErrProtocol = errors.New("run protocol violated")
	// ErrRunFailure is the sentinel error wrapped by RunFailure.
	ErrRunFailure = errors.New("sample run failed")
	// ErrNoArtifacts is returned when the build left no artifact directory.
	ErrNoArtifacts = errors.New("no artifact directory found")
)

type (
	// UsageError reports bad input detected before any side effect.
	UsageError struct {
		Issue  issue.Id
		Reason string
		Err    error
	}

	// ProvisioningError reports a failure to probe, resolve or populate the
	// build environment. Stage names the step that failed.
	ProvisioningError struct {
		Issue issue.Id
		Stage string
		Err   error
	}

	// BuildError reports a non-zero freezer exit, or a build that left no
	// artifact directory to run.
	BuildError struct {
		Issue    issue.Id
		ExitCode types.ExitCode
		Err      error
	}

	// ProtocolError reports a run-driver stream that could not be decoded.
	ProtocolError struct {
		Dir string
		Err error
	}

	// RunFailure reports a non-zero aggregated run status.
	RunFailure struct {
		ExitCode types.ExitCode
		// Failed lists the attempted directories with a non-zero status.
		Failed []string
	}

	// issuer is implemented by errors that map to a catalog issue.
	issuer interface {
		IssueID() issue.Id
	}
)

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap returns ErrUsage and the underlying cause.
func (e *UsageError) Unwrap() []error { return withCause(ErrUsage, e.Err) }

// IssueID returns the catalog issue describing the error.
func (e *UsageError) IssueID() issue.Id { return e.Issue }

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns ErrProvisioning and the underlying cause.
func (e *ProvisioningError) Unwrap() []error { return withCause(ErrProvisioning, e.Err) }

// IssueID returns the catalog issue describing the error.
func (e *ProvisioningError) IssueID() issue.Id { return e.Issue }

func (e *BuildError) Error() string {
	return fmt.Sprintf("build exited with status %d: %v", e.ExitCode, e.Err)
}

// Unwrap returns ErrBuild and the underlying cause.
func (e *BuildError) Unwrap() []error { return withCause(ErrBuild, e.Err) }

// IssueID returns the catalog issue describing the error.
func (e *BuildError) IssueID() issue.Id {
	if e.Issue != 0 {
		return e.Issue
	}
	return issue.BuildFailedId
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("run in %s: %v", e.Dir, e.Err)
}

// Unwrap returns ErrProtocol and the underlying cause.
func (e *ProtocolError) Unwrap() []error { return withCause(ErrProtocol, e.Err) }

// IssueID returns the catalog issue describing the error.
func (*ProtocolError) IssueID() issue.Id { return issue.ProtocolViolationId }

func (e *RunFailure) Error() string {
	return fmt.Sprintf("sample run failed with status %d in %d director%s",
		e.ExitCode, len(e.Failed), plural(len(e.Failed), "y", "ies"))
}

// Unwrap returns ErrRunFailure.
func (e *RunFailure) Unwrap() error { return ErrRunFailure }

// IssueOf returns the catalog issue attached to err, if any.
func IssueOf(err error) (issue.Id, bool) {
	var i issuer
	if errors.As(err, &i) && i.IssueID() != 0 {
		return i.IssueID(), true
	}
	return 0, false
}

// ExitCode maps the error returned by Run to a process exit code: 0 for
// nil, the aggregated status for a RunFailure and 1 for everything else.
// Statuses a process cannot exit with are folded by ProcessStatus.
func ExitCode(err error) types.ExitCode {
	if err == nil {
		return 0
	}
	var rf *RunFailure
	if errors.As(err, &rf) && rf.ExitCode != 0 {
		return rf.ExitCode.ProcessStatus()
	}
	return 1
}

func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
