// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// POSIX processes report 0-255; frozen Windows executables may report
	// negative or large NTSTATUS values, so the protocol layer never rejects
	// them. Validate is only meaningful for codes the harness itself emits.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsTransient returns true if the exit code indicates a transient container
// engine error that may succeed on retry (codes 125 and 126).
func (c ExitCode) IsTransient() bool { return c == 125 || c == 126 }

// Worse returns the code that should win when two outcomes are combined.
// The first failure sticks: a non-zero receiver is kept, otherwise other is returned.
func (c ExitCode) Worse(other ExitCode) ExitCode {
	if c != 0 {
		return c
	}
	return other
}

// ProcessStatus returns c as a status a process can exit with. Codes in
// 1-255 are kept; any other non-zero code becomes 1, since the operating
// system keeps only the low byte and 256 would otherwise read as success.
func (c ExitCode) ProcessStatus() ExitCode {
	if c == 0 || (c > 0 && c <= 255) {
		return c
	}
	return 1
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// ParseExitCode parses a decimal exit code. Negative values are accepted.
func ParseExitCode(s string) (ExitCode, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse exit code %q: %w", s, err)
	}
	return ExitCode(n), nil
}
