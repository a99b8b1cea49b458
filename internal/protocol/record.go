// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"errors"
	"fmt"

	"freezecheck-cli/pkg/types"
)

const (
	// AppConsole marks a console-subsystem executable.
	AppConsole AppType = "console"
	// AppWindowed marks a GUI-subsystem executable.
	AppWindowed AppType = "windowed"
)

// ErrInvalidAppType is the sentinel error wrapped by InvalidAppTypeError.
var ErrInvalidAppType = errors.New("invalid application type")

type (
	// AppType is the application type tag of a frozen executable.
	AppType string

	// InvalidAppTypeError is returned when an AppType is not recognized.
	InvalidAppTypeError struct {
		Value AppType
	}

	// Record is one decoded protocol line: either a ProcessRecord or a TerminalRecord.
	Record interface {
		// Terminal reports whether the record ends the stream.
		Terminal() bool
		// Code returns the exit code carried by the record.
		Code() types.ExitCode
	}

	// ProcessRecord reports the outcome of one frozen executable run.
	ProcessRecord struct {
		PID      int            `json:"pid" yaml:"pid" toml:"pid"`
		ExitCode types.ExitCode `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
		LogBase  string         `json:"log_base" yaml:"log_base" toml:"log_base"`
		AppType  AppType        `json:"app_type" yaml:"app_type" toml:"app_type"`
		Name     string         `json:"name" yaml:"name" toml:"name"`
	}

	// TerminalRecord ends the stream and carries the run's aggregate exit code.
	TerminalRecord struct {
		ExitCode types.ExitCode `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
	}
)

// Error implements the error interface.
func (e *InvalidAppTypeError) Error() string {
	return fmt.Sprintf("invalid application type %q (valid: console, windowed)", e.Value)
}

// Unwrap returns ErrInvalidAppType for errors.Is() compatibility.
func (e *InvalidAppTypeError) Unwrap() error { return ErrInvalidAppType }

// Validate returns an error if the AppType is not console or windowed.
func (a AppType) Validate() error {
	switch a {
	case AppConsole, AppWindowed:
		return nil
	default:
		return &InvalidAppTypeError{Value: a}
	}
}

// String returns the string representation of the AppType.
func (a AppType) String() string { return string(a) }

// Terminal implements Record.
func (ProcessRecord) Terminal() bool { return false }

// Code implements Record.
func (r ProcessRecord) Code() types.ExitCode { return r.ExitCode }

// Terminal implements Record.
func (TerminalRecord) Terminal() bool { return true }

// Code implements Record.
func (r TerminalRecord) Code() types.ExitCode { return r.ExitCode }
