// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord is the sentinel error wrapped by ProtocolError.
	ErrMalformedRecord = errors.New("malformed run-protocol record")
	// ErrMissingTerminal is returned when a stream ends without a status record.
	ErrMissingTerminal = errors.New("run-protocol stream ended without a status record")
)

// ProtocolError describes a line that could not be decoded.
type ProtocolError struct {
	// LineNo is the 1-based line number within the stream, or 0 when unknown.
	LineNo int
	// Line is the offending line.
	Line string
	// Reason explains what was wrong with it.
	Reason string
	// Err is an optional underlying parse error.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.LineNo, e.Reason, e.Line)
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}

// Unwrap returns ErrMalformedRecord, and the underlying parse error if any.
func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}
