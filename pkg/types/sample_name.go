// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSampleName is the sentinel error wrapped by InvalidSampleNameError.
var ErrInvalidSampleName = errors.New("invalid sample name")

type (
	// SampleName identifies a sample application directory under the samples root.
	// A valid name is a single non-empty path element.
	SampleName string

	// InvalidSampleNameError is returned when a SampleName is empty, contains a
	// path separator, or refers to the current/parent directory.
	InvalidSampleNameError struct {
		Value SampleName
	}
)

// Error implements the error interface.
func (e *InvalidSampleNameError) Error() string {
	return fmt.Sprintf("invalid sample name %q: must be a single directory name", e.Value)
}

// Unwrap returns ErrInvalidSampleName for errors.Is() compatibility.
func (e *InvalidSampleNameError) Unwrap() error { return ErrInvalidSampleName }

// Validate returns an error if the SampleName is not a single path element.
func (s SampleName) Validate() error {
	v := string(s)
	if strings.TrimSpace(v) == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return &InvalidSampleNameError{Value: s}
	}
	return nil
}

// HasSuffix reports whether the sample name ends with suffix.
func (s SampleName) HasSuffix(suffix string) bool { return strings.HasSuffix(string(s), suffix) }

// String returns the string representation of the SampleName.
func (s SampleName) String() string { return string(s) }
