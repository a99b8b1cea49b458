// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"errors"
	"fmt"
)

const (
	// KindSystem uses the interpreter the harness was started with.
	KindSystem Kind = "system"
	// KindVirtual uses a virtual environment created by the harness.
	KindVirtual Kind = "virtual"
	// KindNamed uses a pre-existing, externally managed environment.
	KindNamed Kind = "named"
)

// ErrInvalidKind is the sentinel error wrapped by InvalidKindError.
var ErrInvalidKind = errors.New("invalid environment kind")

type (
	// Kind selects how the build environment is obtained.
	Kind string

	// InvalidKindError is returned when a Kind is not recognized.
	InvalidKindError struct {
		Value Kind
	}
)

// Error implements the error interface.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid environment kind %q (valid: system, virtual, named)", e.Value)
}

// Unwrap returns ErrInvalidKind for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error { return ErrInvalidKind }

// Validate returns an error if the Kind is not one of the defined kinds.
func (k Kind) Validate() error {
	switch k {
	case KindSystem, KindVirtual, KindNamed:
		return nil
	default:
		return &InvalidKindError{Value: k}
	}
}

// String returns the string representation of the Kind.
func (k Kind) String() string { return string(k) }
