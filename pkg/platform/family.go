// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	// FamilyLinux covers glibc/musl Linux distributions (manylinux tags included).
	FamilyLinux Family = "linux"
	// FamilyMacOS covers macOS, where builds may produce .app bundles.
	FamilyMacOS Family = "macos"
	// FamilyMinGW covers MSYS2/MinGW interpreters on Windows.
	FamilyMinGW Family = "mingw"
	// FamilyWindows covers native (MSVC) Windows interpreters.
	FamilyWindows Family = "windows"
)

// ErrInvalidFamily is the sentinel error wrapped by InvalidFamilyError.
var ErrInvalidFamily = errors.New("invalid platform family")

type (
	// Family is a closed enumeration of platform families.
	Family string

	// InvalidFamilyError is returned when a Family value is not recognized.
	InvalidFamilyError struct {
		Value Family
	}
)

// Error implements the error interface.
func (e *InvalidFamilyError) Error() string {
	return fmt.Sprintf("invalid platform family %q (valid: linux, macos, mingw, windows)", e.Value)
}

// Unwrap returns ErrInvalidFamily for errors.Is() compatibility.
func (e *InvalidFamilyError) Unwrap() error { return ErrInvalidFamily }

// Families returns every known family in a stable order.
func Families() []Family {
	return []Family{FamilyLinux, FamilyMacOS, FamilyMinGW, FamilyWindows}
}

// Validate returns an error if the Family is not one of the known families.
func (f Family) Validate() error {
	switch f {
	case FamilyLinux, FamilyMacOS, FamilyMinGW, FamilyWindows:
		return nil
	default:
		return &InvalidFamilyError{Value: f}
	}
}

// String returns the string representation of the Family.
func (f Family) String() string { return string(f) }

// FamilyFromTag maps an interpreter platform tag (as reported by
// sysconfig.get_platform, e.g. "linux-x86_64", "macosx-11.0-arm64",
// "mingw_x86_64_ucrt", "win-amd64") to its Family.
// Unknown tags fall back to FamilyLinux.
func FamilyFromTag(tag string) Family {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(tag, "macos"):
		return FamilyMacOS
	case strings.HasPrefix(tag, "mingw"):
		return FamilyMinGW
	case strings.HasPrefix(tag, "win"):
		return FamilyWindows
	default:
		return FamilyLinux
	}
}

// HostFamily returns the family of the running harness binary. It cannot
// distinguish MinGW from native Windows; use FamilyFromTag with the
// interpreter's platform tag for that.
func HostFamily() Family {
	switch runtime.GOOS {
	case Windows:
		return FamilyWindows
	case Darwin:
		return FamilyMacOS
	default:
		return FamilyLinux
	}
}
