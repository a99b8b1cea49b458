// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCUEPath is the sentinel error wrapped by InvalidCUEPathError.
var ErrInvalidCUEPath = errors.New("invalid CUE path")

type (
	// CUEPath is a field path in JSON-path notation, e.g. "samples.simple.platform".
	CUEPath string

	// InvalidCUEPathError is returned when a CUEPath is blank.
	InvalidCUEPathError struct {
		Value CUEPath
	}
)

func (e *InvalidCUEPathError) Error() string {
	return fmt.Sprintf("invalid CUE path %q: must not be blank", string(e.Value))
}

func (e *InvalidCUEPathError) Unwrap() error { return ErrInvalidCUEPath }

// Validate returns an error if the path is blank.
func (p CUEPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidCUEPathError{Value: p}
	}
	return nil
}

func (p CUEPath) String() string { return string(p) }

// pathFromSelectors converts CUE's flat selector list (["samples", "0", "name"])
// to JSON-path notation ("samples[0].name").
func pathFromSelectors(sel []string) CUEPath {
	var b strings.Builder
	for i, part := range sel {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return CUEPath(b.String())
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
