// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSpecifier is returned for malformed version specifiers.
var ErrInvalidSpecifier = errors.New("invalid version specifier")

type (
	// Specifier is one clause of a specifier set, e.g. ">=3.10" or "==3.12.*".
	Specifier struct {
		Op       string
		Version  []int
		Wildcard bool
	}

	// SpecifierSet is a comma-separated conjunction of specifiers.
	SpecifierSet []Specifier
)

// Longest operators first so ">=" is not read as ">".
var specifierOps = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// ParseSpecifierSet parses a set such as ">=3.10, <3.14". Quotes around the
// set are ignored.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.NewReplacer(`"`, "", "'", "").Replace(s)
	var set SpecifierSet
	for clause := range strings.SplitSeq(s, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		spec, err := parseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSpecifier, s)
	}
	return set, nil
}

func parseSpecifier(clause string) (Specifier, error) {
	var spec Specifier
	for _, op := range specifierOps {
		if rest, ok := strings.CutPrefix(clause, op); ok {
			spec.Op = op
			clause = strings.TrimSpace(rest)
			break
		}
	}
	if spec.Op == "" {
		return spec, fmt.Errorf("%w: %q has no operator", ErrInvalidSpecifier, clause)
	}
	if v, ok := strings.CutSuffix(clause, ".*"); ok {
		if spec.Op != "==" && spec.Op != "!=" {
			return spec, fmt.Errorf("%w: wildcard only allowed with == and !=", ErrInvalidSpecifier)
		}
		spec.Wildcard = true
		clause = v
	}
	v, err := parseVersion(clause)
	if err != nil {
		return spec, err
	}
	if spec.Op == "~=" && len(v) < 2 {
		return spec, fmt.Errorf("%w: ~= needs at least two components", ErrInvalidSpecifier)
	}
	spec.Version = v
	return spec, nil
}

// parseVersion reads the leading numeric release segment of a version,
// ignoring pre-release or local suffixes ("3.13.0rc1" -> [3 13 0]).
func parseVersion(s string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(s, ".") {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		if end == 0 {
			break
		}
		n, err := strconv.Atoi(part[:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSpecifier, s)
		}
		out = append(out, n)
		if end < len(part) {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q is not a version", ErrInvalidSpecifier, s)
	}
	return out, nil
}

// Contains reports whether version satisfies every clause.
func (s SpecifierSet) Contains(version string) (bool, error) {
	v, err := parseVersion(version)
	if err != nil {
		return false, err
	}
	for _, spec := range s {
		if !spec.matches(v) {
			return false, nil
		}
	}
	return true, nil
}

func (s Specifier) matches(v []int) bool {
	switch s.Op {
	case "==", "===":
		if s.Wildcard {
			return hasPrefix(v, s.Version)
		}
		return compare(v, s.Version) == 0
	case "!=":
		if s.Wildcard {
			return !hasPrefix(v, s.Version)
		}
		return compare(v, s.Version) != 0
	case "<":
		return compare(v, s.Version) < 0
	case "<=":
		return compare(v, s.Version) <= 0
	case ">":
		return compare(v, s.Version) > 0
	case ">=":
		return compare(v, s.Version) >= 0
	case "~=":
		return compare(v, s.Version) >= 0 && hasPrefix(v, s.Version[:len(s.Version)-1])
	}
	return false
}

// compare orders release segments, padding the shorter one with zeros.
func compare(a, b []int) int {
	for i := range max(len(a), len(b)) {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func hasPrefix(v, prefix []int) bool {
	for i, p := range prefix {
		var x int
		if i < len(v) {
			x = v[i]
		}
		if x != p {
			return false
		}
	}
	return true
}
