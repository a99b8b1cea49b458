// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// IsSupported evaluates a comma-separated support expression against a family.
//
// An empty expression supports every family. Plain entries restrict support
// to the listed families; entries prefixed with "!" remove a family:
//
//	""              -> all families
//	"linux,macos"   -> linux and macos only
//	"!mingw"        -> everything except mingw
func IsSupported(expr string, f Family) bool {
	var yes, not []Family
	for entry := range strings.SplitSeq(expr, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if name, ok := strings.CutPrefix(entry, "!"); ok {
			not = append(not, Family(name))
			continue
		}
		yes = append(yes, Family(entry))
	}

	supported := Families()
	if len(yes) > 0 {
		supported = yes
	}
	for _, n := range not {
		if n == f {
			return false
		}
	}
	for _, s := range supported {
		if s == f {
			return true
		}
	}
	return false
}
