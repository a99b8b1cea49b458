// SPDX-License-Identifier: MPL-2.0

package platform

// runtime.GOOS values that select a host family.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
