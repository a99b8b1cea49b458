// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It defines the closed set of platform families the harness knows about
// (linux, macos, mingw, windows), the mapping from interpreter platform tags
// to families, and the comma-separated support expressions used by the sample
// matrix ("linux,macos", "!mingw").
package platform
